package bot

import (
	"fmt"
	"sort"
	"strings"

	"ebay_tracker/internal/model"
)

// FormatKeywordList renders the tracked keywords as a bullet list.
func FormatKeywordList(keywords []string) string {
	var b strings.Builder
	for i, kw := range keywords {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  • %s", kw)
	}
	return b.String()
}

// FormatWelcome builds the /start reply, worded differently for first-time
// and returning subscribers.
func FormatWelcome(isNew bool, keywords []string) string {
	if isNew {
		return fmt.Sprintf(`✅ <b>Добро пожаловать в eBay Tracker!</b>

Вы успешно подписаны на уведомления о новых лотах на eBay.

🔍 Отслеживаемые запросы:
%s

Команды:
/status - проверить статус подписки
/stats - статистика трекера
/stop - отписаться от уведомлений`, FormatKeywordList(keywords))
	}
	return `👋 <b>С возвращением!</b>

Ваша подписка снова активна. Вы будете получать уведомления о новых лотах.

Команды:
/status - проверить статус подписки
/stats - статистика трекера
/stop - отписаться`
}

// FormatGoodbye builds the /stop reply.
func FormatGoodbye(wasActive bool) string {
	if wasActive {
		return `👋 <b>Вы отписаны</b>

Вы больше не будете получать уведомления о новых лотах.

Чтобы снова подписаться, используйте /start`
	}
	return `ℹ️ Вы уже отписаны или не были подписаны.

Чтобы подписаться, используйте /start`
}

// FormatStatus builds the /status reply.
func FormatStatus(subscribed bool, keywords []string, siteID string) string {
	if !subscribed {
		return `❌ <b>Подписка неактивна</b>

Вы не получаете уведомления.

Чтобы подписаться, используйте /start`
	}
	return fmt.Sprintf(`✅ <b>Подписка активна</b>

Вы получаете уведомления о новых лотах.

🔍 Отслеживаемые запросы:
%s

🌍 Регион: %s

Команды:
/stats - статистика трекера
/stop - отписаться`, FormatKeywordList(keywords), siteID)
}

// FormatStats builds the /stats reply.
func FormatStats(items *model.Stats, subs *model.SubscriberStats) string {
	var b strings.Builder
	b.WriteString("📊 <b>Статистика eBay Tracker</b>\n\n")
	b.WriteString("<b>Лоты:</b>\n")
	fmt.Fprintf(&b, "  • Всего найдено: %d\n", items.TotalItems)
	fmt.Fprintf(&b, "  • Сегодня: %d\n\n", items.ItemsToday)
	b.WriteString("<b>Подписчики:</b>\n")
	fmt.Fprintf(&b, "  • Активных: %d\n", subs.Active)
	fmt.Fprintf(&b, "  • Новых за неделю: %d\n", subs.Recent)
	fmt.Fprintf(&b, "  • Всего регистраций: %d\n", subs.Total)
	if len(items.ItemsByKeyword) > 0 {
		b.WriteString("\n<b>Поисковые запросы:</b>\n")
		keywords := make([]string, 0, len(items.ItemsByKeyword))
		for keyword := range items.ItemsByKeyword {
			keywords = append(keywords, keyword)
		}
		sort.Strings(keywords)
		for _, keyword := range keywords {
			fmt.Fprintf(&b, "  • %s: %d лотов\n", keyword, items.ItemsByKeyword[keyword])
		}
	}
	return b.String()
}
