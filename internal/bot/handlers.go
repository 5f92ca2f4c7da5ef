package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ebay_tracker/internal/model"
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	sub := &model.Subscriber{ChatID: chatIDString(chatID)}
	if msg.From != nil {
		sub.Username = msg.From.UserName
		sub.FirstName = msg.From.FirstName
		sub.LastName = msg.From.LastName
	}

	isNew, err := b.store.AddSubscriber(ctx, sub)
	if err != nil {
		b.log.Error("add subscriber", "chat_id", chatID, "error", err)
		b.reply(chatID, "Произошла ошибка, попробуйте позже.")
		return
	}

	b.reply(chatID, FormatWelcome(isNew, b.cfg.Keywords))
}

func (b *Bot) handleStop(ctx context.Context, chatID int64) {
	wasActive, err := b.store.RemoveSubscriber(ctx, chatIDString(chatID))
	if err != nil {
		b.log.Error("remove subscriber", "chat_id", chatID, "error", err)
		b.reply(chatID, "Произошла ошибка, попробуйте позже.")
		return
	}

	b.reply(chatID, FormatGoodbye(wasActive))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	subscribed, err := b.store.IsSubscribed(ctx, chatIDString(chatID))
	if err != nil {
		b.log.Error("check subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, "Произошла ошибка, попробуйте позже.")
		return
	}

	b.reply(chatID, FormatStatus(subscribed, b.cfg.Keywords, b.cfg.SiteID))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	itemStats, err := b.store.Stats(ctx)
	if err != nil {
		b.log.Error("read item stats", "error", err)
		b.reply(chatID, "Произошла ошибка, попробуйте позже.")
		return
	}
	subStats, err := b.store.SubscriberStats(ctx)
	if err != nil {
		b.log.Error("read subscriber stats", "error", err)
		b.reply(chatID, "Произошла ошибка, попробуйте позже.")
		return
	}

	b.reply(chatID, FormatStats(itemStats, subStats))
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, fmt.Sprintf(`🤖 <b>eBay Tracker Bot</b>

Автоматический мониторинг новых лотов на eBay с уведомлениями в Telegram.

<b>Команды:</b>
/start - подписаться на уведомления
/stop - отписаться
/status - проверить статус подписки
/stats - статистика трекера
/help - справка

<b>Отслеживаемые запросы:</b>
%s

<b>Регион:</b> %s

Трекер работает автоматически и проверяет новые лоты каждые %d минут.`,
		FormatKeywordList(b.cfg.Keywords), b.cfg.SiteID, b.cfg.CheckInterval))
}
