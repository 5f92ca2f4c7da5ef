package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ebay_tracker/internal/model"
)

// FormatNewItem builds the HTML notification text for a new listing.
// Only fields actually present on the listing are rendered. rubRate is the
// GBP→RUB exchange rate; zero means the estimate is unavailable and the
// converted line is omitted.
func FormatNewItem(l *model.Listing, now time.Time, rubRate float64) string {
	var b strings.Builder
	b.WriteString("🆕 <b>Новый лот на eBay!</b>\n\n")
	fmt.Fprintf(&b, "📦 <b>%s</b>\n", l.Title)

	switch l.ListingType {
	case model.ListingAuction:
		b.WriteString("🔨 Аукцион")
		if l.EndTime != nil {
			fmt.Fprintf(&b, " · ⏳ %s", FormatTimeLeft(*l.EndTime, now))
		}
		b.WriteString("\n")
	case model.ListingFixedPrice:
		b.WriteString("🛒 Купить сейчас\n")
	}

	if l.Price != "" && l.Currency != "" {
		fmt.Fprintf(&b, "💰 %s %s", l.Price, l.Currency)
		if l.IsAuction() && l.BidCount != "" {
			fmt.Fprintf(&b, " (ставок: %s)", l.BidCount)
		}
		b.WriteString("\n")
	}

	if shipping, ok := positiveAmount(l.ShippingCost); ok {
		currency := l.ShippingCurrency
		if currency == "" {
			currency = l.Currency
		}
		fmt.Fprintf(&b, "🚚 Доставка: %s %s\n", trimAmount(shipping), currency)
	}

	if estimate, ok := rubEstimate(l, rubRate); ok {
		b.WriteString(estimate)
		b.WriteString("\n")
	}

	if l.Condition != "" {
		fmt.Fprintf(&b, "📋 Состояние: %s\n", l.Condition)
	}
	if l.Seller != "" {
		fmt.Fprintf(&b, "👤 Продавец: %s\n", l.Seller)
	}
	if l.ListingDate != "" {
		fmt.Fprintf(&b, "📅 Размещено: %s\n", l.ListingDate)
	}
	if l.Keyword != "" {
		fmt.Fprintf(&b, "\n🔍 Найдено по: <i>%s</i>\n", l.Keyword)
	}
	fmt.Fprintf(&b, "\n🔗 <a href=\"%s\">Открыть на eBay</a>", l.URL)
	return b.String()
}

// FormatTimeLeft renders the remaining auction time.
func FormatTimeLeft(end, now time.Time) string {
	left := end.Sub(now)
	if left <= 0 {
		return "торги завершены"
	}
	days := int(left.Hours()) / 24
	hours := int(left.Hours()) % 24
	minutes := int(left.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dч %dмин", hours, minutes)
	default:
		return fmt.Sprintf("%dмин", minutes)
	}
}

// rubEstimate builds the converted price line for GBP-denominated
// listings. An auction shows the full converted total; a fixed-price
// listing shows the total split between two buyers.
func rubEstimate(l *model.Listing, rubRate float64) (string, bool) {
	if rubRate <= 0 || l.Currency != "GBP" {
		return "", false
	}
	price, err := strconv.ParseFloat(l.Price, 64)
	if err != nil {
		return "", false
	}
	total := price
	if shipping, ok := positiveAmount(l.ShippingCost); ok {
		total += shipping
	}
	total *= rubRate

	if l.IsAuction() {
		return fmt.Sprintf("💱 ≈ %.0f ₽ с доставкой", total), true
	}
	return fmt.Sprintf("💱 ≈ %.0f ₽ на человека", total/2), true
}

// FormatSummary builds the end-of-run summary message.
func FormatSummary(newItems int, keywords []string) string {
	return fmt.Sprintf(
		"📊 <b>Сводка поиска eBay</b>\n\n✨ Найдено новых лотов: <b>%d</b>\n🔍 Ключевые слова: %s",
		newItems, strings.Join(keywords, ", "))
}

// FormatError builds the error notification message.
func FormatError(message string) string {
	return "❌ <b>Ошибка eBay Tracker</b>\n\n" + message
}

func positiveAmount(raw string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func trimAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
