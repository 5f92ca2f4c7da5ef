// Package notify formats and delivers new-listing notifications to
// Telegram recipients.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"ebay_tracker/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SubscriberSource lists the chat IDs of active subscribers.
type SubscriberSource interface {
	ActiveSubscribers(ctx context.Context) ([]string, error)
}

// RateSource looks up a currency exchange rate.
type RateSource interface {
	Rate(ctx context.Context, base, target string) (float64, error)
}

// Notifier delivers notifications to every enabled recipient. Delivery is
// best-effort per recipient: one failed send is logged and does not stop
// the rest of the batch. A call succeeds when at least one recipient
// received the message.
type Notifier struct {
	api     telegramAPI // nil when Telegram is not configured
	subs    SubscriberSource
	rates   RateSource
	chatIDs []string
	limiter *rate.Limiter
	log     *slog.Logger
}

// New creates a Notifier. An empty token disables delivery: every notify
// call becomes a no-op returning false. chatIDs is the static recipient
// list from configuration, merged with active subscribers at send time.
func New(token string, chatIDs []string, subs SubscriberSource, rates RateSource, log *slog.Logger) (*Notifier, error) {
	n := &Notifier{
		subs:    subs,
		rates:   rates,
		chatIDs: chatIDs,
		limiter: newLimiter(),
		log:     log,
	}
	if token == "" {
		return n, nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	n.api = api
	return n, nil
}

// Telegram allows ~1 message per second per chat.
func newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Second), 1)
}

// NotifyNewItem sends a new-listing notification to all recipients.
func (n *Notifier) NotifyNewItem(ctx context.Context, l model.Listing) bool {
	if n.api == nil {
		return false
	}
	recipients := n.recipients(ctx)
	if len(recipients) == 0 {
		return false
	}

	var rubRate float64
	if l.Currency == "GBP" && n.rates != nil {
		r, err := n.rates.Rate(ctx, "GBP", "RUB")
		if err != nil {
			n.log.Debug("exchange rate unavailable", "error", err)
		} else {
			rubRate = r
		}
	}
	text := FormatNewItem(&l, time.Now(), rubRate)

	delivered := 0
	for _, chatID := range recipients {
		if err := n.limiter.Wait(ctx); err != nil {
			break
		}
		if err := n.send(chatID, text, l.ImageURL); err != nil {
			n.log.Error("send notification", "chat_id", chatID, "error", err)
			continue
		}
		delivered++
	}
	return delivered > 0
}

// NotifySummary sends the end-of-run summary. Nothing is sent for a run
// that found no new items.
func (n *Notifier) NotifySummary(ctx context.Context, newItems int, keywords []string) bool {
	if n.api == nil || newItems == 0 {
		return false
	}
	return n.broadcast(ctx, FormatSummary(newItems, keywords))
}

// NotifyError sends a best-effort error notification.
func (n *Notifier) NotifyError(ctx context.Context, message string) bool {
	if n.api == nil {
		return false
	}
	return n.broadcast(ctx, FormatError(message))
}

func (n *Notifier) broadcast(ctx context.Context, text string) bool {
	recipients := n.recipients(ctx)
	delivered := 0
	for _, chatID := range recipients {
		if err := n.limiter.Wait(ctx); err != nil {
			break
		}
		if err := n.send(chatID, text, ""); err != nil {
			n.log.Error("send notification", "chat_id", chatID, "error", err)
			continue
		}
		delivered++
	}
	return delivered > 0
}

// recipients merges the static chat ID list with active subscribers from
// the store, deduplicated in order.
func (n *Notifier) recipients(ctx context.Context) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	for _, id := range n.chatIDs {
		add(id)
	}
	if n.subs != nil {
		subscribers, err := n.subs.ActiveSubscribers(ctx)
		if err != nil {
			n.log.Error("list subscribers", "error", err)
		}
		for _, id := range subscribers {
			add(id)
		}
	}
	return out
}

// send delivers one message: photo-with-caption when an image URL is
// present, plain text otherwise.
func (n *Notifier) send(chatID, text, imageURL string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	if imageURL != "" {
		photo := tgbotapi.NewPhoto(id, tgbotapi.FileURL(imageURL))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		_, err = n.api.Send(photo)
		return err
	}

	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = n.api.Send(msg)
	return err
}
