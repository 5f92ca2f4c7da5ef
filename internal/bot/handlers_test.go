package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ebay_tracker/internal/config"
	"ebay_tracker/internal/model"
	"ebay_tracker/internal/storage"
)

// --- mocks ---

type sentMsg struct {
	ChatID int64
	Text   string
}

type mockAPI struct {
	mu   sync.Mutex
	sent []sentMsg
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.mu.Lock()
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text})
		m.mu.Unlock()
	}
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(tgbotapi.UpdatesChannel)
}

func (m *mockAPI) StopReceivingUpdates() {}

func (m *mockAPI) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

// --- helpers ---

func newTestBot(t *testing.T) (*Bot, *mockAPI, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	api := &mockAPI{}
	b := &Bot{
		api:   api,
		store: store,
		cfg: &config.Config{
			Keywords:      []string{"joy division cassette", "new order cassette"},
			SiteID:        "EBAY_UK",
			CheckInterval: 30,
		},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return b, api, store
}

func userMessage(chatID int64) *tgbotapi.Message {
	return &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{UserName: "ian", FirstName: "Ian", LastName: "Curtis"},
	}
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("reply missing %q, got:\n%s", want, got)
	}
}

// --- handler tests ---

func TestHandleStart(t *testing.T) {
	ctx := context.Background()

	t.Run("new subscriber", func(t *testing.T) {
		b, api, store := newTestBot(t)
		b.handleStart(ctx, userMessage(100))
		requireContains(t, api.lastText(), "Добро пожаловать в eBay Tracker")
		requireContains(t, api.lastText(), "joy division cassette")

		subscribed, err := store.IsSubscribed(ctx, "100")
		if err != nil {
			t.Fatalf("is subscribed: %v", err)
		}
		if !subscribed {
			t.Error("expected an active subscription after /start")
		}
	})

	t.Run("already subscribed", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleStart(ctx, userMessage(100))
		b.handleStart(ctx, userMessage(100))
		requireContains(t, api.lastText(), "С возвращением")
	})

	t.Run("resubscribe after stop", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleStart(ctx, userMessage(100))
		b.handleStop(ctx, 100)
		b.handleStart(ctx, userMessage(100))
		requireContains(t, api.lastText(), "Добро пожаловать")
	})
}

func TestHandleStop(t *testing.T) {
	ctx := context.Background()

	t.Run("active subscription", func(t *testing.T) {
		b, api, store := newTestBot(t)
		b.handleStart(ctx, userMessage(100))
		b.handleStop(ctx, 100)
		requireContains(t, api.lastText(), "Вы отписаны")

		subscribed, err := store.IsSubscribed(ctx, "100")
		if err != nil {
			t.Fatalf("is subscribed: %v", err)
		}
		if subscribed {
			t.Error("expected subscription to be inactive after /stop")
		}
	})

	t.Run("not subscribed", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleStop(ctx, 100)
		requireContains(t, api.lastText(), "Вы уже отписаны")
	})
}

func TestHandleStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("subscribed", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleStart(ctx, userMessage(100))
		b.handleStatus(ctx, 100)
		requireContains(t, api.lastText(), "Подписка активна")
		requireContains(t, api.lastText(), "EBAY_UK")
	})

	t.Run("not subscribed", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleStatus(ctx, 100)
		requireContains(t, api.lastText(), "Подписка неактивна")
	})
}

func TestHandleStats(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)

	b.handleStart(ctx, userMessage(100))
	for _, item := range []model.Listing{
		{ItemID: "1", Title: "A", URL: "https://e/1", Keyword: "joy division cassette"},
		{ItemID: "2", Title: "B", URL: "https://e/2", Keyword: "joy division cassette"},
	} {
		l := item
		if _, err := store.InsertIfNew(ctx, &l); err != nil {
			t.Fatalf("insert %s: %v", item.ItemID, err)
		}
	}

	b.handleStats(ctx, 100)
	requireContains(t, api.lastText(), "Статистика eBay Tracker")
	requireContains(t, api.lastText(), "Всего найдено: 2")
	requireContains(t, api.lastText(), "Активных: 1")
	requireContains(t, api.lastText(), "joy division cassette: 2 лотов")
}

func TestHandleHelp(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleHelp(100)
	requireContains(t, api.lastText(), "/start")
	requireContains(t, api.lastText(), "/stop")
	requireContains(t, api.lastText(), "joy division cassette")
	requireContains(t, api.lastText(), "каждые 30 минут")
}

func TestHandleCommandUnknown(t *testing.T) {
	b, api, _ := newTestBot(t)

	msg := userMessage(100)
	msg.Text = "/frobnicate"
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 11}}

	b.handleCommand(context.Background(), msg)
	requireContains(t, api.lastText(), "Неизвестная команда")
}

func TestHandleCommandDispatch(t *testing.T) {
	b, api, _ := newTestBot(t)

	msg := userMessage(100)
	msg.Text = "/start"
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}}

	b.handleCommand(context.Background(), msg)
	requireContains(t, api.lastText(), "Добро пожаловать")
}
