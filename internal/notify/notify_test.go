package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/models"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}

	return tgbotapi.Message{}, f.err
}

type fakeSettings map[int]int64

func (f fakeSettings) GetSettings(_ context.Context, userID int, fallback models.UserSettings) (models.UserSettings, error) {
	chat, ok := f[userID]
	if !ok {
		return fallback, nil
	}

	settings := fallback
	settings.UserID = userID
	settings.Preferences.Notifications.TelegramChatID = chat

	return settings, nil
}

func TestTelegramNotify(t *testing.T) {
	fake := &fakeSender{}
	n := &Telegram{
		bot:    fake,
		chats:  SettingsChats(fakeSettings{1: 42, 2: 77}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	require.NoError(t, n.Notify(context.Background(), 1, "<b>hi</b>"))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, int64(42), fake.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, fake.sent[0].ParseMode)

	fake.err = errors.New("boom")
	assert.Error(t, n.Notify(context.Background(), 1, "x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Notify(ctx, 1, "x"), context.Canceled)
}

func TestTelegramNotifyUsesOwnChat(t *testing.T) {
	fake := &fakeSender{}
	n := &Telegram{
		bot:    fake,
		chats:  SettingsChats(fakeSettings{1: 42, 2: 77}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	require.NoError(t, n.Notify(context.Background(), 2, "bob"))
	require.NoError(t, n.Notify(context.Background(), 3, "carol"))
	require.NoError(t, n.Notify(context.Background(), 1, "alice"))

	// Пользователь 3 без чата пропускается, чужие чаты не используются
	require.Len(t, fake.sent, 2)
	assert.Equal(t, int64(77), fake.sent[0].ChatID)
	assert.Equal(t, "bob", fake.sent[0].Text)
	assert.Equal(t, int64(42), fake.sent[1].ChatID)
	assert.Equal(t, "alice", fake.sent[1].Text)
}

func TestTelegramNotifyResolveError(t *testing.T) {
	fake := &fakeSender{}
	n := &Telegram{
		bot: fake,
		chats: func(context.Context, int) (int64, error) {
			return 0, errors.New("db down")
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	assert.Error(t, n.Notify(context.Background(), 1, "x"))
	assert.Empty(t, fake.sent)
}

func TestDailySummary(t *testing.T) {
	journals := []models.Journal{{ID: 1, Name: "Main <1>"}, {ID: 2, Name: "Demo"}}
	snapshots := []models.DailySnapshot{
		{JournalID: 1, Trades: 3, Wins: 2, Losses: 1, PnL: 12.5, Balance: 1012.5},
		{JournalID: 2, Trades: 1, Wins: 0, Losses: 1, PnL: -4, Balance: 996},
	}

	text := DailySummary("alice", "2024-03-01", journals, snapshots)

	assert.Contains(t, text, "<b>alice</b> · 2024-03-01")
	assert.Contains(t, text, "🟢 Main &lt;1&gt;: 3 trades (2W/1L), PnL +12.50, balance 1012.50")
	assert.Contains(t, text, "🔴 Demo: 1 trades (0W/1L), PnL -4.00, balance 996.00")
}

func TestJournalClosed(t *testing.T) {
	assert.Contains(t, JournalClosed("bob", models.Journal{Name: "FTMO", IsBlown: true}), "blown")
	assert.Contains(t, JournalClosed("bob", models.Journal{Name: "FTMO", IsPassed: true}), "passed")
}
