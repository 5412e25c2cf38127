package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tradejournal/internal/models"
)

// Notifier отправляет уведомление о событии пользователя
type Notifier interface {
	Notify(ctx context.Context, userID int, text string) error
}

// Nop ничего не отправляет
type Nop struct{}

func (Nop) Notify(context.Context, int, string) error { return nil }

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatResolver возвращает Telegram-чат пользователя; 0 - чат не привязан
type ChatResolver func(ctx context.Context, userID int) (int64, error)

// SettingsStore источник пользовательских настроек
type SettingsStore interface {
	GetSettings(ctx context.Context, userID int, fallback models.UserSettings) (models.UserSettings, error)
}

// SettingsChats берет чат из preferences.notifications.telegramChatId пользователя
func SettingsChats(store SettingsStore) ChatResolver {
	return func(ctx context.Context, userID int) (int64, error) {
		settings, err := store.GetSettings(ctx, userID, models.UserSettings{})
		if err != nil {
			return 0, err
		}

		return settings.Preferences.Notifications.TelegramChatID, nil
	}
}

// Telegram шлет уведомления в личный чат каждого пользователя.
// Пользователи без привязанного чата уведомлений не получают.
type Telegram struct {
	bot    sender
	chats  ChatResolver
	logger *slog.Logger
}

// NewTelegram авторизует бота по токену
func NewTelegram(token string, chats ChatResolver, logger *slog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, newHTTPClient(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %s", redactPath(err.Error()))
	}

	logger.Info("✅ Bot authorized", slog.String("username", bot.Self.UserName))

	return &Telegram{bot: bot, chats: chats, logger: logger}, nil
}

// Notify отправляет сообщение с HTML форматированием в чат пользователя
func (t *Telegram) Notify(ctx context.Context, userID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID, err := t.chats(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve telegram chat: %w", err)
	}

	if chatID == 0 {
		t.logger.Debug("🔕 No telegram chat linked", slog.Int("user_id", userID))
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error("Failed to send notification", slog.Int("user_id", userID), slog.Any("error", err))
		return err
	}

	return nil
}

// DailySummary формирует текст дневной сводки по журналам пользователя
func DailySummary(username, date string, journals []models.Journal, snapshots []models.DailySnapshot) string {
	names := make(map[int]string, len(journals))
	for _, j := range journals {
		names[j.ID] = j.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>%s</b> · %s\n", html.EscapeString(username), date)

	for _, s := range snapshots {
		icon := "⚪"
		switch {
		case s.PnL > 0:
			icon = "🟢"
		case s.PnL < 0:
			icon = "🔴"
		}

		fmt.Fprintf(&b, "%s %s: %d trades (%dW/%dL), PnL %+.2f, balance %.2f\n",
			icon, html.EscapeString(names[s.JournalID]), s.Trades, s.Wins, s.Losses, s.PnL, s.Balance)
	}

	return strings.TrimRight(b.String(), "\n")
}

// JournalClosed формирует текст о слитом или пройденном журнале
func JournalClosed(username string, j models.Journal) string {
	status := "passed ✅"
	if j.IsBlown {
		status = "blown 💥"
	}

	return fmt.Sprintf("<b>%s</b>: journal «%s» %s",
		html.EscapeString(username), html.EscapeString(j.Name), status)
}
