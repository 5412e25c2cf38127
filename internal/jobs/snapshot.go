package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"tradejournal/internal/events"
	"tradejournal/internal/models"
	"tradejournal/internal/notify"
	"tradejournal/internal/storage"
	"tradejournal/internal/trace"
)

// SnapshotStore данные, нужные ночному срезу
type SnapshotStore interface {
	ListUsersWithJournals(ctx context.Context) ([]storage.UserJournals, error)
	ListTrades(ctx context.Context, userID int, f storage.TradeFilter) ([]models.Trade, error)
	UpsertDailySnapshot(ctx context.Context, snap *models.DailySnapshot) error
	GetSettings(ctx context.Context, userID int, fallback models.UserSettings) (models.UserSettings, error)
}

// Snapshotter считает дневные срезы журналов и рассылает сводки
type Snapshotter struct {
	store     SnapshotStore
	publisher events.Publisher
	notifier  notify.Notifier
	settings  models.UserSettings
	loc       *time.Location
	logger    *slog.Logger

	now func() time.Time
}

// NewSnapshotter создает задачу ночного среза. settings используются для пользователей без сохраненных настроек.
func NewSnapshotter(
	store SnapshotStore,
	publisher events.Publisher,
	notifier notify.Notifier,
	settings models.UserSettings,
	loc *time.Location,
	logger *slog.Logger,
) *Snapshotter {
	if loc == nil {
		loc = time.UTC
	}

	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Snapshotter{
		store:     store,
		publisher: publisher,
		notifier:  notifier,
		settings:  settings,
		loc:       loc,
		logger:    logger,
		now:       time.Now,
	}
}

// Run считает срезы за вчерашний день
func (s *Snapshotter) Run(ctx context.Context) error {
	_, err := s.RunFor(ctx, s.now().In(s.loc).AddDate(0, 0, -1))
	return err
}

// RunFor считает срезы за день, содержащий day. Ошибка одного пользователя не прерывает остальных.
func (s *Snapshotter) RunFor(ctx context.Context, day time.Time) (int, error) {
	day = day.In(s.loc)
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 0, 1)
	date := from.Format(time.DateOnly)

	users, err := s.store.ListUsersWithJournals(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list journals: %w", err)
	}

	var (
		saved int
		errs  []error
	)

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return saved, err
		}

		snaps, err := s.snapshotUser(ctx, u, date, from, to)
		saved += len(snaps)

		if err != nil {
			s.logger.Error("Failed to snapshot user", slog.Int("user_id", u.UserID), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("user %d: %w", u.UserID, err))

			continue
		}

		s.summarize(ctx, u, date, snaps)
	}

	s.logger.Info("💾 Daily snapshots saved", slog.String("date", date), slog.Int("count", saved))

	return saved, errors.Join(errs...)
}

func (s *Snapshotter) snapshotUser(ctx context.Context, u storage.UserJournals, date string, from, to time.Time) ([]models.DailySnapshot, error) {
	ctx, span := trace.StartSpan(ctx, "jobs.snapshot_user")
	defer span.End()

	span.SetAttributes(attribute.Int("user.id", u.UserID), attribute.String("date", date))

	snaps := make([]models.DailySnapshot, 0, len(u.Journals))

	for _, j := range u.Journals {
		trades, err := s.store.ListTrades(ctx, u.UserID, storage.TradeFilter{JournalID: j.ID})
		if err != nil {
			return snaps, err
		}

		snap := DaySnapshot(j, trades, from, to)
		snap.Date = date

		if err := s.store.UpsertDailySnapshot(ctx, &snap); err != nil {
			return snaps, err
		}

		snaps = append(snaps, snap)

		if s.publisher != nil {
			s.publisher.Publish(u.UserID, events.Event{
				Type:      events.SnapshotCreated,
				JournalID: j.ID,
				Payload:   snap,
				At:        snap.CreatedAt,
			})
		}
	}

	return snaps, nil
}

// summarize отправляет сводку, если пользователь торговал и включил уведомление
func (s *Snapshotter) summarize(ctx context.Context, u storage.UserJournals, date string, snaps []models.DailySnapshot) {
	traded := false
	for _, snap := range snaps {
		if snap.Trades > 0 {
			traded = true
			break
		}
	}

	if !traded {
		return
	}

	settings, err := s.store.GetSettings(ctx, u.UserID, s.settings)
	if err != nil {
		s.logger.Warn("Failed to load settings", slog.Int("user_id", u.UserID), slog.Any("error", err))
		return
	}

	if !settings.Preferences.Notifications.DailySummary {
		return
	}

	text := notify.DailySummary(u.Username, date, u.Journals, snaps)
	if err := s.notifier.Notify(ctx, u.UserID, text); err != nil {
		s.logger.Warn("Failed to send daily summary", slog.Int("user_id", u.UserID), slog.Any("error", err))
	}
}

// DaySnapshot считает итог дня [from, to) по закрытым сделкам журнала.
// Баланс включает все сделки, закрытые до конца дня.
func DaySnapshot(j models.Journal, trades []models.Trade, from, to time.Time) models.DailySnapshot {
	snap := models.DailySnapshot{JournalID: j.ID}

	var (
		dayPnL  decimal.Decimal
		balance = decimal.NewFromFloat(j.InitialBalance)
	)

	for _, t := range trades {
		if !t.Closed() || t.PnL == nil {
			continue
		}

		closedAt := t.ClosedAt()
		if !closedAt.Before(to) {
			continue
		}

		pnl := decimal.NewFromFloat(*t.PnL)
		balance = balance.Add(pnl)

		if closedAt.Before(from) {
			continue
		}

		snap.Trades++
		dayPnL = dayPnL.Add(pnl)

		switch {
		case pnl.IsPositive():
			snap.Wins++
		case pnl.IsNegative():
			snap.Losses++
		}
	}

	snap.PnL = dayPnL.Round(2).InexactFloat64()
	snap.Balance = balance.Round(2).InexactFloat64()

	return snap
}
