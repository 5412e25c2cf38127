package storage

import (
	"context"
	"strings"

	"tradejournal/internal/models"
)

// UserJournals журналы одного пользователя для фоновых задач
type UserJournals struct {
	UserID   int
	Username string
	Journals []models.Journal
}

// ListUsersWithJournals возвращает всех пользователей, у которых есть хотя бы один журнал
func (s *Storage) ListUsersWithJournals(ctx context.Context) ([]UserJournals, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT u.username, j.id, j.user_id, j.name, j.account_type, j.initial_balance, j.currency,
			j.is_active, j.is_blown, j.is_passed, j.created_at, j.updated_at
		FROM journals j
		JOIN users u ON u.id = j.user_id
		ORDER BY j.user_id, j.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserJournals
	for rows.Next() {
		var (
			username string
			j        models.Journal
		)

		err := rows.Scan(&username, &j.ID, &j.UserID, &j.Name, &j.AccountType, &j.InitialBalance, &j.Currency,
			&j.IsActive, &j.IsBlown, &j.IsPassed, &j.CreatedAt, &j.UpdatedAt)
		if err != nil {
			return nil, err
		}

		if n := len(out); n == 0 || out[n-1].UserID != j.UserID {
			out = append(out, UserJournals{UserID: j.UserID, Username: username})
		}

		last := &out[len(out)-1]
		last.Journals = append(last.Journals, j)
	}

	return out, rows.Err()
}

// UpsertDailySnapshot сохраняет срез за день; повторный запуск за ту же дату перезаписывает его
func (s *Storage) UpsertDailySnapshot(ctx context.Context, snap *models.DailySnapshot) error {
	snap.CreatedAt = now()

	_, err := s.exec(ctx, s.db, `
		INSERT INTO daily_snapshots (journal_id, date, trades, wins, losses, pnl, balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (journal_id, date) DO UPDATE SET
			trades = excluded.trades,
			wins = excluded.wins,
			losses = excluded.losses,
			pnl = excluded.pnl,
			balance = excluded.balance,
			created_at = excluded.created_at
	`, snap.JournalID, snap.Date, snap.Trades, snap.Wins, snap.Losses, snap.PnL, snap.Balance, snap.CreatedAt)

	return mapError(err)
}

// ListDailySnapshots возвращает срезы журнала пользователя по возрастанию даты
func (s *Storage) ListDailySnapshots(ctx context.Context, userID, journalID int, from, to string) ([]models.DailySnapshot, error) {
	if _, err := s.getJournal(ctx, s.db, userID, journalID); err != nil {
		return nil, err
	}

	var (
		where = []string{"journal_id = ?"}
		args  = []any{journalID}
	)

	if from != "" {
		where = append(where, "date >= ?")
		args = append(args, from)
	}

	if to != "" {
		where = append(where, "date <= ?")
		args = append(args, to)
	}

	rows, err := s.query(ctx, s.db, `
		SELECT journal_id, date, trades, wins, losses, pnl, balance, created_at
		FROM daily_snapshots
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY date
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.DailySnapshot{}
	for rows.Next() {
		var d models.DailySnapshot
		if err := rows.Scan(&d.JournalID, &d.Date, &d.Trades, &d.Wins, &d.Losses, &d.PnL, &d.Balance, &d.CreatedAt); err != nil {
			return nil, err
		}

		out = append(out, d)
	}

	return out, rows.Err()
}
