package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tradejournal/internal/models"
)

const noTradeDayColumns = `id, user_id, journal_id, date, notes, screenshot_url, voice_note_url, created_at`

// NoTradeDayFilter параметры выборки дней без сделок; даты в формате YYYY-MM-DD, включительно
type NoTradeDayFilter struct {
	JournalID int
	// IncludeUnassigned добавляет к JournalID записи без журнала (например, оставшиеся от удаленного)
	IncludeUnassigned bool
	From              string
	To                string
}

func scanNoTradeDay(row rowScanner) (models.NoTradeDay, error) {
	var (
		d         models.NoTradeDay
		journalID sql.NullInt64
	)

	err := row.Scan(&d.ID, &d.UserID, &journalID, &d.Date, &d.Notes, &d.ScreenshotURL, &d.VoiceNoteURL, &d.CreatedAt)
	if err != nil {
		return models.NoTradeDay{}, err
	}

	if journalID.Valid {
		id := int(journalID.Int64)
		d.JournalID = &id
	}

	return d, nil
}

// ListNoTradeDays возвращает дни без сделок по возрастанию даты
func (s *Storage) ListNoTradeDays(ctx context.Context, userID int, f NoTradeDayFilter) ([]models.NoTradeDay, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)

	if f.JournalID > 0 {
		if f.IncludeUnassigned {
			where = append(where, "(journal_id = ? OR journal_id IS NULL)")
		} else {
			where = append(where, "journal_id = ?")
		}

		args = append(args, f.JournalID)
	}

	if f.From != "" {
		where = append(where, "date >= ?")
		args = append(args, f.From)
	}

	if f.To != "" {
		where = append(where, "date <= ?")
		args = append(args, f.To)
	}

	rows, err := s.query(ctx, s.db, "SELECT "+noTradeDayColumns+" FROM no_trade_days WHERE "+
		strings.Join(where, " AND ")+" ORDER BY date, id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.NoTradeDay{}
	for rows.Next() {
		d, err := scanNoTradeDay(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, d)
	}

	return out, rows.Err()
}

// GetNoTradeDay возвращает запись по id
func (s *Storage) GetNoTradeDay(ctx context.Context, userID, id int) (models.NoTradeDay, error) {
	return s.getNoTradeDay(ctx, s.db, userID, id)
}

func (s *Storage) getNoTradeDay(ctx context.Context, q querier, userID, id int) (models.NoTradeDay, error) {
	d, err := scanNoTradeDay(s.queryRow(ctx, q, `
		SELECT `+noTradeDayColumns+`
		FROM no_trade_days
		WHERE user_id = ? AND id = ?
	`, userID, id))
	if err != nil {
		return models.NoTradeDay{}, mapError(err)
	}

	return d, nil
}

// CreateNoTradeDay создает запись или обновляет существующую за ту же дату и журнал.
// Возвращает true, если запись была создана.
func (s *Storage) CreateNoTradeDay(ctx context.Context, d *models.NoTradeDay) (bool, error) {
	created, err := s.createNoTradeDay(ctx, d)
	if errors.Is(err, ErrConflict) {
		// Параллельная вставка за ту же дату успела раньше, теперь это обновление
		created, err = s.createNoTradeDay(ctx, d)
	}

	return created, err
}

func (s *Storage) createNoTradeDay(ctx context.Context, d *models.NoTradeDay) (bool, error) {
	created := false

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if d.JournalID != nil {
			if _, err := s.getJournal(ctx, tx, d.UserID, *d.JournalID); err != nil {
				return err
			}
		}

		query := "SELECT id, created_at FROM no_trade_days WHERE user_id = ? AND date = ? AND journal_id IS NULL"
		args := []any{d.UserID, d.Date}

		if d.JournalID != nil {
			query = "SELECT id, created_at FROM no_trade_days WHERE user_id = ? AND date = ? AND journal_id = ?"
			args = append(args, *d.JournalID)
		}

		err := s.queryRow(ctx, tx, query, args...).Scan(&d.ID, &d.CreatedAt)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			d.CreatedAt = now()

			id, err := s.insertID(ctx, tx, `
				INSERT INTO no_trade_days (user_id, journal_id, date, notes, screenshot_url, voice_note_url, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, d.UserID, d.JournalID, d.Date, d.Notes, d.ScreenshotURL, d.VoiceNoteURL, d.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to create no-trade day: %w", err)
			}

			d.ID = id
			created = true

			return nil
		case err != nil:
			return err
		}

		return s.updateNoTradeDay(ctx, tx, d)
	})

	return created, err
}

// UpdateNoTradeDay обновляет запись по id. Перенос на дату, где у журнала уже есть запись, дает ErrConflict.
func (s *Storage) UpdateNoTradeDay(ctx context.Context, d *models.NoTradeDay) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.getNoTradeDay(ctx, tx, d.UserID, d.ID)
		if err != nil {
			return err
		}

		if d.JournalID != nil {
			if _, err := s.getJournal(ctx, tx, d.UserID, *d.JournalID); err != nil {
				return err
			}
		}

		d.CreatedAt = existing.CreatedAt

		return s.updateNoTradeDay(ctx, tx, d)
	})
}

func (s *Storage) updateNoTradeDay(ctx context.Context, tx *sql.Tx, d *models.NoTradeDay) error {
	result, err := s.exec(ctx, tx, `
		UPDATE no_trade_days
		SET journal_id = ?, date = ?, notes = ?, screenshot_url = ?, voice_note_url = ?
		WHERE user_id = ? AND id = ?
	`, d.JournalID, d.Date, d.Notes, d.ScreenshotURL, d.VoiceNoteURL, d.UserID, d.ID)
	if err != nil {
		return mapError(err)
	}

	return expectRows(result)
}

// DeleteNoTradeDay удаляет запись
func (s *Storage) DeleteNoTradeDay(ctx context.Context, userID, id int) error {
	result, err := s.exec(ctx, s.db, "DELETE FROM no_trade_days WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}

	return expectRows(result)
}
