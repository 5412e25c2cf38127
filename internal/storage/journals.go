package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"tradejournal/internal/models"
)

const journalColumns = `id, user_id, name, account_type, initial_balance, currency,
	is_active, is_blown, is_passed, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJournal(row rowScanner) (models.Journal, error) {
	var j models.Journal

	err := row.Scan(&j.ID, &j.UserID, &j.Name, &j.AccountType, &j.InitialBalance, &j.Currency,
		&j.IsActive, &j.IsBlown, &j.IsPassed, &j.CreatedAt, &j.UpdatedAt)

	return j, err
}

// ListJournals возвращает все журналы пользователя
func (s *Storage) ListJournals(ctx context.Context, userID int) ([]models.Journal, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT `+journalColumns+`
		FROM journals
		WHERE user_id = ?
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	journals := []models.Journal{}
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}

		journals = append(journals, j)
	}

	return journals, rows.Err()
}

// GetJournal возвращает журнал пользователя по id
func (s *Storage) GetJournal(ctx context.Context, userID, id int) (models.Journal, error) {
	return s.getJournal(ctx, s.db, userID, id)
}

func (s *Storage) getJournal(ctx context.Context, q querier, userID, id int) (models.Journal, error) {
	j, err := scanJournal(s.queryRow(ctx, q, `
		SELECT `+journalColumns+`
		FROM journals
		WHERE user_id = ? AND id = ?
	`, userID, id))
	if err != nil {
		return models.Journal{}, mapError(err)
	}

	return j, nil
}

// GetActiveJournal возвращает активный журнал пользователя
func (s *Storage) GetActiveJournal(ctx context.Context, userID int) (models.Journal, error) {
	j, err := scanJournal(s.queryRow(ctx, s.db, `
		SELECT `+journalColumns+`
		FROM journals
		WHERE user_id = ? AND is_active
		LIMIT 1
	`, userID))
	if err != nil {
		return models.Journal{}, mapError(err)
	}

	return j, nil
}

// CreateJournal создает журнал. Первый журнал пользователя сразу становится активным.
func (s *Storage) CreateJournal(ctx context.Context, j *models.Journal) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := s.queryRow(ctx, tx, "SELECT count(*) FROM journals WHERE user_id = ?", j.UserID).Scan(&count); err != nil {
			return err
		}

		ts := now()
		j.IsActive = count == 0
		j.IsBlown = false
		j.IsPassed = false
		j.CreatedAt = ts
		j.UpdatedAt = ts

		id, err := s.insertID(ctx, tx, `
			INSERT INTO journals (user_id, name, account_type, initial_balance, currency, is_active, is_blown, is_passed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, j.UserID, j.Name, j.AccountType, j.InitialBalance, j.Currency, j.IsActive, false, false, ts, ts)
		if err != nil {
			return fmt.Errorf("failed to create journal: %w", err)
		}

		j.ID = id

		s.logger.Info("✅ Journal created",
			slog.Int("journal_id", id),
			slog.Int("user_id", j.UserID),
			slog.Bool("active", j.IsActive))

		return nil
	})
}

// UpdateJournal обновляет редактируемые поля журнала
func (s *Storage) UpdateJournal(ctx context.Context, j *models.Journal) error {
	j.UpdatedAt = now()

	result, err := s.exec(ctx, s.db, `
		UPDATE journals
		SET name = ?, account_type = ?, initial_balance = ?, currency = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, j.Name, j.AccountType, j.InitialBalance, j.Currency, j.UpdatedAt, j.UserID, j.ID)
	if err != nil {
		return mapError(err)
	}

	return expectRows(result)
}

// ActivateJournal делает журнал активным, снимая флаг с остальных, в одной транзакции.
// Повторная активация уже активного журнала ничего не меняет.
func (s *Storage) ActivateJournal(ctx context.Context, userID, id int) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.getJournal(ctx, tx, userID, id); err != nil {
			return err
		}

		return s.activate(ctx, tx, userID, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("✅ Journal activated", slog.Int("journal_id", id), slog.Int("user_id", userID))

	return nil
}

func (s *Storage) activate(ctx context.Context, tx *sql.Tx, userID, id int) error {
	ts := now()

	_, err := s.exec(ctx, tx, `
		UPDATE journals SET is_active = ?, updated_at = ?
		WHERE user_id = ? AND is_active AND id <> ?
	`, false, ts, userID, id)
	if err != nil {
		return err
	}

	_, err = s.exec(ctx, tx, `
		UPDATE journals SET is_active = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, true, ts, userID, id)

	return mapError(err)
}

// MarkJournalBlown помечает журнал как слитый
func (s *Storage) MarkJournalBlown(ctx context.Context, userID, id int) error {
	return s.setTerminal(ctx, userID, id, true, false)
}

// MarkJournalPassed помечает журнал как пройденный
func (s *Storage) MarkJournalPassed(ctx context.Context, userID, id int) error {
	return s.setTerminal(ctx, userID, id, false, true)
}

func (s *Storage) setTerminal(ctx context.Context, userID, id int, blown, passed bool) error {
	result, err := s.exec(ctx, s.db, `
		UPDATE journals SET is_blown = ?, is_passed = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, blown, passed, now(), userID, id)
	if err != nil {
		return err
	}

	return expectRows(result)
}

// DeleteJournal удаляет журнал вместе с его сделками. Последний журнал удалить нельзя.
// Если удаляется активный журнал, активным становится самый старый из незакрытых оставшихся.
// Возвращает id журнала, ставшего активным, или 0.
func (s *Storage) DeleteJournal(ctx context.Context, userID, id int) (int, error) {
	promoted := 0

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		target, err := s.getJournal(ctx, tx, userID, id)
		if err != nil {
			return err
		}

		var count int
		if err := s.queryRow(ctx, tx, "SELECT count(*) FROM journals WHERE user_id = ?", userID).Scan(&count); err != nil {
			return err
		}

		if count <= 1 {
			return ErrLastJournal
		}

		if _, err := s.exec(ctx, tx, "DELETE FROM trades WHERE user_id = ? AND journal_id = ?", userID, id); err != nil {
			return err
		}

		// Дни журнала отвязываются; если за ту же дату уже есть запись без журнала, остается она
		if _, err := s.exec(ctx, tx, `
			DELETE FROM no_trade_days
			WHERE user_id = ? AND journal_id = ? AND date IN (
				SELECT date FROM no_trade_days WHERE user_id = ? AND journal_id IS NULL
			)
		`, userID, id, userID); err != nil {
			return err
		}

		if _, err := s.exec(ctx, tx, "UPDATE no_trade_days SET journal_id = NULL WHERE user_id = ? AND journal_id = ?", userID, id); err != nil {
			return err
		}

		if _, err := s.exec(ctx, tx, "DELETE FROM journals WHERE user_id = ? AND id = ?", userID, id); err != nil {
			return err
		}

		if !target.IsActive {
			return nil
		}

		err = s.queryRow(ctx, tx, `
			SELECT id FROM journals
			WHERE user_id = ?
			ORDER BY is_blown, is_passed, id
			LIMIT 1
		`, userID).Scan(&promoted)
		if err != nil {
			return fmt.Errorf("failed to pick journal to activate: %w", err)
		}

		return s.activate(ctx, tx, userID, promoted)
	})
	if err != nil {
		if errors.Is(err, ErrLastJournal) || errors.Is(err, ErrNotFound) {
			return 0, err
		}

		return 0, fmt.Errorf("failed to delete journal: %w", err)
	}

	s.logger.Info("✅ Journal deleted",
		slog.Int("journal_id", id),
		slog.Int("user_id", userID),
		slog.Int("promoted_id", promoted))

	return promoted, nil
}

// CountTrades возвращает число сделок в журнале
func (s *Storage) CountTrades(ctx context.Context, userID, journalID int) (int, error) {
	var count int

	err := s.queryRow(ctx, s.db, "SELECT count(*) FROM trades WHERE user_id = ? AND journal_id = ?", userID, journalID).Scan(&count)

	return count, err
}
