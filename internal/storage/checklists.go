package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tradejournal/internal/journal"
	"tradejournal/internal/models"
)

const checklistColumns = `id, user_id, name, description, type, items, completion_rate, created_at, updated_at`

func scanChecklist(row rowScanner) (models.Checklist, error) {
	var (
		c     models.Checklist
		items string
	)

	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.Type, &items, &c.CompletionRate,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return models.Checklist{}, err
	}

	c.Items = []models.ChecklistItem{}
	if items != "" {
		if err := json.Unmarshal([]byte(items), &c.Items); err != nil {
			return models.Checklist{}, fmt.Errorf("checklist %d: bad items: %w", c.ID, err)
		}
	}

	return c, nil
}

// ListChecklists возвращает чек-листы пользователя
func (s *Storage) ListChecklists(ctx context.Context, userID int) ([]models.Checklist, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT `+checklistColumns+`
		FROM checklists
		WHERE user_id = ?
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checklists := []models.Checklist{}
	for rows.Next() {
		c, err := scanChecklist(rows)
		if err != nil {
			return nil, err
		}

		checklists = append(checklists, c)
	}

	return checklists, rows.Err()
}

// GetChecklist возвращает чек-лист по id
func (s *Storage) GetChecklist(ctx context.Context, userID, id int) (models.Checklist, error) {
	return s.getChecklist(ctx, s.db, userID, id)
}

func (s *Storage) getChecklist(ctx context.Context, q querier, userID, id int) (models.Checklist, error) {
	c, err := scanChecklist(s.queryRow(ctx, q, `
		SELECT `+checklistColumns+`
		FROM checklists
		WHERE user_id = ? AND id = ?
	`, userID, id))
	if err != nil {
		return models.Checklist{}, mapError(err)
	}

	return c, nil
}

// CreateChecklist сохраняет новый чек-лист
func (s *Storage) CreateChecklist(ctx context.Context, c *models.Checklist) error {
	ts := now()
	c.CreatedAt = ts
	c.UpdatedAt = ts

	id, err := s.insertID(ctx, s.db, `
		INSERT INTO checklists (user_id, name, description, type, items, completion_rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.UserID, c.Name, c.Description, c.Type, encodeJSON(c.Items), c.CompletionRate, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create checklist: %w", err)
	}

	c.ID = id

	return nil
}

// UpdateChecklist заменяет чек-лист целиком
func (s *Storage) UpdateChecklist(ctx context.Context, c *models.Checklist) error {
	c.UpdatedAt = now()

	result, err := s.exec(ctx, s.db, `
		UPDATE checklists
		SET name = ?, description = ?, type = ?, items = ?, completion_rate = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, c.Name, c.Description, c.Type, encodeJSON(c.Items), c.CompletionRate, c.UpdatedAt, c.UserID, c.ID)
	if err != nil {
		return err
	}

	return expectRows(result)
}

// MutateChecklist читает чек-лист, применяет fn и сохраняет результат в одной транзакции
func (s *Storage) MutateChecklist(ctx context.Context, userID, id int, fn func(c *models.Checklist) error) (models.Checklist, error) {
	var out models.Checklist

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		c, err := s.getChecklist(ctx, tx, userID, id)
		if err != nil {
			return err
		}

		if err := fn(&c); err != nil {
			return err
		}

		c.UpdatedAt = now()

		_, err = s.exec(ctx, tx, `
			UPDATE checklists SET items = ?, completion_rate = ?, updated_at = ?
			WHERE user_id = ? AND id = ?
		`, encodeJSON(c.Items), c.CompletionRate, c.UpdatedAt, userID, id)
		if err != nil {
			return err
		}

		out = c

		return nil
	})

	return out, err
}

// ToggleChecklistItem переключает пункт и пересчитывает процент выполнения
func (s *Storage) ToggleChecklistItem(ctx context.Context, userID, id int, itemID string) (models.Checklist, error) {
	return s.MutateChecklist(ctx, userID, id, func(c *models.Checklist) error {
		return journal.ToggleItem(c, itemID)
	})
}

// DeleteChecklist удаляет чек-лист
func (s *Storage) DeleteChecklist(ctx context.Context, userID, id int) error {
	result, err := s.exec(ctx, s.db, "DELETE FROM checklists WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}

	return expectRows(result)
}
