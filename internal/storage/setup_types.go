package storage

import (
	"context"
	"fmt"

	"tradejournal/internal/models"
)

// ListSetupTypes возвращает типы сетапов пользователя по алфавиту
func (s *Storage) ListSetupTypes(ctx context.Context, userID int) ([]models.SetupType, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT id, user_id, name, description
		FROM setup_types
		WHERE user_id = ?
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.SetupType{}
	for rows.Next() {
		var st models.SetupType
		if err := rows.Scan(&st.ID, &st.UserID, &st.Name, &st.Description); err != nil {
			return nil, err
		}

		out = append(out, st)
	}

	return out, rows.Err()
}

// CreateSetupType добавляет тип сетапа; имя уникально в пределах пользователя
func (s *Storage) CreateSetupType(ctx context.Context, st *models.SetupType) error {
	id, err := s.insertID(ctx, s.db, `
		INSERT INTO setup_types (user_id, name, description)
		VALUES (?, ?, ?)
	`, st.UserID, st.Name, st.Description)
	if err != nil {
		return fmt.Errorf("failed to create setup type: %w", err)
	}

	st.ID = id

	return nil
}

// UpdateSetupType обновляет тип сетапа
func (s *Storage) UpdateSetupType(ctx context.Context, st *models.SetupType) error {
	result, err := s.exec(ctx, s.db, `
		UPDATE setup_types SET name = ?, description = ?
		WHERE user_id = ? AND id = ?
	`, st.Name, st.Description, st.UserID, st.ID)
	if err != nil {
		return mapError(err)
	}

	return expectRows(result)
}

// DeleteSetupType удаляет тип сетапа
func (s *Storage) DeleteSetupType(ctx context.Context, userID, id int) error {
	result, err := s.exec(ctx, s.db, "DELETE FROM setup_types WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}

	return expectRows(result)
}
