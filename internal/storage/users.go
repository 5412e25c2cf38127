package storage

import (
	"context"
	"fmt"
	"log/slog"

	"tradejournal/internal/models"
)

// CreateUser создает нового пользователя
func (s *Storage) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	createdAt := now()

	id, err := s.insertID(ctx, s.db, `
		INSERT INTO users (username, password_hash, created_at)
		VALUES (?, ?, ?)
	`, username, passwordHash, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("✅ User created", slog.String("username", username), slog.Int("user_id", id))

	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}, nil
}

// GetUserByUsername получает пользователя по имени
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User

	err := s.queryRow(ctx, s.db, `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = ?
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	return &user, nil
}

// GetUserByID получает пользователя по ID
func (s *Storage) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	var user models.User

	err := s.queryRow(ctx, s.db, `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE id = ?
	`, id).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	return &user, nil
}

// UpdatePassword сохраняет новый хеш пароля
func (s *Storage) UpdatePassword(ctx context.Context, userID int, passwordHash string) error {
	result, err := s.exec(ctx, s.db, "UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, userID)
	if err != nil {
		return err
	}

	return expectRows(result)
}

// ListUserIDs возвращает id всех пользователей
func (s *Storage) ListUserIDs(ctx context.Context) ([]int, error) {
	rows, err := s.query(ctx, s.db, "SELECT id FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}
