package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"tradejournal/internal/models"
)

// GetSettings возвращает настройки пользователя. Если записи нет, возвращаются fallback.
func (s *Storage) GetSettings(ctx context.Context, userID int, fallback models.UserSettings) (models.UserSettings, error) {
	var (
		settings    models.UserSettings
		preferences string
	)

	err := s.queryRow(ctx, s.db, `
		SELECT user_id, initial_balance, currency, date_format, preferences, schema_version, updated_at
		FROM user_settings
		WHERE user_id = ?
	`, userID).Scan(&settings.UserID, &settings.InitialBalance, &settings.Currency, &settings.DateFormat,
		&preferences, &settings.SchemaVersion, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		fallback.UserID = userID
		fallback.SchemaVersion = models.SettingsSchemaVersion

		return fallback, nil
	}

	if err != nil {
		return models.UserSettings{}, err
	}

	settings.Preferences = upgradePreferences(preferences, settings.SchemaVersion, fallback.Preferences)
	settings.SchemaVersion = models.SettingsSchemaVersion

	return settings, nil
}

// UpsertSettings сохраняет настройки пользователя целиком
func (s *Storage) UpsertSettings(ctx context.Context, settings *models.UserSettings) error {
	settings.SchemaVersion = models.SettingsSchemaVersion
	settings.UpdatedAt = now()

	return s.upsertSettings(ctx, s.db, settings)
}

func (s *Storage) upsertSettings(ctx context.Context, q querier, settings *models.UserSettings) error {
	prefs, err := json.Marshal(settings.Preferences)
	if err != nil {
		return err
	}

	_, err = s.exec(ctx, q, `
		INSERT INTO user_settings (user_id, initial_balance, currency, date_format, preferences, schema_version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			initial_balance = excluded.initial_balance,
			currency = excluded.currency,
			date_format = excluded.date_format,
			preferences = excluded.preferences,
			schema_version = excluded.schema_version,
			updated_at = excluded.updated_at
	`, settings.UserID, settings.InitialBalance, settings.Currency, settings.DateFormat, string(prefs),
		settings.SchemaVersion, settings.UpdatedAt)
	if err != nil {
		return mapError(err)
	}

	return nil
}

// BackfillResult итог дозаполнения настроек
type BackfillResult struct {
	Created  int
	Upgraded int
}

// BackfillSettings создает настройки по умолчанию для пользователей без записи
// и переводит старые записи на текущую версию схемы предпочтений
func (s *Storage) BackfillSettings(ctx context.Context, defaults models.UserSettings) (BackfillResult, error) {
	var result BackfillResult

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		missing, err := s.collectInts(ctx, tx, `
			SELECT id FROM users
			WHERE id NOT IN (SELECT user_id FROM user_settings)
			ORDER BY id
		`)
		if err != nil {
			return err
		}

		for _, userID := range missing {
			settings := defaults
			settings.UserID = userID
			settings.SchemaVersion = models.SettingsSchemaVersion
			settings.UpdatedAt = now()

			if err := s.upsertSettings(ctx, tx, &settings); err != nil {
				return fmt.Errorf("user %d: %w", userID, err)
			}
		}

		result.Created = len(missing)

		type stale struct {
			userID      int
			preferences string
			version     int
		}

		rows, err := s.query(ctx, tx, `
			SELECT user_id, preferences, schema_version FROM user_settings WHERE schema_version < ?
		`, models.SettingsSchemaVersion)
		if err != nil {
			return err
		}

		var outdated []stale
		for rows.Next() {
			var st stale
			if err := rows.Scan(&st.userID, &st.preferences, &st.version); err != nil {
				rows.Close()
				return err
			}

			outdated = append(outdated, st)
		}

		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, st := range outdated {
			prefs, err := json.Marshal(upgradePreferences(st.preferences, st.version, defaults.Preferences))
			if err != nil {
				return err
			}

			_, err = s.exec(ctx, tx, `
				UPDATE user_settings SET preferences = ?, schema_version = ?, updated_at = ?
				WHERE user_id = ?
			`, string(prefs), models.SettingsSchemaVersion, now(), st.userID)
			if err != nil {
				return fmt.Errorf("user %d: %w", st.userID, err)
			}
		}

		result.Upgraded = len(outdated)

		return nil
	})
	if err != nil {
		return BackfillResult{}, err
	}

	s.logger.Info("✅ Settings backfilled",
		slog.Int("created", result.Created),
		slog.Int("upgraded", result.Upgraded))

	return result, nil
}

// DeletePlaceholderSettings удаляет записи настроек без реального пользователя
func (s *Storage) DeletePlaceholderSettings(ctx context.Context) (int, error) {
	result, err := s.exec(ctx, s.db, `
		DELETE FROM user_settings
		WHERE user_id <= 0 OR user_id NOT IN (SELECT id FROM users)
	`)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info("🧹 Placeholder settings removed", slog.Int64("count", n))
	}

	return int(n), nil
}

func (s *Storage) collectInts(ctx context.Context, q querier, query string, args ...any) ([]int, error) {
	rows, err := s.query(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	return out, rows.Err()
}

// upgradePreferences читает сохраненные предпочтения поверх base.
// Версия 1 хранила произвольный объект с ключами из localStorage и числами в строках.
func upgradePreferences(raw string, version int, base models.Preferences) models.Preferences {
	prefs := base
	if raw == "" {
		return prefs
	}

	if version >= models.SettingsSchemaVersion {
		_ = json.Unmarshal([]byte(raw), &prefs)
		return prefs
	}

	var legacy map[string]any
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		return prefs
	}

	if v, ok := legacy["theme"].(string); ok && v != "" {
		prefs.Theme = v
	}

	if v, ok := legacyFloat(legacy, "glowIntensity", "glow_intensity"); ok {
		prefs.GlowIntensity = v
	}

	if v, ok := legacyFloat(legacy, "backgroundOpacity", "background_opacity"); ok {
		prefs.BackgroundOpacity = v
	}

	if v, ok := legacyFloat(legacy, "numberPrecision", "number_precision"); ok {
		prefs.NumberPrecision = int(v)
	}

	for _, key := range []string{"pnlColorScheme", "pnl_color_scheme"} {
		if v, ok := legacy[key].(string); ok && v != "" {
			prefs.PnLColorScheme = v
		}
	}

	if n, ok := legacy["notifications"].(map[string]any); ok {
		if v, ok := n["email"].(bool); ok {
			prefs.Notifications.Email = v
		}

		if v, ok := n["push"].(bool); ok {
			prefs.Notifications.Push = v
		}

		for _, key := range []string{"dailySummary", "daily_summary"} {
			if v, ok := n[key].(bool); ok {
				prefs.Notifications.DailySummary = v
			}
		}
	}

	return prefs
}

func legacyFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		}
	}

	return 0, false
}
