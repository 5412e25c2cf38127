package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tradejournal/internal/models"
)

const tradeColumns = `id, user_id, journal_id, symbol, type, entry_price, exit_price, entry_time, exit_time,
	quantity, pnl, pnl_percent, planned_risk, r_multiple, stop_loss, take_profit, fees,
	setup_type, emotions, checklist_snapshots, screenshots, voice_notes, notes, created_at, updated_at`

// TradeFilter параметры выборки сделок
type TradeFilter struct {
	JournalID int
	From      *time.Time
	To        *time.Time
	Symbol    string
	Limit     int
	Offset    int
}

func scanTrade(row rowScanner) (models.Trade, error) {
	var (
		t                                         models.Trade
		emotions, snapshots, screenshots, voices string
	)

	err := row.Scan(&t.ID, &t.UserID, &t.JournalID, &t.Symbol, &t.Type, &t.EntryPrice, &t.ExitPrice,
		&t.EntryTime, &t.ExitTime, &t.Quantity, &t.PnL, &t.PnLPercent, &t.PlannedRisk, &t.RMultiple,
		&t.StopLoss, &t.TakeProfit, &t.Fees, &t.SetupType, &emotions, &snapshots, &screenshots, &voices,
		&t.Notes, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Trade{}, err
	}

	t.Emotions = decodeStrings(emotions)
	t.Screenshots = decodeStrings(screenshots)
	t.VoiceNotes = decodeStrings(voices)

	t.ChecklistSnapshots = []models.ChecklistSnapshot{}
	if snapshots != "" {
		_ = json.Unmarshal([]byte(snapshots), &t.ChecklistSnapshots)
	}

	return t, nil
}

func decodeStrings(raw string) []string {
	out := []string{}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &out)
	}

	return out
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return "[]"
	}

	return string(b)
}

// ListTrades возвращает сделки пользователя, новые первыми
func (s *Storage) ListTrades(ctx context.Context, userID int, f TradeFilter) ([]models.Trade, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)

	if f.JournalID > 0 {
		where = append(where, "journal_id = ?")
		args = append(args, f.JournalID)
	}

	if f.From != nil {
		where = append(where, "entry_time >= ?")
		args = append(args, f.From.UTC())
	}

	if f.To != nil {
		where = append(where, "entry_time < ?")
		args = append(args, f.To.UTC())
	}

	if f.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, strings.ToUpper(f.Symbol))
	}

	query := "SELECT " + tradeColumns + " FROM trades WHERE " + strings.Join(where, " AND ") +
		" ORDER BY entry_time DESC, id DESC"

	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := []models.Trade{}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}

		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// GetTrade возвращает сделку пользователя
func (s *Storage) GetTrade(ctx context.Context, userID, id int) (models.Trade, error) {
	t, err := scanTrade(s.queryRow(ctx, s.db, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE user_id = ? AND id = ?
	`, userID, id))
	if err != nil {
		return models.Trade{}, mapError(err)
	}

	return t, nil
}

// CreateTrade сохраняет сделку. Журнал должен принадлежать пользователю и быть открытым.
func (s *Storage) CreateTrade(ctx context.Context, t *models.Trade) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insertTrade(ctx, tx, t)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Trade created",
		slog.Int("trade_id", t.ID),
		slog.Int("journal_id", t.JournalID),
		slog.String("symbol", t.Symbol))

	return nil
}

// ImportTrades сохраняет пачку сделок в одной транзакции: либо все, либо ни одной.
// Номер сделки в ошибке считается с 1.
func (s *Storage) ImportTrades(ctx context.Context, trades []models.Trade) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i := range trades {
			if err := s.insertTrade(ctx, tx, &trades[i]); err != nil {
				return fmt.Errorf("trade %d: %w", i+1, err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("✅ Trades imported", slog.Int("count", len(trades)))

	return nil
}

func (s *Storage) insertTrade(ctx context.Context, tx *sql.Tx, t *models.Trade) error {
	j, err := s.getJournal(ctx, tx, t.UserID, t.JournalID)
	if err != nil {
		return err
	}

	if j.Terminal() {
		return ErrClosed
	}

	ts := now()
	t.CreatedAt = ts
	t.UpdatedAt = ts

	id, err := s.insertID(ctx, tx, `
		INSERT INTO trades (user_id, journal_id, symbol, type, entry_price, exit_price, entry_time, exit_time,
			quantity, pnl, pnl_percent, planned_risk, r_multiple, stop_loss, take_profit, fees,
			setup_type, emotions, checklist_snapshots, screenshots, voice_notes, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tradeArgs(t, ts)...)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	t.ID = id

	return nil
}

func tradeArgs(t *models.Trade, createdAt time.Time) []any {
	return []any{
		t.UserID, t.JournalID, t.Symbol, t.Type, t.EntryPrice, t.ExitPrice, t.EntryTime.UTC(), utcPtr(t.ExitTime),
		t.Quantity, t.PnL, t.PnLPercent, t.PlannedRisk, t.RMultiple, t.StopLoss, t.TakeProfit, t.Fees,
		t.SetupType, encodeJSON(t.Emotions), encodeJSON(t.ChecklistSnapshots), encodeJSON(t.Screenshots),
		encodeJSON(t.VoiceNotes), t.Notes, createdAt, t.UpdatedAt,
	}
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.UTC()
}

// UpdateTrade полностью заменяет сделку
func (s *Storage) UpdateTrade(ctx context.Context, t *models.Trade) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.getTrade(ctx, tx, t.UserID, t.ID)
		if err != nil {
			return err
		}

		if t.JournalID == 0 {
			t.JournalID = existing.JournalID
		}

		if t.JournalID != existing.JournalID {
			j, err := s.getJournal(ctx, tx, t.UserID, t.JournalID)
			if err != nil {
				return err
			}

			if j.Terminal() {
				return ErrClosed
			}
		}

		t.CreatedAt = existing.CreatedAt
		t.UpdatedAt = now()

		args := tradeArgs(t, existing.CreatedAt)
		// user_id и created_at не меняются
		args = append(args[1:len(args)-2], t.UpdatedAt, t.UserID, t.ID)

		_, err = s.exec(ctx, tx, `
			UPDATE trades
			SET journal_id = ?, symbol = ?, type = ?, entry_price = ?, exit_price = ?, entry_time = ?, exit_time = ?,
				quantity = ?, pnl = ?, pnl_percent = ?, planned_risk = ?, r_multiple = ?, stop_loss = ?,
				take_profit = ?, fees = ?, setup_type = ?, emotions = ?, checklist_snapshots = ?, screenshots = ?,
				voice_notes = ?, notes = ?, updated_at = ?
			WHERE user_id = ? AND id = ?
		`, args...)

		return err
	})
}

func (s *Storage) getTrade(ctx context.Context, q querier, userID, id int) (models.Trade, error) {
	t, err := scanTrade(s.queryRow(ctx, q, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE user_id = ? AND id = ?
	`, userID, id))
	if err != nil {
		return models.Trade{}, mapError(err)
	}

	return t, nil
}

// DeleteTrade удаляет сделку
func (s *Storage) DeleteTrade(ctx context.Context, userID, id int) error {
	result, err := s.exec(ctx, s.db, "DELETE FROM trades WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}

	return expectRows(result)
}
