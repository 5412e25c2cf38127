package journal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
)

// ErrValidation возвращается для некорректных входных данных
var ErrValidation = errors.New("validation failed")

// Direction возвращает каноническое направление и его знак (+1 для buy/long, -1 для sell/short)
func Direction(side string) (string, int, error) {
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "buy", "long":
		return models.TradeBuy, 1, nil
	case "sell", "short":
		return models.TradeSell, -1, nil
	}

	return "", 0, fmt.Errorf("%w: type must be buy or sell, got %q", ErrValidation, side)
}

// PnLPercent считает ((exit-entry)/entry)*100*dir с округлением до 2 знаков.
// Для entry <= 0 значение не определено.
func PnLPercent(entry, exit float64, dir int) (float64, bool) {
	if entry <= 0 {
		return 0, false
	}

	e := decimal.NewFromFloat(entry)
	pct := decimal.NewFromFloat(exit).Sub(e).
		Div(e).
		Mul(decimal.NewFromInt(int64(100 * dir))).
		Round(2)

	f, _ := pct.Float64()

	return f, true
}

// PnL считает (exit-entry)*qty*dir - fees с точностью до цента
func PnL(entry, exit, qty float64, dir int, fees float64) float64 {
	pnl := decimal.NewFromFloat(exit).Sub(decimal.NewFromFloat(entry)).
		Mul(decimal.NewFromFloat(qty)).
		Mul(decimal.NewFromInt(int64(dir))).
		Sub(decimal.NewFromFloat(fees)).
		Round(2)

	f, _ := pnl.Float64()

	return f
}

// RMultiple - результат сделки в единицах запланированного риска
func RMultiple(pnl, plannedRisk float64) (float64, bool) {
	if plannedRisk <= 0 {
		return 0, false
	}

	r := decimal.NewFromFloat(pnl).Div(decimal.NewFromFloat(plannedRisk)).Round(2)
	f, _ := r.Float64()

	return f, true
}

// NormalizeTrade приводит сырые данные к models.Trade: канонизирует поля,
// досчитывает производные значения и валидирует результат.
func NormalizeTrade(in TradeInput) (models.Trade, error) {
	side, dir, err := Direction(in.Type)
	if err != nil {
		return models.Trade{}, err
	}

	t := models.Trade{
		Symbol:             strings.ToUpper(strings.TrimSpace(in.Symbol)),
		Type:               side,
		EntryPrice:         in.EntryPrice.Value,
		ExitPrice:          in.ExitPrice.Ptr(),
		EntryTime:          in.EntryTime.Value,
		ExitTime:           in.ExitTime.Ptr(),
		Quantity:           in.Quantity.Value,
		PnL:                in.PnL.Ptr(),
		PnLPercent:         in.PnLPercent.Ptr(),
		PlannedRisk:        in.PlannedRisk.Ptr(),
		RMultiple:          in.RMultiple.Ptr(),
		StopLoss:           in.StopLoss.Ptr(),
		TakeProfit:         in.TakeProfit.Ptr(),
		Fees:               in.Fees.Ptr(),
		SetupType:          strings.TrimSpace(in.SetupType),
		Emotions:           uniqueTags(in.Emotions),
		ChecklistSnapshots: in.ChecklistSnapshots,
		Screenshots:        compact(in.Screenshots),
		VoiceNotes:         compact(in.VoiceNotes),
		Notes:              in.Notes,
	}

	if in.JournalID.Valid {
		t.JournalID = int(in.JournalID.Value)
	}

	if err := ValidateTrade(t, in); err != nil {
		return models.Trade{}, err
	}

	for i := range t.ChecklistSnapshots {
		t.ChecklistSnapshots[i].CompletionRate = CompletionRate(t.ChecklistSnapshots[i].Items)
	}

	if t.ExitPrice != nil {
		if t.PnL == nil {
			fees := 0.0
			if t.Fees != nil {
				fees = *t.Fees
			}

			pnl := PnL(t.EntryPrice, *t.ExitPrice, t.Quantity, dir, fees)
			t.PnL = &pnl
		}

		if t.PnLPercent == nil {
			if pct, ok := PnLPercent(t.EntryPrice, *t.ExitPrice, dir); ok {
				t.PnLPercent = &pct
			}
		}
	}

	if t.RMultiple == nil && t.PnL != nil && t.PlannedRisk != nil {
		if r, ok := RMultiple(*t.PnL, *t.PlannedRisk); ok {
			t.RMultiple = &r
		}
	}

	if t.Emotions == nil {
		t.Emotions = []string{}
	}

	if t.ChecklistSnapshots == nil {
		t.ChecklistSnapshots = []models.ChecklistSnapshot{}
	}

	return t, nil
}

// ValidateTrade проверяет обязательные поля сделки
func ValidateTrade(t models.Trade, in TradeInput) error {
	switch {
	case t.Symbol == "":
		return fmt.Errorf("%w: symbol is required", ErrValidation)
	case !in.EntryPrice.Valid || t.EntryPrice <= 0:
		return fmt.Errorf("%w: entryPrice must be greater than 0", ErrValidation)
	case !in.Quantity.Valid || t.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be greater than 0", ErrValidation)
	case !in.EntryTime.Valid:
		return fmt.Errorf("%w: entryTime is required", ErrValidation)
	case t.ExitPrice != nil && *t.ExitPrice <= 0:
		return fmt.Errorf("%w: exitPrice must be greater than 0", ErrValidation)
	case t.ExitTime != nil && t.ExitTime.Before(t.EntryTime):
		return fmt.Errorf("%w: exitTime is before entryTime", ErrValidation)
	}

	return nil
}

// uniqueTags убирает пустые теги и дубликаты без учета регистра, порядок сохраняется
func uniqueTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}

		if _, ok := seen[tag]; ok {
			continue
		}

		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	return out
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}
