package journal

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tradejournal/internal/models"
)

// Number - число из JSON, которое может прийти числом, строкой или null.
// NaN, бесконечности и нечисловые строки превращаются в "нет значения".
type Number struct {
	Value float64
	Valid bool
}

// NewNumber создает заполненное значение
func NewNumber(v float64) Number {
	return Number{Value: v, Valid: true}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = parseNumber(b)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}

	return json.Marshal(n.Value)
}

// Ptr возвращает указатель на значение или nil
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}

	v := n.Value

	return &v
}

func parseNumber(b []byte) Number {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return Number{}
	}

	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return Number{}
		}

		s = strings.TrimSpace(str)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Number{}
	}

	return Number{Value: f, Valid: true}
}

// Time - время из JSON в одном из распространенных форматов
type Time struct {
	Value time.Time
	Valid bool
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

func (t *Time) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = Time{}
		return nil
	}

	*t = ParseTime(s)

	return nil
}

// ParseTime разбирает время, пустая или некорректная строка дает Valid=false
func ParseTime(s string) Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return Time{}
	}

	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			return Time{Value: v.UTC(), Valid: true}
		}
	}

	return Time{}
}

// Ptr возвращает указатель на время или nil
func (t Time) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}

	v := t.Value

	return &v
}

// TradeInput - сырые данные сделки от клиента. Поля принимаются как в
// snake_case (формат бэкенда), так и в camelCase (формат формы).
type TradeInput struct {
	JournalID          Number
	Symbol             string
	Type               string
	EntryPrice         Number
	ExitPrice          Number
	EntryTime          Time
	ExitTime           Time
	Quantity           Number
	PnL                Number
	PnLPercent         Number
	PlannedRisk        Number
	RMultiple          Number
	StopLoss           Number
	TakeProfit         Number
	Fees               Number
	SetupType          string
	Emotions           []string
	ChecklistSnapshots []models.ChecklistSnapshot
	Screenshots        []string
	VoiceNotes         []string
	Notes              string
}

func (in *TradeInput) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: trade must be a JSON object", ErrValidation)
	}

	f := fields(raw)

	*in = TradeInput{
		JournalID:   f.number("journalId", "journal_id", "accountId", "account_id"),
		Symbol:      f.str("symbol", "instrument", "ticker"),
		Type:        f.str("type", "direction", "side"),
		EntryPrice:  f.number("entryPrice", "entry_price"),
		ExitPrice:   f.number("exitPrice", "exit_price"),
		EntryTime:   f.time("entryTime", "entry_time", "entryDate", "entry_date", "date"),
		ExitTime:    f.time("exitTime", "exit_time", "exitDate", "exit_date"),
		Quantity:    f.number("quantity", "qty", "size", "lot_size", "lotSize"),
		PnL:         f.number("pnl", "profitLoss", "profit_loss"),
		PnLPercent:  f.number("pnlPercent", "pnl_percent", "pnlPercentage", "pnl_percentage"),
		PlannedRisk: f.number("plannedRisk", "planned_risk", "riskAmount", "risk_amount"),
		RMultiple:   f.number("rMultiple", "r_multiple"),
		StopLoss:    f.number("stopLoss", "stop_loss"),
		TakeProfit:  f.number("takeProfit", "take_profit"),
		Fees:        f.number("fees", "commission"),
		SetupType:   f.str("setupType", "setup_type", "setup"),
		Emotions:    f.list("emotions", "emotionTags", "emotion_tags"),
		Screenshots: f.list("screenshots", "screenshotUrls", "screenshot_urls"),
		VoiceNotes:  f.list("voiceNotes", "voice_notes", "voiceNoteUrls", "voice_note_urls"),
		Notes:       f.str("notes", "note"),
	}

	if v, ok := f.lookup("checklistSnapshots", "checklist_snapshots", "checklists"); ok {
		if err := json.Unmarshal(v, &in.ChecklistSnapshots); err != nil {
			return fmt.Errorf("%w: checklistSnapshots: %v", ErrValidation, err)
		}
	}

	return nil
}

type fields map[string]json.RawMessage

func (f fields) lookup(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := f[k]; ok && string(v) != "null" {
			return v, true
		}
	}

	return nil, false
}

func (f fields) number(keys ...string) Number {
	v, ok := f.lookup(keys...)
	if !ok {
		return Number{}
	}

	return parseNumber(v)
}

func (f fields) str(keys ...string) string {
	v, ok := f.lookup(keys...)
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		// Число или bool - берем как есть
		return strings.TrimSpace(string(v))
	}

	return strings.TrimSpace(s)
}

func (f fields) time(keys ...string) Time {
	v, ok := f.lookup(keys...)
	if !ok {
		return Time{}
	}

	var t Time
	_ = t.UnmarshalJSON(v)

	return t
}

// list принимает массив строк или строку через запятую
func (f fields) list(keys ...string) []string {
	v, ok := f.lookup(keys...)
	if !ok {
		return nil
	}

	var items []string
	if err := json.Unmarshal(v, &items); err == nil {
		return items
	}

	var s string
	if err := json.Unmarshal(v, &s); err != nil || strings.TrimSpace(s) == "" {
		return nil
	}

	return strings.Split(s, ",")
}
