package journal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/models"
)

func decodeTrade(t *testing.T, raw string) TradeInput {
	t.Helper()

	var in TradeInput
	require.NoError(t, json.Unmarshal([]byte(raw), &in))

	return in
}

func TestPnLPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry float64
		exit  float64
		dir   int
		want  float64
		ok    bool
	}{
		{"buy gain", 100, 110, 1, 10, true},
		{"sell same prices", 100, 110, -1, -10, true},
		{"sell gain", 50, 45, -1, 10, true},
		{"rounding", 3, 4, 1, 33.33, true},
		{"zero entry", 0, 10, 1, 0, false},
		{"negative entry", -5, 10, 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PnLPercent(tt.entry, tt.exit, tt.dir)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNormalizeTradeDerivesPnLPercent(t *testing.T) {
	t.Parallel()

	buy, err := NormalizeTrade(decodeTrade(t, `{
		"symbol": "aapl", "type": "buy", "entry_price": "100", "exit_price": 110,
		"quantity": 2, "entry_time": "2024-01-05T10:00:00Z"
	}`))
	require.NoError(t, err)
	require.NotNil(t, buy.PnLPercent)
	assert.Equal(t, 10.0, *buy.PnLPercent)
	require.NotNil(t, buy.PnL)
	assert.Equal(t, 20.0, *buy.PnL)
	assert.Equal(t, "AAPL", buy.Symbol)

	sell, err := NormalizeTrade(decodeTrade(t, `{
		"symbol": "AAPL", "direction": "short", "entryPrice": 100, "exitPrice": 110,
		"quantity": 1, "entryTime": "2024-01-05T10:00:00Z"
	}`))
	require.NoError(t, err)
	assert.Equal(t, models.TradeSell, sell.Type)
	require.NotNil(t, sell.PnLPercent)
	assert.Equal(t, -10.0, *sell.PnLPercent)
}

func TestNormalizeTradeKeepsProvidedPercent(t *testing.T) {
	t.Parallel()

	tr, err := NormalizeTrade(decodeTrade(t, `{
		"symbol": "ES", "type": "buy", "entryPrice": 100, "exitPrice": 110,
		"quantity": 1, "entryTime": "2024-01-05", "pnlPercent": 7.5
	}`))
	require.NoError(t, err)
	assert.Equal(t, 7.5, *tr.PnLPercent)
}

func TestNormalizeTradeOpenTradeHasNoDerivedValues(t *testing.T) {
	t.Parallel()

	tr, err := NormalizeTrade(decodeTrade(t, `{
		"symbol": "NQ", "type": "buy", "entryPrice": 100, "quantity": 1,
		"entryTime": "2024-01-05T09:30", "exitPrice": "NaN", "stopLoss": "abc"
	}`))
	require.NoError(t, err)
	assert.Nil(t, tr.ExitPrice)
	assert.Nil(t, tr.PnL)
	assert.Nil(t, tr.PnLPercent)
	assert.Nil(t, tr.StopLoss)
	assert.False(t, tr.Closed())
}

func TestNormalizeTradeRMultipleAndFees(t *testing.T) {
	t.Parallel()

	tr, err := NormalizeTrade(decodeTrade(t, `{
		"symbol": "EURUSD", "type": "long", "entryPrice": 1.1, "exitPrice": 1.2,
		"quantity": 1000, "fees": 10, "planned_risk": 45, "entryTime": "2024-01-05T10:00:00Z",
		"emotions": "Calm, FOMO ,calm,"
	}`))
	require.NoError(t, err)
	assert.Equal(t, 90.0, *tr.PnL)
	assert.Equal(t, 2.0, *tr.RMultiple)
	assert.Equal(t, []string{"calm", "fomo"}, tr.Emotions)
}

func TestNormalizeTradeValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"missing symbol":   `{"type":"buy","entryPrice":1,"quantity":1,"entryTime":"2024-01-01"}`,
		"bad type":         `{"symbol":"X","type":"hold","entryPrice":1,"quantity":1,"entryTime":"2024-01-01"}`,
		"zero entry":       `{"symbol":"X","type":"buy","entryPrice":0,"quantity":1,"entryTime":"2024-01-01"}`,
		"missing quantity": `{"symbol":"X","type":"buy","entryPrice":1,"entryTime":"2024-01-01"}`,
		"missing time":     `{"symbol":"X","type":"buy","entryPrice":1,"quantity":1}`,
		"exit before":      `{"symbol":"X","type":"buy","entryPrice":1,"quantity":1,"entryTime":"2024-01-02","exitTime":"2024-01-01"}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizeTrade(decodeTrade(t, raw))
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	got := ParseTime("2024-01-05 10:15")
	require.True(t, got.Valid)
	assert.Equal(t, time.Date(2024, 1, 5, 10, 15, 0, 0, time.UTC), got.Value)

	assert.False(t, ParseTime("yesterday").Valid)
	assert.False(t, ParseTime("").Valid)
}
