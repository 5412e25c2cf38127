package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/models"
)

func f(v float64) *float64 { return &v }

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 3, day, hour, minute, 0, 0, time.UTC)
}

func fixture() []models.Trade {
	exit1, exit2, exit3 := at(4, 10, 0), at(4, 15, 0), at(5, 11, 0)

	return []models.Trade{
		{ID: 1, EntryTime: at(4, 9, 15), ExitTime: &exit1, PnL: f(100), RMultiple: f(2), Emotions: []string{"calm"}},
		{ID: 2, EntryTime: at(4, 14, 0), ExitTime: &exit2, PnL: f(-50), RMultiple: f(-1), Emotions: []string{"fomo", "Calm"}},
		{ID: 3, EntryTime: at(5, 9, 30), ExitTime: &exit3, PnL: f(30), RMultiple: f(0.6), Emotions: []string{"calm"}},
		{ID: 4, EntryTime: at(6, 10, 0)},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(1000, fixture())

	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 3, s.ClosedTrades)
	assert.Equal(t, 1, s.OpenTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 66.67, s.WinRate)
	assert.Equal(t, 80.0, s.TotalPnL)
	assert.Equal(t, 65.0, s.AvgWin)
	assert.Equal(t, -50.0, s.AvgLoss)
	require.NotNil(t, s.ProfitFactor)
	assert.Equal(t, 2.6, *s.ProfitFactor)
	assert.Equal(t, 26.67, s.Expectancy)
	assert.Equal(t, 0.53, s.AvgR)
	assert.Equal(t, 100.0, *s.BestTrade)
	assert.Equal(t, -50.0, *s.WorstTrade)
	assert.Equal(t, 1080.0, s.Balance)
	assert.Equal(t, 50.0, s.MaxDrawdown)
	assert.Equal(t, 4.55, s.MaxDrawdownPercent)
}

func TestMaxDrawdownPercentIndependentOfAmount(t *testing.T) {
	exit1, exit2, exit3 := at(4, 10, 0), at(5, 10, 0), at(6, 10, 0)
	trades := []models.Trade{
		{ID: 1, EntryTime: at(4, 9, 0), ExitTime: &exit1, PnL: f(-40)},
		{ID: 2, EntryTime: at(5, 9, 0), ExitTime: &exit2, PnL: f(1000)},
		{ID: 3, EntryTime: at(6, 9, 0), ExitTime: &exit3, PnL: f(-100)},
	}

	s := Summarize(100, trades)

	// 100 -> 60 дает 40%, 1060 -> 960 дает 100 в деньгах, но только 9.43%
	assert.Equal(t, 100.0, s.MaxDrawdown)
	assert.Equal(t, 40.0, s.MaxDrawdownPercent)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(500, nil)

	assert.Zero(t, s.WinRate)
	assert.Nil(t, s.ProfitFactor)
	assert.Nil(t, s.BestTrade)
	assert.Equal(t, 500.0, s.Balance)
}

func TestSummarizeNoLosses(t *testing.T) {
	s := Summarize(0, []models.Trade{{PnL: f(10)}, {PnL: f(0)}})

	assert.Nil(t, s.ProfitFactor)
	assert.Equal(t, 1, s.Breakeven)
	assert.Equal(t, 50.0, s.WinRate)
}

func TestEquityCurve(t *testing.T) {
	points := EquityCurve(1000, fixture())

	require.Len(t, points, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{points[0].TradeID, points[1].TradeID, points[2].TradeID})
	assert.Equal(t, []float64{1100, 1050, 1080}, []float64{points[0].Balance, points[1].Balance, points[2].Balance})
	assert.True(t, points[0].Time.Equal(at(4, 10, 0)))
}

func TestHourlyHeatmap(t *testing.T) {
	hours := HourlyHeatmap(fixture(), time.UTC)
	require.Len(t, hours, 24)

	nine := hours[9]
	assert.Equal(t, 2, nine.Trades)
	assert.Equal(t, 100.0, nine.WinRate)
	assert.Equal(t, 1.3, nine.AvgR)
	assert.Equal(t, 130.0, nine.PnL)
	assert.Equal(t, "rgba(34, 197, 94, 0.95)", nine.Color)

	assert.Equal(t, "rgba(239, 68, 68, 0.95)", hours[14].Color)
	assert.Equal(t, 1, hours[10].Trades)
	assert.Zero(t, hours[10].AvgR)
	assert.Equal(t, "rgba(148, 163, 184, 0.15)", hours[0].Color)
}

func TestHourlyHeatmapLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	hours := HourlyHeatmap(fixture(), loc)

	assert.Equal(t, 2, hours[12].Trades)
	assert.Zero(t, hours[9].Trades)
}

func TestEmotionOutcome(t *testing.T) {
	stats := EmotionOutcome(fixture())
	require.Len(t, stats, 2)

	assert.Equal(t, "calm", stats[0].Emotion)
	assert.Equal(t, 3, stats[0].Trades)
	assert.Equal(t, 66.67, stats[0].WinRate)
	assert.Equal(t, 0.53, stats[0].AvgR)
	assert.Equal(t, 80.0, stats[0].PnL)

	assert.Equal(t, "fomo", stats[1].Emotion)
	assert.Equal(t, -1.0, stats[1].AvgR)
	assert.Equal(t, "rgba(239, 68, 68, 0.95)", stats[1].Color)
}

func TestDayOfWeekBoxPlot(t *testing.T) {
	days := DayOfWeekBoxPlot(fixture(), time.UTC)
	require.Len(t, days, 7)

	monday := days[0]
	assert.Equal(t, "Monday", monday.Day)
	assert.Equal(t, 2, monday.Count)
	assert.Equal(t, -1.0, monday.Min)
	assert.Equal(t, -0.25, monday.Q1)
	assert.Equal(t, 0.5, monday.Median)
	assert.Equal(t, 1.25, monday.Q3)
	assert.Equal(t, 2.0, monday.Max)
	assert.Equal(t, 0.5, monday.AvgR)

	tuesday := days[1]
	assert.Equal(t, 1, tuesday.Count)
	assert.Equal(t, 0.6, tuesday.Median)

	assert.Equal(t, "Wednesday", days[2].Day)
	assert.Zero(t, days[2].Count)
	assert.Equal(t, "Sunday", days[6].Day)
}

func TestQuantile(t *testing.T) {
	values := []float64{1, 2, 3, 4}

	assert.InDelta(t, 1.75, Quantile(values, 0.25), 1e-9)
	assert.InDelta(t, 2.5, Quantile(values, 0.5), 1e-9)
	assert.InDelta(t, 3.25, Quantile(values, 0.75), 1e-9)
	assert.InDelta(t, 4, Quantile(values, 1), 1e-9)
	assert.Zero(t, Quantile(nil, 0.5))
}

func TestCalendar(t *testing.T) {
	days := Calendar(fixture(), []models.NoTradeDay{{Date: "2024-03-07", Notes: "sick"}}, time.UTC)
	require.Len(t, days, 4)

	assert.Equal(t, "2024-03-04", days[0].Date)
	assert.Equal(t, 2, days[0].Trades)
	assert.Equal(t, 1, days[0].Wins)
	assert.Equal(t, 1, days[0].Losses)
	assert.Equal(t, 50.0, days[0].PnL)

	assert.Equal(t, "2024-03-06", days[2].Date)
	assert.Equal(t, 1, days[2].Trades)

	assert.True(t, days[3].NoTrade)
	assert.Equal(t, "sick", days[3].Notes)
	assert.Equal(t, "rgba(148, 163, 184, 0.15)", days[3].Color)
}

func TestCalendarPrefersJournalNotes(t *testing.T) {
	journalID := 1
	days := Calendar(nil, []models.NoTradeDay{
		{Date: "2024-03-07", Notes: "own", JournalID: &journalID},
		{Date: "2024-03-07", Notes: "shared"},
		{Date: "2024-03-08", Notes: "left from a deleted journal"},
	}, time.UTC)
	require.Len(t, days, 2)

	assert.True(t, days[0].NoTrade)
	assert.Equal(t, "own", days[0].Notes)
	assert.True(t, days[1].NoTrade)
	assert.Equal(t, "left from a deleted journal", days[1].Notes)
}

func TestHeatColor(t *testing.T) {
	assert.Equal(t, "rgba(137, 133, 81, 0.80)", HeatColor(50, 0, 100, false))
	assert.Equal(t, "rgba(239, 68, 68, 0.80)", HeatColor(-10, 0, 100, false))
	assert.Equal(t, "rgba(34, 197, 94, 0.80)", HeatColor(5, 5, 5, false))
	assert.Equal(t, "rgba(34, 197, 94, 0.55)", HeatColor(65, -50, 130, true))
	assert.Equal(t, "rgba(239, 68, 68, 0.55)", HeatColor(-25, -50, 130, true))
	assert.Equal(t, "rgba(148, 163, 184, 0.15)", HeatColor(0, -50, 130, true))
}

func TestBuild(t *testing.T) {
	d := Build(1000, fixture(), nil, time.UTC)

	assert.Equal(t, 4, d.Summary.TotalTrades)
	assert.Len(t, d.Equity, 3)
	assert.Len(t, d.Hourly, 24)
	assert.Len(t, d.Emotions, 2)
	assert.Len(t, d.Weekdays, 7)
	assert.Len(t, d.Calendar, 3)
}
