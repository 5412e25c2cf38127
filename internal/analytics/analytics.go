package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradejournal/internal/models"
)

// Summary сводные показатели по закрытым сделкам
type Summary struct {
	TotalTrades        int      `json:"totalTrades"`
	ClosedTrades       int      `json:"closedTrades"`
	OpenTrades         int      `json:"openTrades"`
	Wins               int      `json:"wins"`
	Losses             int      `json:"losses"`
	Breakeven          int      `json:"breakeven"`
	WinRate            float64  `json:"winRate"`
	TotalPnL           float64  `json:"totalPnl"`
	AvgWin             float64  `json:"avgWin"`
	AvgLoss            float64  `json:"avgLoss"`
	ProfitFactor       *float64 `json:"profitFactor"`
	Expectancy         float64  `json:"expectancy"`
	AvgR               float64  `json:"avgR"`
	BestTrade          *float64 `json:"bestTrade"`
	WorstTrade         *float64 `json:"worstTrade"`
	Balance            float64  `json:"balance"`
	MaxDrawdown        float64  `json:"maxDrawdown"`
	MaxDrawdownPercent float64  `json:"maxDrawdownPercent"`
}

// EquityPoint баланс после закрытия сделки
type EquityPoint struct {
	Time    time.Time `json:"time"`
	TradeID int       `json:"tradeId"`
	PnL     float64   `json:"pnl"`
	Balance float64   `json:"balance"`
}

// Dashboard все данные для главной страницы
type Dashboard struct {
	Summary  Summary       `json:"summary"`
	Equity   []EquityPoint `json:"equity"`
	Hourly   []HourBucket  `json:"hourly"`
	Emotions []EmotionStat `json:"emotions"`
	Weekdays []BoxStats    `json:"weekdays"`
	Calendar []CalendarDay `json:"calendar"`
}

// Build собирает дашборд. Часы и даты считаются в loc.
func Build(initialBalance float64, trades []models.Trade, days []models.NoTradeDay, loc *time.Location) Dashboard {
	return Dashboard{
		Summary:  Summarize(initialBalance, trades),
		Equity:   EquityCurve(initialBalance, trades),
		Hourly:   HourlyHeatmap(trades, loc),
		Emotions: EmotionOutcome(trades),
		Weekdays: DayOfWeekBoxPlot(trades, loc),
		Calendar: Calendar(trades, days, loc),
	}
}

// Summarize считает сводку. Открытые сделки (без P&L) учитываются только в счетчиках.
func Summarize(initialBalance float64, trades []models.Trade) Summary {
	s := Summary{TotalTrades: len(trades)}

	var (
		grossWin, grossLoss, total decimal.Decimal
		rSum                       float64
		rCount                     int
	)

	for _, t := range trades {
		if t.PnL == nil {
			s.OpenTrades++
			continue
		}

		pnl := *t.PnL
		s.ClosedTrades++
		total = total.Add(decimal.NewFromFloat(pnl))

		switch {
		case pnl > 0:
			s.Wins++
			grossWin = grossWin.Add(decimal.NewFromFloat(pnl))
		case pnl < 0:
			s.Losses++
			grossLoss = grossLoss.Add(decimal.NewFromFloat(pnl))
		default:
			s.Breakeven++
		}

		if s.BestTrade == nil || pnl > *s.BestTrade {
			s.BestTrade = ptr(pnl)
		}

		if s.WorstTrade == nil || pnl < *s.WorstTrade {
			s.WorstTrade = ptr(pnl)
		}

		if t.RMultiple != nil {
			rSum += *t.RMultiple
			rCount++
		}
	}

	s.TotalPnL = round2(total.InexactFloat64())
	s.Balance = round2(initialBalance + s.TotalPnL)

	if s.ClosedTrades > 0 {
		s.WinRate = percent(s.Wins, s.ClosedTrades)
		s.Expectancy = round2(total.Div(decimal.NewFromInt(int64(s.ClosedTrades))).InexactFloat64())
	}

	if s.Wins > 0 {
		s.AvgWin = round2(grossWin.Div(decimal.NewFromInt(int64(s.Wins))).InexactFloat64())
	}

	if s.Losses > 0 {
		s.AvgLoss = round2(grossLoss.Div(decimal.NewFromInt(int64(s.Losses))).InexactFloat64())
		s.ProfitFactor = ptr(round2(grossWin.Div(grossLoss.Abs()).InexactFloat64()))
	}

	if rCount > 0 {
		s.AvgR = round2(rSum / float64(rCount))
	}

	s.MaxDrawdown, s.MaxDrawdownPercent = maxDrawdown(initialBalance, EquityCurve(initialBalance, trades))

	return s
}

// EquityCurve строит кривую баланса по закрытым сделкам в порядке закрытия
func EquityCurve(initialBalance float64, trades []models.Trade) []EquityPoint {
	closed := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if t.PnL != nil {
			closed = append(closed, t)
		}
	}

	sort.SliceStable(closed, func(i, j int) bool {
		ti, tj := closed[i].ClosedAt(), closed[j].ClosedAt()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}

		return closed[i].ID < closed[j].ID
	})

	points := make([]EquityPoint, 0, len(closed))
	balance := decimal.NewFromFloat(initialBalance)

	for _, t := range closed {
		balance = balance.Add(decimal.NewFromFloat(*t.PnL))
		points = append(points, EquityPoint{
			Time:    t.ClosedAt(),
			TradeID: t.ID,
			PnL:     *t.PnL,
			Balance: round2(balance.InexactFloat64()),
		})
	}

	return points
}

// maxDrawdown возвращает наибольшую просадку в деньгах и наибольшую в процентах от пика.
// Максимумы считаются независимо и могут приходиться на разные участки кривой.
func maxDrawdown(initialBalance float64, points []EquityPoint) (float64, float64) {
	var (
		peak    = initialBalance
		dd, pct float64
	)

	for _, p := range points {
		if p.Balance > peak {
			peak = p.Balance
		}

		d := peak - p.Balance
		dd = math.Max(dd, d)

		if peak > 0 {
			pct = math.Max(pct, d/peak*100)
		}
	}

	return round2(dd), round2(pct)
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}

	return decimal.NewFromInt(int64(part)).Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).Round(2).InexactFloat64()
}

func ptr(v float64) *float64 {
	return &v
}
