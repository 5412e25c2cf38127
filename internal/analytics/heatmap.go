package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"tradejournal/internal/models"
)

// HourBucket показатели сделок, открытых в данный час
type HourBucket struct {
	Hour    int     `json:"hour"`
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"winRate"`
	AvgR    float64 `json:"avgR"`
	PnL     float64 `json:"pnl"`
	Color   string  `json:"color"`
}

// EmotionStat исход сделок с данным эмоциональным тегом
type EmotionStat struct {
	Emotion string  `json:"emotion"`
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	WinRate float64 `json:"winRate"`
	AvgR    float64 `json:"avgR"`
	PnL     float64 `json:"pnl"`
	Color   string  `json:"color"`
}

// CalendarDay итог календарного дня
type CalendarDay struct {
	Date    string  `json:"date"`
	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	PnL     float64 `json:"pnl"`
	NoTrade bool    `json:"noTrade"`
	Notes   string  `json:"notes,omitempty"`
	Color   string  `json:"color"`
}

type acc struct {
	trades, wins int
	pnl, rSum    float64
	rCount       int
}

func (a *acc) add(t models.Trade) {
	a.trades++

	if t.PnL != nil {
		a.pnl += *t.PnL
		if *t.PnL > 0 {
			a.wins++
		}
	}

	if t.RMultiple != nil {
		a.rSum += *t.RMultiple
		a.rCount++
	}
}

func (a *acc) avgR() float64 {
	if a.rCount == 0 {
		return 0
	}

	return round2(a.rSum / float64(a.rCount))
}

// HourlyHeatmap раскладывает сделки по часу входа; всегда 24 корзины
func HourlyHeatmap(trades []models.Trade, loc *time.Location) []HourBucket {
	if loc == nil {
		loc = time.UTC
	}

	var hours [24]acc
	for _, t := range trades {
		hours[t.EntryTime.In(loc).Hour()].add(t)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, h := range hours {
		if h.trades > 0 {
			lo = math.Min(lo, h.pnl)
			hi = math.Max(hi, h.pnl)
		}
	}

	out := make([]HourBucket, 24)
	for i, h := range hours {
		out[i] = HourBucket{
			Hour:    i,
			Trades:  h.trades,
			Wins:    h.wins,
			WinRate: percent(h.wins, h.trades),
			AvgR:    h.avgR(),
			PnL:     round2(h.pnl),
			Color:   HeatColor(h.pnl, lo, hi, true),
		}
	}

	return out
}

// EmotionOutcome группирует сделки по эмоциональным тегам.
// Сделка с несколькими тегами учитывается в каждом. Порядок: по числу сделок, затем по имени.
func EmotionOutcome(trades []models.Trade) []EmotionStat {
	groups := map[string]*acc{}
	for _, t := range trades {
		for _, e := range t.Emotions {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}

			if groups[e] == nil {
				groups[e] = &acc{}
			}

			groups[e].add(t)
		}
	}

	out := make([]EmotionStat, 0, len(groups))
	lo, hi := math.Inf(1), math.Inf(-1)

	for name, g := range groups {
		avg := g.avgR()
		lo = math.Min(lo, avg)
		hi = math.Max(hi, avg)

		out = append(out, EmotionStat{
			Emotion: name,
			Trades:  g.trades,
			Wins:    g.wins,
			WinRate: percent(g.wins, g.trades),
			AvgR:    avg,
			PnL:     round2(g.pnl),
		})
	}

	for i := range out {
		out[i].Color = HeatColor(out[i].AvgR, lo, hi, true)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Trades != out[j].Trades {
			return out[i].Trades > out[j].Trades
		}

		return out[i].Emotion < out[j].Emotion
	})

	return out
}

// Calendar итоги по дням закрытия сделок плюс отмеченные дни без сделок
func Calendar(trades []models.Trade, noTradeDays []models.NoTradeDay, loc *time.Location) []CalendarDay {
	if loc == nil {
		loc = time.UTC
	}

	days := map[string]*CalendarDay{}
	get := func(date string) *CalendarDay {
		d, ok := days[date]
		if !ok {
			d = &CalendarDay{Date: date}
			days[date] = d
		}

		return d
	}

	for _, t := range trades {
		d := get(t.ClosedAt().In(loc).Format(time.DateOnly))
		d.Trades++

		if t.PnL == nil {
			continue
		}

		d.PnL += *t.PnL

		switch {
		case *t.PnL > 0:
			d.Wins++
		case *t.PnL < 0:
			d.Losses++
		}
	}

	// Заметка дня, привязанного к журналу, важнее общей
	for _, n := range noTradeDays {
		d := get(n.Date)
		d.NoTrade = true

		if d.Notes == "" || n.JournalID != nil {
			d.Notes = n.Notes
		}
	}

	out := make([]CalendarDay, 0, len(days))
	lo, hi := math.Inf(1), math.Inf(-1)

	for _, d := range days {
		d.PnL = round2(d.PnL)
		if d.Trades > 0 {
			lo = math.Min(lo, d.PnL)
			hi = math.Max(hi, d.PnL)
		}

		out = append(out, *d)
	}

	for i := range out {
		if out[i].Trades > 0 {
			out[i].Color = HeatColor(out[i].PnL, lo, hi, true)
		} else {
			out[i].Color = format(neutralColor, minAlpha)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	return out
}
