package analytics

import (
	"sort"
	"time"

	"tradejournal/internal/models"
)

// BoxStats распределение R-множителей сделок за день недели
type BoxStats struct {
	Day    string  `json:"day"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	AvgR   float64 `json:"avgR"`
}

var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// DayOfWeekBoxPlot считает квартили R по дню недели входа, с понедельника.
// Учитываются только сделки с R-множителем.
func DayOfWeekBoxPlot(trades []models.Trade, loc *time.Location) []BoxStats {
	if loc == nil {
		loc = time.UTC
	}

	byDay := map[time.Weekday][]float64{}
	for _, t := range trades {
		if t.RMultiple == nil {
			continue
		}

		day := t.EntryTime.In(loc).Weekday()
		byDay[day] = append(byDay[day], *t.RMultiple)
	}

	out := make([]BoxStats, 0, len(weekOrder))
	for _, day := range weekOrder {
		stats := Box(byDay[day])
		stats.Day = day.String()
		out = append(out, stats)
	}

	return out
}

// Box считает min, квартили, медиану и max с линейной интерполяцией
func Box(values []float64) BoxStats {
	if len(values) == 0 {
		return BoxStats{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return BoxStats{
		Count:  len(sorted),
		Min:    round2(sorted[0]),
		Q1:     round2(Quantile(sorted, 0.25)),
		Median: round2(Quantile(sorted, 0.5)),
		Q3:     round2(Quantile(sorted, 0.75)),
		Max:    round2(sorted[len(sorted)-1]),
		AvgR:   round2(sum / float64(len(sorted))),
	}
}

// Quantile возвращает p-квантиль отсортированной выборки (позиция (n-1)*p)
func Quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}

	pos := float64(len(sorted)-1) * p
	lower := int(pos)
	if lower+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	frac := pos - float64(lower)

	return sorted[lower] + (sorted[lower+1]-sorted[lower])*frac
}
