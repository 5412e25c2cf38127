package analytics

import (
	"fmt"
	"math"
)

type rgb struct{ r, g, b float64 }

var (
	profitColor  = rgb{34, 197, 94}
	lossColor    = rgb{239, 68, 68}
	neutralColor = rgb{148, 163, 184}
)

const (
	minAlpha = 0.15
	maxAlpha = 0.95
)

// HeatColor переводит значение в цвет ячейки тепловой карты.
// Для знаковых метрик положительные значения зеленые, отрицательные красные,
// насыщенность растет к max и min соответственно. Для беззнаковых цвет
// интерполируется от красного (min) к зеленому (max).
func HeatColor(value, lo, hi float64, signed bool) string {
	if math.IsNaN(value) {
		return format(neutralColor, minAlpha)
	}

	if signed {
		switch {
		case value > 0 && hi > 0:
			return format(profitColor, alpha(value/hi))
		case value < 0 && lo < 0:
			return format(lossColor, alpha(value/lo))
		default:
			return format(neutralColor, minAlpha)
		}
	}

	t := 1.0
	if hi > lo {
		t = clamp((value - lo) / (hi - lo))
	}

	c := rgb{
		r: lerp(lossColor.r, profitColor.r, t),
		g: lerp(lossColor.g, profitColor.g, t),
		b: lerp(lossColor.b, profitColor.b, t),
	}

	return format(c, 0.8)
}

func alpha(t float64) float64 {
	return minAlpha + (maxAlpha-minAlpha)*clamp(t)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp(t float64) float64 {
	return math.Max(0, math.Min(1, t))
}

func format(c rgb, a float64) string {
	return fmt.Sprintf("rgba(%d, %d, %d, %.2f)",
		int(math.Round(c.r)), int(math.Round(c.g)), int(math.Round(c.b)), a)
}
