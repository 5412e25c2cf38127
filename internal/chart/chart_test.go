package chart

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNiceScale(t *testing.T) {
	lo, hi, step := NiceScale(0, 97, 5)
	assert.Equal(t, []float64{0, 100, 20}, []float64{lo, hi, step})

	lo, hi, step = NiceScale(-12, 37, 5)
	assert.Equal(t, []float64{-20, 40, 10}, []float64{lo, hi, step})

	lo, hi, step = NiceScale(5, 5, 5)
	assert.Equal(t, []float64{4, 6, 0.5}, []float64{lo, hi, step})
}

func TestRenderLine(t *testing.T) {
	var buf bytes.Buffer

	err := Render(&buf, []Point{{"Mon", 1}, {"Tue", 3}, {"Wed", 2}}, Options{Title: "P&L <daily>"})
	require.NoError(t, err)

	svg := buf.String()
	assert.True(t, strings.HasPrefix(svg, "<svg "))
	assert.True(t, strings.HasSuffix(svg, "</svg>\n"))
	assert.Contains(t, svg, "<title>P&amp;L &lt;daily&gt;</title>")
	assert.Contains(t, svg, `<polyline class="series"`)
	assert.Contains(t, svg, ">Tue</text>")
	assert.NotContains(t, svg, `class="bar"`)
}

func TestRenderBarsColorsNegative(t *testing.T) {
	var buf bytes.Buffer

	series := []Point{{"a", 10}, {"b", -5}, {"c", 3}}
	require.NoError(t, Render(&buf, series, Options{Style: StyleBar, Color: "#00ff00", NegativeColor: "#ff0000"}))

	svg := buf.String()
	assert.Equal(t, 3, strings.Count(svg, `class="bar"`))
	assert.Equal(t, 2, strings.Count(svg, `fill="#00ff00"`))
	assert.Equal(t, 1, strings.Count(svg, `fill="#ff0000"`))
	assert.Contains(t, svg, `class="zero"`)
}

func TestRenderArea(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, Render(&buf, []Point{{"", 1}, {"", 4}}, Options{Style: StyleArea}))
	assert.Contains(t, buf.String(), `<path class="series" d="M`)
	assert.Contains(t, buf.String(), " Z\"")
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, Render(&buf, nil, Options{}))
	assert.Contains(t, buf.String(), "no data")
	assert.NotContains(t, buf.String(), "polyline")
}

func TestRenderSinglePoint(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, Render(&buf, []Point{{"only", 7}}, Options{Width: 200, Height: 100, Padding: 20}))
	assert.Contains(t, buf.String(), `points="100,`)
}

func TestRenderRejectsBadOptions(t *testing.T) {
	var buf bytes.Buffer

	assert.Error(t, Render(&buf, []Point{{"a", 1}}, Options{Style: "pie"}))
	assert.Error(t, Render(&buf, []Point{{"a", 1}}, Options{Width: 50, Height: 50, Padding: 30}))
}

func TestParseStyle(t *testing.T) {
	s, err := ParseStyle("", StyleBar)
	require.NoError(t, err)
	assert.Equal(t, StyleBar, s)

	s, err = ParseStyle("AREA", StyleLine)
	require.NoError(t, err)
	assert.Equal(t, StyleArea, s)

	_, err = ParseStyle("pie", StyleLine)
	assert.Error(t, err)
}
