package chart

import (
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"
)

// Style способ отрисовки ряда
type Style string

const (
	StyleLine Style = "line"
	StyleBar  Style = "bar"
	StyleArea Style = "area"
)

// ParseStyle разбирает стиль; пустая строка означает fallback
func ParseStyle(s string, fallback Style) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return fallback, nil
	case StyleLine:
		return StyleLine, nil
	case StyleBar:
		return StyleBar, nil
	case StyleArea:
		return StyleArea, nil
	}

	return "", fmt.Errorf("unknown chart style %q", s)
}

// Point точка ряда
type Point struct {
	Label string
	Value float64
}

// Options параметры отрисовки; нулевые значения заменяются значениями по умолчанию
type Options struct {
	Title         string
	Style         Style
	Width         int
	Height        int
	Padding       int
	Color         string
	NegativeColor string
	MaxTicks      int
	MaxLabels     int
}

func (o Options) withDefaults() Options {
	if o.Style == "" {
		o.Style = StyleLine
	}

	if o.Width <= 0 {
		o.Width = 640
	}

	if o.Height <= 0 {
		o.Height = 320
	}

	if o.Padding <= 0 {
		o.Padding = 40
	}

	if o.Color == "" {
		o.Color = "#22c55e"
	}

	if o.NegativeColor == "" {
		o.NegativeColor = "#ef4444"
	}

	if o.MaxTicks < 2 {
		o.MaxTicks = 5
	}

	if o.MaxLabels <= 0 {
		o.MaxLabels = 8
	}

	return o
}

// Render пишет SVG-график ряда в w
func Render(w io.Writer, series []Point, opts Options) error {
	opts = opts.withDefaults()

	if _, err := ParseStyle(string(opts.Style), StyleLine); err != nil {
		return err
	}

	if 2*opts.Padding >= opts.Width || 2*opts.Padding >= opts.Height {
		return fmt.Errorf("padding %d does not fit %dx%d", opts.Padding, opts.Width, opts.Height)
	}

	c := &canvas{opts: opts}
	c.open()

	if len(series) == 0 {
		c.frame()
		fmt.Fprintf(&c.b, `<text class="empty" x="%s" y="%s" text-anchor="middle">no data</text>`+"\n",
			num(float64(opts.Width)/2), num(float64(opts.Height)/2))
		c.close()

		_, err := io.WriteString(w, c.b.String())

		return err
	}

	lo, hi := bounds(series)
	if opts.Style != StyleLine {
		// столбцы и область строятся от нуля
		lo = math.Min(lo, 0)
		hi = math.Max(hi, 0)
	}

	c.lo, c.hi, c.step = NiceScale(lo, hi, opts.MaxTicks)
	c.n = len(series)

	c.frame()
	c.grid()

	switch opts.Style {
	case StyleBar:
		c.bars(series)
	case StyleArea:
		c.area(series)
	default:
		c.line(series)
	}

	c.labels(series)
	c.close()

	_, err := io.WriteString(w, c.b.String())

	return err
}

type canvas struct {
	b    strings.Builder
	opts Options

	lo, hi, step float64
	n            int
}

func (c *canvas) plotW() float64 { return float64(c.opts.Width - 2*c.opts.Padding) }
func (c *canvas) plotH() float64 { return float64(c.opts.Height - 2*c.opts.Padding) }

func (c *canvas) y(v float64) float64 {
	return float64(c.opts.Padding) + c.plotH()*(c.hi-v)/(c.hi-c.lo)
}

// x центр i-й точки
func (c *canvas) x(i int) float64 {
	p := float64(c.opts.Padding)

	if c.opts.Style == StyleBar {
		band := c.plotW() / float64(c.n)
		return p + band*(float64(i)+0.5)
	}

	if c.n == 1 {
		return p + c.plotW()/2
	}

	return p + c.plotW()*float64(i)/float64(c.n-1)
}

func (c *canvas) open() {
	fmt.Fprintf(&c.b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" role="img">`+"\n",
		c.opts.Width, c.opts.Height, c.opts.Width, c.opts.Height)

	if c.opts.Title != "" {
		title := html.EscapeString(c.opts.Title)
		fmt.Fprintf(&c.b, "<title>%s</title>\n", title)
		fmt.Fprintf(&c.b, `<text class="title" x="%s" y="%s" text-anchor="middle">%s</text>`+"\n",
			num(float64(c.opts.Width)/2), num(float64(c.opts.Padding)/2), title)
	}
}

func (c *canvas) close() {
	c.b.WriteString("</svg>\n")
}

func (c *canvas) frame() {
	p := float64(c.opts.Padding)
	fmt.Fprintf(&c.b, `<rect class="frame" x="%s" y="%s" width="%s" height="%s" fill="none" stroke="#334155"/>`+"\n",
		num(p), num(p), num(c.plotW()), num(c.plotH()))
}

func (c *canvas) grid() {
	left := float64(c.opts.Padding)
	right := left + c.plotW()

	for v := c.lo; v <= c.hi+c.step/2; v += c.step {
		y := c.y(v)
		fmt.Fprintf(&c.b, `<line class="grid" x1="%s" y1="%s" x2="%s" y2="%s" stroke="#1e293b"/>`+"\n",
			num(left), num(y), num(right), num(y))
		fmt.Fprintf(&c.b, `<text class="tick" x="%s" y="%s" text-anchor="end">%s</text>`+"\n",
			num(left-6), num(y+4), tick(v, c.step))
	}

	if c.lo < 0 && c.hi > 0 {
		y := c.y(0)
		fmt.Fprintf(&c.b, `<line class="zero" x1="%s" y1="%s" x2="%s" y2="%s" stroke="#94a3b8"/>`+"\n",
			num(left), num(y), num(right), num(y))
	}
}

func (c *canvas) points(series []Point) string {
	parts := make([]string, len(series))
	for i, p := range series {
		parts[i] = num(c.x(i)) + "," + num(c.y(p.Value))
	}

	return strings.Join(parts, " ")
}

func (c *canvas) line(series []Point) {
	fmt.Fprintf(&c.b, `<polyline class="series" fill="none" stroke="%s" stroke-width="2" points="%s"/>`+"\n",
		c.opts.Color, c.points(series))
}

func (c *canvas) area(series []Point) {
	base := num(c.y(0))

	var d strings.Builder
	fmt.Fprintf(&d, "M%s,%s", num(c.x(0)), base)

	for i, p := range series {
		fmt.Fprintf(&d, " L%s,%s", num(c.x(i)), num(c.y(p.Value)))
	}

	fmt.Fprintf(&d, " L%s,%s Z", num(c.x(len(series)-1)), base)

	fmt.Fprintf(&c.b, `<path class="series" d="%s" fill="%s" fill-opacity="0.3" stroke="%s" stroke-width="2"/>`+"\n",
		d.String(), c.opts.Color, c.opts.Color)
}

func (c *canvas) bars(series []Point) {
	band := c.plotW() / float64(c.n)
	width := band * 0.7
	zero := c.y(0)

	for i, p := range series {
		y := c.y(p.Value)
		top, height := y, zero-y
		color := c.opts.Color

		if p.Value < 0 {
			top, height = zero, y-zero
			color = c.opts.NegativeColor
		}

		fmt.Fprintf(&c.b, `<rect class="bar" x="%s" y="%s" width="%s" height="%s" fill="%s"><title>%s: %s</title></rect>`+"\n",
			num(c.x(i)-width/2), num(top), num(width), num(height), color,
			html.EscapeString(p.Label), num(p.Value))
	}
}

func (c *canvas) labels(series []Point) {
	every := (len(series) + c.opts.MaxLabels - 1) / c.opts.MaxLabels
	y := float64(c.opts.Padding) + c.plotH() + 16

	for i := 0; i < len(series); i += every {
		if series[i].Label == "" {
			continue
		}

		fmt.Fprintf(&c.b, `<text class="label" x="%s" y="%s" text-anchor="middle">%s</text>`+"\n",
			num(c.x(i)), num(y), html.EscapeString(series[i].Label))
	}
}

func bounds(series []Point) (float64, float64) {
	lo, hi := series[0].Value, series[0].Value
	for _, p := range series[1:] {
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}

	return lo, hi
}

// NiceScale подбирает границы оси и шаг делений с "круглыми" значениями
func NiceScale(lo, hi float64, maxTicks int) (float64, float64, float64) {
	if maxTicks < 2 {
		maxTicks = 2
	}

	if lo == hi {
		lo, hi = lo-1, hi+1
	}

	span := niceNumber(hi-lo, false)
	step := niceNumber(span/float64(maxTicks-1), true)

	return math.Floor(lo/step) * step, math.Ceil(hi/step) * step, step
}

func niceNumber(v float64, round bool) float64 {
	exp := math.Floor(math.Log10(v))
	frac := v / math.Pow(10, exp)

	var nice float64
	if round {
		switch {
		case frac < 1.5:
			nice = 1
		case frac < 3:
			nice = 2
		case frac < 7:
			nice = 5
		default:
			nice = 10
		}
	} else {
		switch {
		case frac <= 1:
			nice = 1
		case frac <= 2:
			nice = 2
		case frac <= 5:
			nice = 5
		default:
			nice = 10
		}
	}

	return nice * math.Pow(10, exp)
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func tick(v, step float64) string {
	decimals := 0
	if step < 1 {
		decimals = int(math.Ceil(-math.Log10(step)))
	}

	if math.Abs(v) < step/1e6 {
		v = 0
	}

	return strconv.FormatFloat(v, 'f', decimals, 64)
}
