package api

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"

	"tradejournal/internal/analytics"
	"tradejournal/internal/cache"
	"tradejournal/internal/chart"
	"tradejournal/internal/journal"
	"tradejournal/internal/storage"
	"tradejournal/internal/trace"
)

// DashboardResponse дашборд журнала
type DashboardResponse struct {
	JournalID int    `json:"journalId"`
	Currency  string `json:"currency"`
	analytics.Dashboard
}

func dashboardPrefix(userID int) string {
	return fmt.Sprintf("dashboard:%d:", userID)
}

// location берет часовой пояс из параметра tz
func (h *Handler) location(r *http.Request) (*time.Location, error) {
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		return h.loc, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown time zone %q", journal.ErrValidation, tz)
	}

	return loc, nil
}

// dashboard собирает дашборд журнала, используя кэш
func (h *Handler) dashboard(ctx context.Context, uid, journalID int, loc *time.Location) (DashboardResponse, error) {
	journalID, err := h.resolveJournal(ctx, uid, journalID)
	if err != nil {
		return DashboardResponse{}, err
	}

	key := fmt.Sprintf("%s%d:%s", dashboardPrefix(uid), journalID, loc.String())

	var out DashboardResponse

	found, err := cache.GetJSON(ctx, h.cache, key, &out)
	if err != nil {
		h.logger.Warn("Cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	if found {
		return out, nil
	}

	ctx, span := trace.StartSpan(ctx, "analytics.dashboard")
	defer span.End()

	span.SetAttributes(attribute.Int("journal.id", journalID))

	j, err := h.storage.GetJournal(ctx, uid, journalID)
	if err != nil {
		return DashboardResponse{}, err
	}

	trades, err := h.storage.ListTrades(ctx, uid, storage.TradeFilter{JournalID: journalID})
	if err != nil {
		return DashboardResponse{}, err
	}

	days, err := h.storage.ListNoTradeDays(ctx, uid, storage.NoTradeDayFilter{
		JournalID:         journalID,
		IncludeUnassigned: true,
	})
	if err != nil {
		return DashboardResponse{}, err
	}

	span.SetAttributes(attribute.Int("trades.count", len(trades)))

	out = DashboardResponse{
		JournalID: j.ID,
		Currency:  j.Currency,
		Dashboard: analytics.Build(j.InitialBalance, trades, days, loc),
	}

	if err := cache.SetJSON(ctx, h.cache, key, out, h.cacheTTL); err != nil {
		h.logger.Warn("Cache write failed", slog.String("key", key), slog.Any("error", err))
	}

	return out, nil
}

// HandleDashboard возвращает сводку, кривую баланса, тепловые карты и календарь журнала
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	journalID, err := queryInt(r, "journal_id")
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	loc, err := h.location(r)
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	d, err := h.dashboard(r.Context(), userID(r), journalID, loc)
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	h.respondJSON(w, http.StatusOK, d)
}

// chartSeries строит ряд метрики и стиль по умолчанию
func chartSeries(metric string, d analytics.Dashboard) ([]chart.Point, chart.Style, string, bool) {
	switch metric {
	case "equity":
		points := make([]chart.Point, len(d.Equity))
		for i, p := range d.Equity {
			points[i] = chart.Point{Label: p.Time.Format("01-02"), Value: p.Balance}
		}

		return points, chart.StyleLine, "Equity", true
	case "daily-pnl":
		var points []chart.Point
		for _, day := range d.Calendar {
			if day.Trades == 0 {
				continue
			}

			points = append(points, chart.Point{Label: day.Date[5:], Value: day.PnL})
		}

		return points, chart.StyleBar, "Daily P&L", true
	case "hourly":
		var points []chart.Point
		for _, b := range d.Hourly {
			if b.Trades == 0 {
				continue
			}

			points = append(points, chart.Point{Label: fmt.Sprintf("%02d", b.Hour), Value: b.PnL})
		}

		return points, chart.StyleBar, "P&L by hour", true
	}

	return nil, "", "", false
}

func queryDimension(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 100 || v > 4000 {
		return 0, fmt.Errorf("%w: %s must be between 100 and 4000", journal.ErrValidation, name)
	}

	return v, nil
}

// HandleChart рисует SVG-график метрики журнала
func (h *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	journalID, err := queryInt(r, "journal_id")
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	loc, err := h.location(r)
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	d, err := h.dashboard(r.Context(), userID(r), journalID, loc)
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	series, style, title, ok := chartSeries(mux.Vars(r)["metric"], d.Dashboard)
	if !ok {
		h.respondError(w, http.StatusNotFound, "Unknown chart metric")
		return
	}

	opts := chart.Options{Title: title}

	if opts.Style, err = chart.ParseStyle(r.URL.Query().Get("style"), style); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if opts.Width, err = queryDimension(r, "width"); err != nil {
		h.respondStoreError(w, r, err, "chart")
		return
	}

	if opts.Height, err = queryDimension(r, "height"); err != nil {
		h.respondStoreError(w, r, err, "chart")
		return
	}

	if t := r.URL.Query().Get("title"); t != "" {
		opts.Title = t
	}

	var buf bytes.Buffer
	if err := chart.Render(&buf, series, opts); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "private, max-age=30")
	_, _ = w.Write(buf.Bytes())
}

