package api

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"tradejournal/internal/events"
	"tradejournal/internal/journal"
	"tradejournal/internal/models"
	"tradejournal/internal/storage"
)

const maxImportBytes = 10 << 20

// ImportRequest пачка сделок для импорта
type ImportRequest struct {
	JournalID journal.Number    `json:"journalId"`
	Trades    []json.RawMessage `json:"trades"`
}

// parseTimeParam принимает RFC3339 или дату YYYY-MM-DD.
// Для верхней границы дата означает конец дня.
func parseTimeParam(raw string, loc *time.Location, upper bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}

	date, err := journal.NormalizeDate(raw)
	if err != nil {
		return nil, err
	}

	t, _ := time.ParseInLocation(time.DateOnly, date, loc)
	if upper {
		t = t.AddDate(0, 0, 1)
	}

	return &t, nil
}

func (h *Handler) tradeFilter(r *http.Request) (storage.TradeFilter, error) {
	var (
		f   storage.TradeFilter
		err error
	)

	q := r.URL.Query()

	if f.JournalID, err = queryInt(r, "journal_id"); err != nil {
		return f, err
	}

	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}

	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}

	if f.From, err = parseTimeParam(q.Get("from"), h.loc, false); err != nil {
		return f, err
	}

	if f.To, err = parseTimeParam(q.Get("to"), h.loc, true); err != nil {
		return f, err
	}

	f.Symbol = strings.TrimSpace(q.Get("symbol"))

	return f, nil
}

// HandleListTrades возвращает сделки пользователя с фильтрами
func (h *Handler) HandleListTrades(w http.ResponseWriter, r *http.Request) {
	f, err := h.tradeFilter(r)
	if err != nil {
		h.respondStoreError(w, r, err, "trade")
		return
	}

	trades, err := h.storage.ListTrades(r.Context(), userID(r), f)
	if err != nil {
		h.respondStoreError(w, r, err, "trade")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

// HandleGetTrade возвращает сделку
func (h *Handler) HandleGetTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	t, err := h.storage.GetTrade(r.Context(), userID(r), id)
	if err != nil {
		h.respondStoreError(w, r, err, "trade")
		return
	}

	h.respondJSON(w, http.StatusOK, t)
}

// HandleCreateTrade нормализует и сохраняет сделку. Без journalId сделка попадает в активный журнал.
func (h *Handler) HandleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var in journal.TradeInput
	if !h.decodeJSON(w, r, &in, 0) {
		return
	}

	t, err := journal.NormalizeTrade(in)
	if err != nil {
		h.respondStoreError(w, r, err, "trade")
		return
	}

	t.UserID = userID(r)

	if t.JournalID, err = h.resolveJournal(r.Context(), t.UserID, t.JournalID); err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	if err := h.storage.CreateTrade(r.Context(), &t); err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	h.invalidate(r.Context(), t.UserID)
	h.publish(t.UserID, events.TradeCreated, t.JournalID, t)

	h.respondJSON(w, http.StatusCreated, t)
}

// HandleUpdateTrade полностью заменяет сделку
func (h *Handler) HandleUpdateTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var in journal.TradeInput
	if !h.decodeJSON(w, r, &in, 0) {
		return
	}

	t, err := journal.NormalizeTrade(in)
	if err != nil {
		h.respondStoreError(w, r, err, "trade")
		return
	}

	t.ID = id
	t.UserID = userID(r)

	if err := h.storage.UpdateTrade(r.Context(), &t); err != nil {
		h.respondStoreError(w, r, err, "trade")
		return
	}

	h.invalidate(r.Context(), t.UserID)
	h.publish(t.UserID, events.TradeUpdated, t.JournalID, t)

	h.respondJSON(w, http.StatusOK, t)
}

// HandleDeleteTrade удаляет сделку
func (h *Handler) HandleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	uid := userID(r)

	t, err := h.storage.GetTrade(r.Context(), uid, id)
	if err != nil {
		h.respondStoreError(w, r, err, "trade")
		return
	}

	if err := h.storage.DeleteTrade(r.Context(), uid, id); err != nil {
		h.respondStoreError(w, r, err, "trade")
		return
	}

	h.invalidate(r.Context(), uid)
	h.publish(uid, events.TradeDeleted, t.JournalID, map[string]int{"id": id})

	h.respondSuccess(w, "Trade deleted", nil)
}

// HandleImportTrades импортирует пачку сделок: либо все, либо ни одной
func (h *Handler) HandleImportTrades(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !h.decodeJSON(w, r, &req, maxImportBytes) {
		return
	}

	if len(req.Trades) == 0 {
		h.respondError(w, http.StatusBadRequest, "No trades to import")
		return
	}

	uid := userID(r)

	defaultJournal := 0
	if req.JournalID.Valid {
		defaultJournal = int(req.JournalID.Value)
	}

	trades, err := h.normalizeBatch(r, uid, defaultJournal, req.Trades)
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	if err := h.storage.ImportTrades(r.Context(), trades); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		h.respondStoreError(w, r, err, "journal")

		return
	}

	h.invalidate(r.Context(), uid)
	for _, c := range importedPerJournal(trades) {
		h.publish(uid, events.TradesImported, c.journalID, map[string]int{"count": c.count})
	}

	h.respondJSON(w, http.StatusCreated, map[string]int{"imported": len(trades)})
}

type journalCount struct {
	journalID int
	count     int
}

// importedPerJournal считает импортированные сделки по журналам, по возрастанию id
func importedPerJournal(trades []models.Trade) []journalCount {
	counts := map[int]int{}
	for _, t := range trades {
		counts[t.JournalID]++
	}

	out := make([]journalCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, journalCount{journalID: id, count: n})
	}

	slices.SortFunc(out, func(a, b journalCount) int { return cmp.Compare(a.journalID, b.journalID) })

	return out
}

// normalizeBatch разбирает строки импорта; ошибка содержит номер строки, считая с 1
func (h *Handler) normalizeBatch(r *http.Request, uid, journalID int, rows []json.RawMessage) ([]models.Trade, error) {
	trades := make([]models.Trade, 0, len(rows))

	for i, raw := range rows {
		var in journal.TradeInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("trade %d: %w", i+1, err)
		}

		t, err := journal.NormalizeTrade(in)
		if err != nil {
			return nil, fmt.Errorf("trade %d: %w", i+1, err)
		}

		t.UserID = uid
		if t.JournalID == 0 {
			if journalID == 0 {
				if journalID, err = h.resolveJournal(r.Context(), uid, 0); err != nil {
					return nil, err
				}
			}

			t.JournalID = journalID
		}

		trades = append(trades, t)
	}

	return trades, nil
}
