package api

import (
	"net/http"
	"strings"

	"tradejournal/internal/journal"
	"tradejournal/internal/models"
	"tradejournal/internal/storage"
)

// NoTradeDayRequest запись о дне без сделок. Дата может прийти с временем, берутся первые 10 символов.
type NoTradeDayRequest struct {
	JournalID     *int    `json:"journalId"`
	Date          string  `json:"date"`
	Notes         string  `json:"notes"`
	ScreenshotURL *string `json:"screenshotUrl"`
	VoiceNoteURL  *string `json:"voiceNoteUrl"`
}

func (req NoTradeDayRequest) day(uid int) (models.NoTradeDay, error) {
	date, err := journal.NormalizeDate(req.Date)
	if err != nil {
		return models.NoTradeDay{}, err
	}

	d := models.NoTradeDay{
		UserID:        uid,
		Date:          date,
		Notes:         strings.TrimSpace(req.Notes),
		ScreenshotURL: emptyToNil(req.ScreenshotURL),
		VoiceNoteURL:  emptyToNil(req.VoiceNoteURL),
	}

	if req.JournalID != nil && *req.JournalID > 0 {
		id := *req.JournalID
		d.JournalID = &id
	}

	return d, nil
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}

	v := strings.TrimSpace(*s)

	return &v
}

// HandleListNoTradeDays возвращает дни без сделок
func (h *Handler) HandleListNoTradeDays(w http.ResponseWriter, r *http.Request) {
	journalID, err := queryInt(r, "journal_id")
	if err != nil {
		h.respondStoreError(w, r, err, "no-trade day")
		return
	}

	f := storage.NoTradeDayFilter{JournalID: journalID}

	for param, dst := range map[string]*string{"from": &f.From, "to": &f.To} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}

		if *dst, err = journal.NormalizeDate(raw); err != nil {
			h.respondStoreError(w, r, err, "no-trade day")
			return
		}
	}

	days, err := h.storage.ListNoTradeDays(r.Context(), userID(r), f)
	if err != nil {
		h.respondStoreError(w, r, err, "no-trade day")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"noTradeDays": days})
}

// HandleGetNoTradeDay возвращает запись
func (h *Handler) HandleGetNoTradeDay(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	d, err := h.storage.GetNoTradeDay(r.Context(), userID(r), id)
	if err != nil {
		h.respondStoreError(w, r, err, "no-trade day")
		return
	}

	h.respondJSON(w, http.StatusOK, d)
}

// HandleCreateNoTradeDay создает запись или обновляет существующую за ту же дату
func (h *Handler) HandleCreateNoTradeDay(w http.ResponseWriter, r *http.Request) {
	var req NoTradeDayRequest
	if !h.decodeJSON(w, r, &req, 0) {
		return
	}

	d, err := req.day(userID(r))
	if err != nil {
		h.respondStoreError(w, r, err, "no-trade day")
		return
	}

	created, err := h.storage.CreateNoTradeDay(r.Context(), &d)
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	h.invalidate(r.Context(), d.UserID)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	h.respondJSON(w, status, d)
}

// HandleUpdateNoTradeDay обновляет запись
func (h *Handler) HandleUpdateNoTradeDay(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req NoTradeDayRequest
	if !h.decodeJSON(w, r, &req, 0) {
		return
	}

	d, err := req.day(userID(r))
	if err != nil {
		h.respondStoreError(w, r, err, "no-trade day")
		return
	}

	d.ID = id

	if err := h.storage.UpdateNoTradeDay(r.Context(), &d); err != nil {
		h.respondStoreError(w, r, err, "no-trade day")
		return
	}

	h.invalidate(r.Context(), d.UserID)

	h.respondJSON(w, http.StatusOK, d)
}

// HandleDeleteNoTradeDay удаляет запись
func (h *Handler) HandleDeleteNoTradeDay(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	uid := userID(r)

	if err := h.storage.DeleteNoTradeDay(r.Context(), uid, id); err != nil {
		h.respondStoreError(w, r, err, "no-trade day")
		return
	}

	h.invalidate(r.Context(), uid)

	h.respondSuccess(w, "No-trade day deleted", nil)
}
