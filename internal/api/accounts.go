package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"tradejournal/internal/events"
	"tradejournal/internal/journal"
	"tradejournal/internal/models"
	"tradejournal/internal/notify"
)

// JournalRequest поля журнала от клиента. В PUT отсутствующие поля не меняются.
type JournalRequest struct {
	Name           *string        `json:"name"`
	AccountType    *string        `json:"accountType"`
	InitialBalance journal.Number `json:"initialBalance"`
	Currency       *string        `json:"currency"`
}

func (req JournalRequest) apply(j *models.Journal) error {
	if req.Name != nil {
		j.Name = strings.TrimSpace(*req.Name)
	}

	if req.AccountType != nil {
		j.AccountType = strings.ToLower(strings.TrimSpace(*req.AccountType))
	}

	if req.InitialBalance.Valid {
		j.InitialBalance = req.InitialBalance.Value
	}

	if req.Currency != nil {
		j.Currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
	}

	switch {
	case j.Name == "":
		return fmt.Errorf("%w: name is required", journal.ErrValidation)
	case j.InitialBalance < 0:
		return fmt.Errorf("%w: initialBalance must not be negative", journal.ErrValidation)
	}

	if j.AccountType == "" {
		j.AccountType = "personal"
	}

	if j.Currency == "" {
		j.Currency = "USD"
	}

	return nil
}

// HandleListJournals возвращает журналы пользователя
func (h *Handler) HandleListJournals(w http.ResponseWriter, r *http.Request) {
	journals, err := h.storage.ListJournals(r.Context(), userID(r))
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"journals": journals})
}

// HandleCreateJournal создает журнал
func (h *Handler) HandleCreateJournal(w http.ResponseWriter, r *http.Request) {
	var req JournalRequest
	if !h.decodeJSON(w, r, &req, 0) {
		return
	}

	j := models.Journal{UserID: userID(r)}
	if err := req.apply(&j); err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	if err := h.storage.CreateJournal(r.Context(), &j); err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	if j.IsActive {
		h.publish(j.UserID, events.JournalActivated, j.ID, j)
	}

	h.respondJSON(w, http.StatusCreated, j)
}

// HandleGetJournal возвращает журнал
func (h *Handler) HandleGetJournal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	j, err := h.storage.GetJournal(r.Context(), userID(r), id)
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	h.respondJSON(w, http.StatusOK, j)
}

// HandleUpdateJournal обновляет название, тип, баланс и валюту журнала
func (h *Handler) HandleUpdateJournal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req JournalRequest
	if !h.decodeJSON(w, r, &req, 0) {
		return
	}

	j, err := h.storage.GetJournal(r.Context(), userID(r), id)
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	if err := req.apply(&j); err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	if err := h.storage.UpdateJournal(r.Context(), &j); err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	h.invalidate(r.Context(), j.UserID)

	h.respondJSON(w, http.StatusOK, j)
}

// HandleDeleteJournal удаляет журнал вместе со сделками
func (h *Handler) HandleDeleteJournal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	uid := userID(r)

	promoted, err := h.storage.DeleteJournal(r.Context(), uid, id)
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	h.invalidate(r.Context(), uid)
	h.publish(uid, events.JournalDeleted, id, map[string]int{"activeId": promoted})

	if promoted > 0 {
		h.publish(uid, events.JournalActivated, promoted, nil)
	}

	h.respondSuccess(w, "Journal deleted", map[string]int{"activeId": promoted})
}

// HandleActivateJournal делает журнал активным
func (h *Handler) HandleActivateJournal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, events.JournalActivated, func(ctx context.Context, uid, id int) error {
		return h.storage.ActivateJournal(ctx, uid, id)
	})
}

// HandleBlowJournal помечает журнал как слитый
func (h *Handler) HandleBlowJournal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, events.JournalBlown, func(ctx context.Context, uid, id int) error {
		return h.storage.MarkJournalBlown(ctx, uid, id)
	})
}

// HandlePassJournal помечает журнал как пройденный
func (h *Handler) HandlePassJournal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, events.JournalPassed, func(ctx context.Context, uid, id int) error {
		return h.storage.MarkJournalPassed(ctx, uid, id)
	})
}

// transition меняет состояние журнала, рассылает событие и, для слива/прохождения, уведомление
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, eventType string, fn func(ctx context.Context, uid, id int) error) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	uid := userID(r)

	if err := fn(r.Context(), uid, id); err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	j, err := h.storage.GetJournal(r.Context(), uid, id)
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	h.invalidate(r.Context(), uid)
	h.publish(uid, eventType, id, j)

	if j.Terminal() && eventType != events.JournalActivated {
		if err := h.notifier.Notify(r.Context(), uid, notify.JournalClosed(username(r), j)); err != nil {
			h.logger.Warn("Failed to notify", slog.Int("journal_id", id), slog.Any("error", err))
		}
	}

	h.respondJSON(w, http.StatusOK, j)
}
