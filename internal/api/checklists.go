package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"tradejournal/internal/journal"
	"tradejournal/internal/models"
)

// HandleListChecklists возвращает чек-листы пользователя
func (h *Handler) HandleListChecklists(w http.ResponseWriter, r *http.Request) {
	checklists, err := h.storage.ListChecklists(r.Context(), userID(r))
	if err != nil {
		h.respondStoreError(w, r, err, "checklist")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"checklists": checklists})
}

// HandleGetChecklist возвращает чек-лист
func (h *Handler) HandleGetChecklist(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.storage.GetChecklist(r.Context(), userID(r), id)
	if err != nil {
		h.respondStoreError(w, r, err, "checklist")
		return
	}

	h.respondJSON(w, http.StatusOK, c)
}

// HandleCreateChecklist создает чек-лист
func (h *Handler) HandleCreateChecklist(w http.ResponseWriter, r *http.Request) {
	var c models.Checklist
	if !h.decodeJSON(w, r, &c, 0) {
		return
	}

	c.UserID = userID(r)

	if err := journal.NormalizeChecklist(&c); err != nil {
		h.respondStoreError(w, r, err, "checklist")
		return
	}

	if err := h.storage.CreateChecklist(r.Context(), &c); err != nil {
		h.respondStoreError(w, r, err, "checklist")
		return
	}

	h.respondJSON(w, http.StatusCreated, c)
}

// HandleUpdateChecklist заменяет чек-лист целиком
func (h *Handler) HandleUpdateChecklist(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var c models.Checklist
	if !h.decodeJSON(w, r, &c, 0) {
		return
	}

	c.ID = id
	c.UserID = userID(r)

	if err := journal.NormalizeChecklist(&c); err != nil {
		h.respondStoreError(w, r, err, "checklist")
		return
	}

	if err := h.storage.UpdateChecklist(r.Context(), &c); err != nil {
		h.respondStoreError(w, r, err, "checklist")
		return
	}

	updated, err := h.storage.GetChecklist(r.Context(), c.UserID, id)
	if err != nil {
		h.respondStoreError(w, r, err, "checklist")
		return
	}

	h.respondJSON(w, http.StatusOK, updated)
}

// HandleDeleteChecklist удаляет чек-лист
func (h *Handler) HandleDeleteChecklist(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.storage.DeleteChecklist(r.Context(), userID(r), id); err != nil {
		h.respondStoreError(w, r, err, "checklist")
		return
	}

	h.respondSuccess(w, "Checklist deleted", nil)
}

// HandleToggleChecklistItem переключает пункт и возвращает чек-лист с новым процентом выполнения
func (h *Handler) HandleToggleChecklistItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.storage.ToggleChecklistItem(r.Context(), userID(r), id, mux.Vars(r)["itemId"])
	if err != nil {
		h.respondStoreError(w, r, err, "checklist")
		return
	}

	h.respondJSON(w, http.StatusOK, c)
}
