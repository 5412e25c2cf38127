package api

import (
	"net/http"
	"strings"

	"tradejournal/internal/models"
)

type SetupTypeRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (req SetupTypeRequest) setupType(uid int) (models.SetupType, bool) {
	st := models.SetupType{UserID: uid, Name: strings.TrimSpace(req.Name)}

	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		st.Description = &description
	}

	return st, st.Name != ""
}

// HandleListSetupTypes возвращает типы сетапов пользователя
func (h *Handler) HandleListSetupTypes(w http.ResponseWriter, r *http.Request) {
	setupTypes, err := h.storage.ListSetupTypes(r.Context(), userID(r))
	if err != nil {
		h.respondStoreError(w, r, err, "setup type")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"setupTypes": setupTypes})
}

// HandleCreateSetupType добавляет тип сетапа
func (h *Handler) HandleCreateSetupType(w http.ResponseWriter, r *http.Request) {
	var req SetupTypeRequest
	if !h.decodeJSON(w, r, &req, 0) {
		return
	}

	st, ok := req.setupType(userID(r))
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	if err := h.storage.CreateSetupType(r.Context(), &st); err != nil {
		h.respondStoreError(w, r, err, "setup type")
		return
	}

	h.respondJSON(w, http.StatusCreated, st)
}

// HandleUpdateSetupType переименовывает тип сетапа
func (h *Handler) HandleUpdateSetupType(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req SetupTypeRequest
	if !h.decodeJSON(w, r, &req, 0) {
		return
	}

	st, ok := req.setupType(userID(r))
	if !ok {
		h.respondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	st.ID = id

	if err := h.storage.UpdateSetupType(r.Context(), &st); err != nil {
		h.respondStoreError(w, r, err, "setup type")
		return
	}

	h.respondJSON(w, http.StatusOK, st)
}

// HandleDeleteSetupType удаляет тип сетапа; сделки сохраняют его название
func (h *Handler) HandleDeleteSetupType(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.storage.DeleteSetupType(r.Context(), userID(r), id); err != nil {
		h.respondStoreError(w, r, err, "setup type")
		return
	}

	h.respondSuccess(w, "Setup type deleted", nil)
}
