package api

import (
	"net/http"

	"tradejournal/internal/journal"
)

// HandleListSnapshots возвращает ночные срезы журнала
func (h *Handler) HandleListSnapshots(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var from, to string

	for param, dst := range map[string]*string{"from": &from, "to": &to} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}

		date, err := journal.NormalizeDate(raw)
		if err != nil {
			h.respondStoreError(w, r, err, "snapshot")
			return
		}

		*dst = date
	}

	snapshots, err := h.storage.ListDailySnapshots(r.Context(), userID(r), id, from, to)
	if err != nil {
		h.respondStoreError(w, r, err, "journal")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"snapshots": snapshots})
}
