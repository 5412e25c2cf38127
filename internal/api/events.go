package api

import "net/http"

// HandleEvents подписывает клиента на события пользователя через websocket
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.respondError(w, http.StatusServiceUnavailable, "Events are disabled")
		return
	}

	h.hub.ServeWS(w, r, userID(r))
}
