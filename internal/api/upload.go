package api

import (
	"errors"
	"log/slog"
	"net/http"
)

// multipart заголовки и поля формы сверх размера файла
const multipartOverhead = 1 << 20

// HandleUpload сохраняет скриншот или голосовую заметку и возвращает публичный URL
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if h.uploads == nil {
		h.respondError(w, http.StatusServiceUnavailable, "Uploads are disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}

		h.respondError(w, http.StatusBadRequest, "Multipart field \"file\" is required")

		return
	}
	defer file.Close()

	url, err := h.uploads.Save(file, header.Filename)
	if err != nil {
		h.respondStoreError(w, r, err, "file")
		return
	}

	h.logger.Info("💾 File uploaded",
		slog.Int("user_id", userID(r)),
		slog.String("url", url),
		slog.Int64("size", header.Size))

	h.respondJSON(w, http.StatusCreated, map[string]string{"url": url})
}
