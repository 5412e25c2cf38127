package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"tradejournal/internal/api/middleware"
	"tradejournal/internal/auth"
	"tradejournal/internal/cache"
	"tradejournal/internal/defaults"
	"tradejournal/internal/events"
	"tradejournal/internal/journal"
	"tradejournal/internal/notify"
	"tradejournal/internal/storage"
	"tradejournal/internal/upload"
)

const maxBodyBytes = 1 << 20

// Deps зависимости обработчиков
type Deps struct {
	Storage  *storage.Storage
	Auth     *auth.Service
	Defaults *defaults.Defaults
	Uploads  *upload.Store
	Hub      *events.Hub
	Cache    cache.Store
	CacheTTL time.Duration
	Notifier notify.Notifier
	Location *time.Location
	Logger   *slog.Logger
}

// Handler обрабатывает API запросы
type Handler struct {
	storage     *storage.Storage
	authService *auth.Service
	defaults    *defaults.Defaults
	uploads     *upload.Store
	hub         *events.Hub
	cache       cache.Store
	cacheTTL    time.Duration
	notifier    notify.Notifier
	loc         *time.Location
	logger      *slog.Logger
}

func New(d Deps) *Handler {
	h := &Handler{
		storage:     d.Storage,
		authService: d.Auth,
		defaults:    d.Defaults,
		uploads:     d.Uploads,
		hub:         d.Hub,
		cache:       d.Cache,
		cacheTTL:    d.CacheTTL,
		notifier:    d.Notifier,
		loc:         d.Location,
		logger:      d.Logger,
	}

	if h.cache == nil {
		h.cache = cache.NewMemoryStore()
	}

	if h.cacheTTL <= 0 {
		h.cacheTTL = 30 * time.Second
	}

	if h.notifier == nil {
		h.notifier = notify.Nop{}
	}

	if h.loc == nil {
		h.loc = time.UTC
	}

	return h
}

// Helper функции для JSON ответов

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("Failed to write response", slog.Any("error", err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, ErrorResponse{Error: message})
}

func (h *Handler) respondSuccess(w http.ResponseWriter, message string, data any) {
	h.respondJSON(w, http.StatusOK, SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// respondStoreError переводит ошибки домена и хранилища в HTTP статус.
// what - название сущности для сообщения "not found".
func (h *Handler) respondStoreError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, journal.ErrValidation):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrWeakPassword):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		h.respondError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, journal.ErrItemNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		h.respondError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, storage.ErrLastJournal), errors.Is(err, storage.ErrClosed):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrConflict):
		h.respondError(w, http.StatusConflict, what+" already exists")
	case errors.Is(err, upload.ErrTooLarge):
		h.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, upload.ErrUnsupportedType):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		h.logger.Debug("Request canceled", slog.String("path", r.URL.Path))
	default:
		h.logger.Error("Request failed",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		h.respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON читает тело запроса не больше limit байт
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any, limit int64) bool {
	if limit <= 0 {
		limit = maxBodyBytes
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}

		if errors.Is(err, journal.ErrValidation) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return false
		}

		h.respondError(w, http.StatusBadRequest, "Invalid request body")

		return false
	}

	return true
}

// pathID разбирает числовой параметр пути; при ошибке отвечает 400
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name))
		return 0, false
	}

	return id, true
}

// queryInt разбирает необязательный числовой параметр запроса
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", journal.ErrValidation, name)
	}

	return v, nil
}

func userID(r *http.Request) int {
	id, _ := middleware.GetUserID(r.Context())
	return id
}

func username(r *http.Request) string {
	name, _ := middleware.GetUsername(r.Context())
	return name
}

// publish отправляет событие подключенным клиентам пользователя
func (h *Handler) publish(userID int, eventType string, journalID int, payload any) {
	if h.hub == nil {
		return
	}

	h.hub.Publish(userID, events.Event{Type: eventType, JournalID: journalID, Payload: payload})
}

// invalidate сбрасывает кэш аналитики пользователя после изменения данных
func (h *Handler) invalidate(ctx context.Context, userID int) {
	if err := h.cache.DeletePrefix(ctx, dashboardPrefix(userID)); err != nil {
		h.logger.Warn("Failed to invalidate cache", slog.Int("user_id", userID), slog.Any("error", err))
	}
}

// resolveJournal возвращает журнал по id или активный журнал пользователя
func (h *Handler) resolveJournal(ctx context.Context, userID, journalID int) (int, error) {
	if journalID > 0 {
		return journalID, nil
	}

	j, err := h.storage.GetActiveJournal(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("%w: no active journal, create one first", journal.ErrValidation)
	}

	if err != nil {
		return 0, err
	}

	return j.ID, nil
}
