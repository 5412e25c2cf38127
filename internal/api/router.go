package api

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"tradejournal/internal/api/middleware"
)

// SetupRouter настраивает роутинг и цепочку middleware.
// webDir - каталог со статикой SPA, пустая строка отключает раздачу.
func (h *Handler) SetupRouter(webDir string) http.Handler {
	r := mux.NewRouter()

	// Публичные маршруты (не требуют аутентификации)
	r.HandleFunc("/api/auth/login", h.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/register", h.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)

	if h.uploads != nil {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(noListing{http.Dir(h.uploads.Dir())})))
	}

	// Защищенные маршруты (требуют аутентификации)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(h.authService))

	// Journals
	api.HandleFunc("/accounts", h.HandleListJournals).Methods(http.MethodGet)
	api.HandleFunc("/accounts", h.HandleCreateJournal).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id:[0-9]+}", h.HandleGetJournal).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id:[0-9]+}", h.HandleUpdateJournal).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{id:[0-9]+}", h.HandleDeleteJournal).Methods(http.MethodDelete)
	api.HandleFunc("/accounts/{id:[0-9]+}/activate", h.HandleActivateJournal).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id:[0-9]+}/blow", h.HandleBlowJournal).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id:[0-9]+}/pass", h.HandlePassJournal).Methods(http.MethodPost)
	api.HandleFunc("/journals/{id:[0-9]+}/snapshots", h.HandleListSnapshots).Methods(http.MethodGet)

	// Trades
	api.HandleFunc("/trades", h.HandleListTrades).Methods(http.MethodGet)
	api.HandleFunc("/trades", h.HandleCreateTrade).Methods(http.MethodPost)
	api.HandleFunc("/trades/import", h.HandleImportTrades).Methods(http.MethodPost)
	api.HandleFunc("/trades/{id:[0-9]+}", h.HandleGetTrade).Methods(http.MethodGet)
	api.HandleFunc("/trades/{id:[0-9]+}", h.HandleUpdateTrade).Methods(http.MethodPut)
	api.HandleFunc("/trades/{id:[0-9]+}", h.HandleDeleteTrade).Methods(http.MethodDelete)

	// Checklists
	api.HandleFunc("/checklists", h.HandleListChecklists).Methods(http.MethodGet)
	api.HandleFunc("/checklists", h.HandleCreateChecklist).Methods(http.MethodPost)
	api.HandleFunc("/checklists/{id:[0-9]+}", h.HandleGetChecklist).Methods(http.MethodGet)
	api.HandleFunc("/checklists/{id:[0-9]+}", h.HandleUpdateChecklist).Methods(http.MethodPut)
	api.HandleFunc("/checklists/{id:[0-9]+}", h.HandleDeleteChecklist).Methods(http.MethodDelete)
	api.HandleFunc("/checklists/{id:[0-9]+}/items/{itemId}/toggle", h.HandleToggleChecklistItem).Methods(http.MethodPost)

	// Setup types
	api.HandleFunc("/setup-types", h.HandleListSetupTypes).Methods(http.MethodGet)
	api.HandleFunc("/setup-types", h.HandleCreateSetupType).Methods(http.MethodPost)
	api.HandleFunc("/setup-types/{id:[0-9]+}", h.HandleUpdateSetupType).Methods(http.MethodPut)
	api.HandleFunc("/setup-types/{id:[0-9]+}", h.HandleDeleteSetupType).Methods(http.MethodDelete)

	// No-trade days
	api.HandleFunc("/no-trade-days", h.HandleListNoTradeDays).Methods(http.MethodGet)
	api.HandleFunc("/no-trade-days", h.HandleCreateNoTradeDay).Methods(http.MethodPost)
	api.HandleFunc("/no-trade-days/{id:[0-9]+}", h.HandleGetNoTradeDay).Methods(http.MethodGet)
	api.HandleFunc("/no-trade-days/{id:[0-9]+}", h.HandleUpdateNoTradeDay).Methods(http.MethodPut)
	api.HandleFunc("/no-trade-days/{id:[0-9]+}", h.HandleDeleteNoTradeDay).Methods(http.MethodDelete)

	// Uploads
	api.HandleFunc("/upload", h.HandleUpload).Methods(http.MethodPost)

	// User
	api.HandleFunc("/user/me", h.HandleMe).Methods(http.MethodGet)
	api.HandleFunc("/user/password", h.HandleChangePassword).Methods(http.MethodPut)
	api.HandleFunc("/settings", h.HandleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.HandleUpdateSettings).Methods(http.MethodPut)

	// Analytics
	api.HandleFunc("/analytics/dashboard", h.HandleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/analytics/charts/{metric:[a-z-]+}.svg", h.HandleChart).Methods(http.MethodGet)

	// Push channel
	api.HandleFunc("/events", h.HandleEvents).Methods(http.MethodGet)

	// Статические файлы (должны быть в конце)
	if webDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(webDir)))
	}

	var handler http.Handler = r
	handler = middleware.CORS(handler)
	handler = middleware.Logger(h.logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.Recover(h.logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}

// noListing запрещает листинг каталога загрузок
type noListing struct {
	fs http.FileSystem
}

func (n noListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if stat.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}

	return f, nil
}

// HandleHealth возвращает статус здоровья сервиса
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.storage.Ping(ctx); err != nil {
		h.logger.Warn("Health check failed", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "database unavailable")

		return
	}

	h.respondSuccess(w, "OK", map[string]string{
		"status": "healthy",
	})
}
