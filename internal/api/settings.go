package api

import (
	"fmt"
	"net/http"
	"strings"

	"tradejournal/internal/journal"
	"tradejournal/internal/models"
)

var pnlColorSchemes = map[string]bool{"green-red": true, "blue-orange": true}

func validateSettings(s *models.UserSettings) error {
	s.Currency = strings.ToUpper(strings.TrimSpace(s.Currency))
	s.Preferences.Theme = strings.TrimSpace(s.Preferences.Theme)

	p := s.Preferences

	switch {
	case s.InitialBalance < 0:
		return fmt.Errorf("%w: initialBalance must not be negative", journal.ErrValidation)
	case s.Currency == "":
		return fmt.Errorf("%w: currency is required", journal.ErrValidation)
	case p.GlowIntensity < 0 || p.GlowIntensity > 1:
		return fmt.Errorf("%w: glowIntensity must be between 0 and 1", journal.ErrValidation)
	case p.BackgroundOpacity < 0 || p.BackgroundOpacity > 1:
		return fmt.Errorf("%w: backgroundOpacity must be between 0 and 1", journal.ErrValidation)
	case p.NumberPrecision < 0 || p.NumberPrecision > 8:
		return fmt.Errorf("%w: numberPrecision must be between 0 and 8", journal.ErrValidation)
	case p.PnLColorScheme != "" && !pnlColorSchemes[p.PnLColorScheme]:
		return fmt.Errorf("%w: unknown pnlColorScheme %q", journal.ErrValidation, p.PnLColorScheme)
	}

	return nil
}

func (h *Handler) defaultSettings() models.UserSettings {
	if h.defaults == nil {
		return models.UserSettings{Currency: "USD", SchemaVersion: models.SettingsSchemaVersion}
	}

	return h.defaults.UserSettings()
}

// HandleGetSettings возвращает настройки; если их нет, значения по умолчанию
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.storage.GetSettings(r.Context(), userID(r), h.defaultSettings())
	if err != nil {
		h.respondStoreError(w, r, err, "settings")
		return
	}

	h.respondJSON(w, http.StatusOK, settings)
}

// HandleUpdateSettings сохраняет настройки целиком
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	settings := h.defaultSettings()
	if !h.decodeJSON(w, r, &settings, 0) {
		return
	}

	if err := validateSettings(&settings); err != nil {
		h.respondStoreError(w, r, err, "settings")
		return
	}

	settings.UserID = userID(r)
	settings.SchemaVersion = models.SettingsSchemaVersion

	if err := h.storage.UpsertSettings(r.Context(), &settings); err != nil {
		h.respondStoreError(w, r, err, "settings")
		return
	}

	h.respondJSON(w, http.StatusOK, settings)
}
