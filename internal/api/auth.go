package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tradejournal/internal/auth"
	"tradejournal/internal/storage"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 50
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	UserID   int    `json:"userId"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// HandleLogin обрабатывает вход пользователя
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeJSON(w, r, &req, 0) {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.storage.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		h.respondStoreError(w, r, err, "user")

		return
	}

	if err := h.authService.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Username)
	if err != nil {
		h.respondStoreError(w, r, err, "user")
		return
	}

	h.respondJSON(w, http.StatusOK, LoginResponse{
		Token:    token,
		Username: user.Username,
		UserID:   user.ID,
	})
}

// HandleRegister регистрирует пользователя и заполняет его данные по умолчанию
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decodeJSON(w, r, &req, 0) {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		h.respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	if n := len([]rune(req.Username)); n < minUsernameLength || n > maxUsernameLength {
		h.respondError(w, http.StatusBadRequest, "Username must be between 3 and 50 characters")
		return
	}

	if err := auth.ValidatePassword(req.Password); err != nil {
		h.respondError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	passwordHash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		h.respondStoreError(w, r, err, "user")
		return
	}

	user, err := h.storage.CreateUser(r.Context(), req.Username, passwordHash)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			h.respondError(w, http.StatusConflict, "Username already exists")
			return
		}

		h.respondStoreError(w, r, err, "user")

		return
	}

	if h.defaults != nil {
		if err := h.defaults.SeedUser(r.Context(), h.storage, user.ID); err != nil {
			// пользователь уже создан, недостающее доберет migrate --backfill
			h.logger.Warn("Failed to seed defaults", slog.Int("user_id", user.ID), slog.Any("error", err))
		}
	}

	token, err := h.authService.GenerateToken(user.ID, user.Username)
	if err != nil {
		h.respondStoreError(w, r, err, "user")
		return
	}

	h.respondJSON(w, http.StatusCreated, LoginResponse{
		Token:    token,
		Username: user.Username,
		UserID:   user.ID,
	})
}

// HandleMe возвращает текущего пользователя
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.storage.GetUserByID(r.Context(), userID(r))
	if err != nil {
		h.respondStoreError(w, r, err, "user")
		return
	}

	h.respondJSON(w, http.StatusOK, user)
}

// HandleChangePassword меняет пароль после проверки текущего
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !h.decodeJSON(w, r, &req, 0) {
		return
	}

	if req.CurrentPassword == "" {
		h.respondError(w, http.StatusBadRequest, "Current password is required")
		return
	}

	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		h.respondError(w, http.StatusBadRequest, "New password must be at least 6 characters")
		return
	}

	user, err := h.storage.GetUserByID(r.Context(), userID(r))
	if err != nil {
		h.respondStoreError(w, r, err, "user")
		return
	}

	if err := h.authService.VerifyPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		h.respondError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	passwordHash, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		h.respondStoreError(w, r, err, "user")
		return
	}

	if err := h.storage.UpdatePassword(r.Context(), user.ID, passwordHash); err != nil {
		h.respondStoreError(w, r, err, "user")
		return
	}

	h.logger.Info("🔑 Password changed", slog.Int("user_id", user.ID))

	h.respondSuccess(w, "Password updated", nil)
}
