package mfa

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/urbanserve/identity/internal/http/middleware"
	"github.com/urbanserve/identity/internal/httputil"
	"github.com/urbanserve/identity/pkg/auth"
	"github.com/urbanserve/identity/pkg/domain"
)

// Handler handles authenticator-app TOTP enrollment. Setup and Disable
// re-verify the password so a leaked access token alone cannot change
// MFA state.
type Handler struct {
	logger    *slog.Logger
	mfa       *auth.MFAService
	passwords *auth.PasswordService
}

// NewHandler creates a new MFA handler.
func NewHandler(logger *slog.Logger, mfa *auth.MFAService, passwords *auth.PasswordService) *Handler {
	return &Handler{logger: logger, mfa: mfa, passwords: passwords}
}

// verifyPassword re-authenticates the bearer with their password.
func (h *Handler) verifyPassword(w http.ResponseWriter, r *http.Request, userID uuid.UUID, password string) bool {
	user, err := h.passwords.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load user", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "request failed")
		return false
	}

	authenticated, err := h.passwords.Authenticate(r.Context(), user.Email, password)
	if err != nil || authenticated.ID != userID {
		if errors.Is(err, domain.ErrAccountLocked) {
			httputil.Error(w, http.StatusForbidden, "account temporarily locked")
			return false
		}
		httputil.Error(w, http.StatusUnauthorized, "invalid password")
		return false
	}
	return true
}

// SetupRequest carries the password re-verification for enrollment.
type SetupRequest struct {
	Password string `json:"password"`
}

// Setup starts TOTP enrollment for the authenticated user. Requires the
// account password in addition to the access token.
// POST /v1/auth/mfa/setup (requires auth)
func (h *Handler) Setup(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SetupRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "password is required")
		return
	}

	if !h.verifyPassword(w, r, userID, req.Password) {
		return
	}

	resp, err := h.mfa.Setup(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrMFAAlreadyEnabled) {
			httputil.Error(w, http.StatusConflict, "MFA is already enabled")
			return
		}
		h.logger.Error("mfa setup failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "MFA setup failed")
		return
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// ConfirmRequest carries the first authenticator code.
type ConfirmRequest struct {
	Code string `json:"code"`
}

// Confirm completes enrollment by verifying the first code.
// POST /v1/auth/mfa/confirm (requires auth)
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ConfirmRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.mfa.Confirm(r.Context(), userID, req.Code); err != nil {
		if errors.Is(err, domain.ErrInvalidMFACode) {
			httputil.Error(w, http.StatusBadRequest, "invalid code")
			return
		}
		h.logger.Error("mfa confirmation failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "MFA confirmation failed")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

// DisableRequest carries the step-up proof for turning MFA off: the
// account password plus a current authenticator code.
type DisableRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

// Disable turns TOTP off for the authenticated user.
// POST /v1/auth/mfa/disable (requires auth)
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req DisableRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "password and code are required")
		return
	}

	if !h.verifyPassword(w, r, userID, req.Password) {
		return
	}

	if err := h.mfa.Verify(r.Context(), userID, req.Code); err != nil {
		if errors.Is(err, domain.ErrMFANotEnabled) {
			httputil.Error(w, http.StatusBadRequest, "MFA is not enabled")
			return
		}
		httputil.Error(w, http.StatusUnauthorized, "invalid code")
		return
	}

	if err := h.mfa.Disable(r.Context(), userID); err != nil {
		h.logger.Error("mfa disable failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to disable MFA")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
