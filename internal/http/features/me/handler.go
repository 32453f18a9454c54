package me

import (
	"log/slog"
	"net/http"

	"github.com/urbanserve/identity/internal/http/middleware"
	"github.com/urbanserve/identity/internal/httputil"
	"github.com/urbanserve/identity/pkg/auth"
)

// Handler serves the authenticated user's profile.
type Handler struct {
	logger    *slog.Logger
	passwords *auth.PasswordService
}

// NewHandler creates a new profile handler.
func NewHandler(logger *slog.Logger, passwords *auth.PasswordService) *Handler {
	return &Handler{logger: logger, passwords: passwords}
}

// Get returns the current user's profile with the roles, groups, and
// permissions carried by the access token.
// GET /v1/me (requires auth)
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	claims, _ := middleware.GetClaims(r.Context())

	user, err := h.passwords.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("profile lookup failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	username := ""
	if user.Username != nil {
		username = *user.Username
	}

	resp := map[string]any{
		"id":             user.ID.String(),
		"email":          user.Email,
		"username":       username,
		"first_name":     user.FirstName,
		"last_name":      user.LastName,
		"email_verified": user.EmailVerified,
		"phone_verified": user.PhoneVerified,
		"active":         user.Active,
		"mfa_enabled":    user.MFAEnabled,
	}
	if claims != nil {
		resp["roles"] = claims.Roles
		resp["groups"] = claims.Groups
		resp["permissions"] = claims.Permissions
	}

	httputil.JSON(w, http.StatusOK, resp)
}
