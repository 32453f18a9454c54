package account

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/urbanserve/identity/internal/http/middleware"
	"github.com/urbanserve/identity/internal/httputil"
	"github.com/urbanserve/identity/pkg/auth"
	"github.com/urbanserve/identity/pkg/domain"
)

// Handler handles registration and password lifecycle endpoints.
type Handler struct {
	logger    *slog.Logger
	passwords *auth.PasswordService
}

// NewHandler creates a new account handler.
func NewHandler(logger *slog.Logger, passwords *auth.PasswordService) *Handler {
	return &Handler{logger: logger, passwords: passwords}
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Username  *string `json:"username,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// Register creates a new account.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.passwords.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName, auth.RegisterOpts{
		Username:  req.Username,
		Phone:     req.Phone,
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserAlreadyExists), errors.Is(err, domain.ErrUsernameAlreadyExists):
			httputil.Error(w, http.StatusConflict, err.Error())
		case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrInvalidUsername), errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("registration failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	httputil.JSON(w, http.StatusCreated, map[string]any{
		"id":    user.ID.String(),
		"email": user.Email,
	})
}

// VerifyEmailRequest is the email verification payload.
type VerifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyEmail confirms an email address with a one-time code.
// POST /v1/auth/verify-email
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.passwords.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		h.logger.Error("email verification failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "verification failed")
		return
	}
	if !result.Valid {
		writeOtpFailure(w, result)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// ForgotPasswordRequest is the reset-request payload.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword issues a password reset code. Always returns 202 so
// callers cannot probe for registered addresses.
// POST /v1/auth/password/forgot
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.passwords.RequestPasswordReset(r.Context(), req.Email, auth.GenerateOpts{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.Error("password reset request failed", "error", err)
	}

	// Same response regardless of outcome.
	httputil.JSON(w, http.StatusAccepted, map[string]string{
		"message": "if the address is registered, a reset code has been sent",
	})
}

// ResetPasswordRequest is the reset-completion payload.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// ResetPassword completes a password reset with a one-time code.
// POST /v1/auth/password/reset
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.passwords.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword)
	if err != nil {
		if errors.Is(err, domain.ErrWeakPassword) {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("password reset failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "password reset failed")
		return
	}
	if !result.Valid {
		writeOtpFailure(w, result)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]bool{"reset": true})
}

// ChangePasswordRequest is the authenticated password change payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword changes the password of the authenticated user.
// POST /v1/auth/password/change (requires auth)
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.passwords.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "current password is incorrect")
		case errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("password change failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "password change failed")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeOtpFailure maps a failed validation result to an HTTP response
// carrying the machine-readable error code.
func writeOtpFailure(w http.ResponseWriter, result *domain.OtpValidationResult) {
	status := http.StatusBadRequest
	switch result.ErrorCode {
	case domain.OtpErrorNotFound:
		status = http.StatusNotFound
	case domain.OtpErrorMaxAttempts:
		status = http.StatusTooManyRequests
	}
	httputil.JSON(w, status, map[string]any{
		"error":              "code verification failed",
		"code":               string(result.ErrorCode),
		"remaining_attempts": result.RemainingAttempts,
	})
}
