package otp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/urbanserve/identity/internal/httputil"
	"github.com/urbanserve/identity/pkg/auth"
	"github.com/urbanserve/identity/pkg/domain"
)

// Handler handles one-time code issuance and verification.
type Handler struct {
	logger    *slog.Logger
	otp       *auth.OtpService
	passwords *auth.PasswordService
	tokens    *auth.TokenService
}

// NewHandler creates a new OTP handler.
func NewHandler(logger *slog.Logger, otp *auth.OtpService, passwords *auth.PasswordService, tokens *auth.TokenService) *Handler {
	return &Handler{logger: logger, otp: otp, passwords: passwords, tokens: tokens}
}

// RequestRequest is the code issuance payload.
type RequestRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

// requestablePurposes are the purposes clients may request directly.
// Password reset uses the password endpoints; two-factor codes are issued
// by the login flow after a successful password check.
var requestablePurposes = map[domain.OtpPurpose]bool{
	domain.OtpPurposeLogin:             true,
	domain.OtpPurposeEmailVerification: true,
}

// Request issues a one-time code. Always returns 202 for unknown
// addresses so callers cannot probe for accounts.
// POST /v1/auth/otp/request
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	var req RequestRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	purpose := domain.OtpPurpose(req.Purpose)
	if !requestablePurposes[purpose] {
		httputil.Error(w, http.StatusBadRequest, "unsupported purpose")
		return
	}

	user, err := h.passwords.GetUserByEmail(r.Context(), req.Email)
	if err == nil {
		_, err = h.otp.Generate(r.Context(), user.ID, user.Email, purpose, auth.GenerateOpts{
			IP:        r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			h.logger.Error("code issuance failed", "purpose", purpose, "error", err)
		}
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		h.logger.Error("user lookup failed", "error", err)
	}

	// Same response regardless of outcome. The code travels by email,
	// never in this response.
	httputil.JSON(w, http.StatusAccepted, map[string]string{
		"message": "if the address is registered, a code has been sent",
	})
}

// VerifyRequest is the code verification payload.
type VerifyRequest struct {
	Email   string `json:"email"`
	Code    string `json:"code"`
	Purpose string `json:"purpose"`
}

// Verify checks a one-time code. A valid login code issues a token pair;
// a valid email-verification code marks the address verified.
// POST /v1/auth/otp/verify
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	purpose := domain.OtpPurpose(req.Purpose)
	if !requestablePurposes[purpose] {
		httputil.Error(w, http.StatusBadRequest, "unsupported purpose")
		return
	}

	switch purpose {
	case domain.OtpPurposeEmailVerification:
		result, err := h.passwords.VerifyEmail(r.Context(), req.Email, req.Code)
		if err != nil {
			h.logger.Error("email verification failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "verification failed")
			return
		}
		if !result.Valid {
			writeFailure(w, result)
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]bool{"verified": true})

	case domain.OtpPurposeLogin:
		result, err := h.otp.Validate(r.Context(), req.Email, req.Code, purpose)
		if err != nil {
			h.logger.Error("code validation failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "verification failed")
			return
		}
		if !result.Valid {
			writeFailure(w, result)
			return
		}

		user, err := h.passwords.GetUserByID(r.Context(), result.UserID)
		if err != nil {
			h.logger.Error("user lookup failed after code validation", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "login failed")
			return
		}
		login, err := h.tokens.Issue(r.Context(), user)
		if err != nil {
			h.logger.Error("token issuance failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "login failed")
			return
		}
		httputil.JSON(w, http.StatusOK, login)
	}
}

func writeFailure(w http.ResponseWriter, result *domain.OtpValidationResult) {
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
