package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/urbanserve/identity/internal/httputil"
	"github.com/urbanserve/identity/pkg/auth"
	"github.com/urbanserve/identity/pkg/domain"
)

// Handler handles login, refresh, and logout.
type Handler struct {
	logger       *slog.Logger
	passwords    *auth.PasswordService
	tokens       *auth.TokenService
	otp          *auth.OtpService
	mfa          *auth.MFAService
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new session handler. mfa may be nil when TOTP is
// not configured; MFA-enabled users then receive email codes.
func NewHandler(logger *slog.Logger, passwords *auth.PasswordService, tokens *auth.TokenService, otp *auth.OtpService, mfa *auth.MFAService, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		passwords:    passwords,
		tokens:       tokens,
		otp:          otp,
		mfa:          mfa,
		cookieConfig: cookieConfig,
	}
}

// LoginRequest is the password login payload.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login authenticates with identifier (email or username) and password.
// Accounts with MFA enabled get a second-factor code by email and must
// complete the login via LoginMFA.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Identifier == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "identifier and password are required")
		return
	}

	user, err := h.passwords.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domain.ErrAccountLocked):
			httputil.Error(w, http.StatusForbidden, "account temporarily locked")
		case errors.Is(err, domain.ErrAccountInactive):
			httputil.Error(w, http.StatusForbidden, "account is deactivated")
		default:
			h.logger.Error("login failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	if user.MFAEnabled {
		_, err := h.otp.Generate(r.Context(), user.ID, user.Email, domain.OtpPurposeTwoFactorAuth, auth.GenerateOpts{
			IP:        r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
		if err != nil {
			h.logger.Error("failed to issue second-factor code", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "login failed")
			return
		}
		challenge, err := h.tokens.IssueMFAChallenge(user)
		if err != nil {
			h.logger.Error("failed to create MFA challenge", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "login failed")
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]any{
			"mfa_required":    true,
			"challenge_token": challenge,
		})
		return
	}

	result, err := h.tokens.Issue(r.Context(), user)
	if err != nil {
		h.logger.Error("token issuance failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	h.writeLoginResult(w, r, result)
}

// LoginMFARequest is the second-factor payload. The challenge token comes
// from the Login response and proves the password check already passed.
// Method "email" submits the emailed code; "totp" submits an
// authenticator-app code.
type LoginMFARequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
	Method         string `json:"method,omitempty"`
}

// LoginMFA completes an MFA login. Without a valid challenge token no
// code, emailed or authenticator, is even looked at.
// POST /v1/auth/login/mfa
func (h *Handler) LoginMFA(w http.ResponseWriter, r *http.Request) {
	var req LoginMFARequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ChallengeToken == "" || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "challenge_token and code are required")
		return
	}

	userID, err := h.tokens.ValidateMFAChallenge(req.ChallengeToken)
	if err != nil {
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired challenge")
		return
	}
	user, err := h.passwords.GetUserByID(r.Context(), userID)
	if err != nil {
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired challenge")
		return
	}

	if req.Method == "totp" {
		if h.mfa == nil {
			httputil.Error(w, http.StatusBadRequest, "authenticator codes are not supported")
			return
		}
		if err := h.mfa.Verify(r.Context(), user.ID, req.Code); err != nil {
			httputil.Error(w, http.StatusUnauthorized, "invalid code")
			return
		}
	} else {
		result, err := h.otp.Validate(r.Context(), user.Email, req.Code, domain.OtpPurposeTwoFactorAuth)
		if err != nil {
			h.logger.Error("second-factor validation failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "login failed")
			return
		}
		if !result.Valid {
			httputil.ErrorCode(w, http.StatusUnauthorized, string(result.ErrorCode), "code verification failed")
			return
		}
	}

	result, err := h.tokens.Issue(r.Context(), user)
	if err != nil {
		h.logger.Error("token issuance failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	h.writeLoginResult(w, r, result)
}

// RefreshRequest is the token refresh payload (mobile clients).
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new token pair.
// POST /v1/auth/refresh
//
// Web clients carry the refresh token in a cookie; mobile clients send
// it in the body.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var refreshToken string

	if httputil.IsMobileClient(r) {
		var req RefreshRequest
		if err := httputil.Decode(r, &req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		refreshToken = req.RefreshToken
	} else {
		refreshToken, _ = httputil.GetRefreshTokenFromCookie(r)
	}

	if refreshToken == "" {
		httputil.Error(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	result, err := h.tokens.Refresh(r.Context(), refreshToken)
	if err != nil {
		if !httputil.IsMobileClient(r) {
			httputil.ClearAuthCookies(w, h.cookieConfig)
		}
		httputil.Error(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	h.writeLoginResult(w, r, result)
}

// LogoutRequest is the logout payload (mobile clients).
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout revokes the stored refresh token.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var refreshToken string

	if httputil.IsMobileClient(r) {
		var req LogoutRequest
		if err := httputil.Decode(r, &req); err != nil {
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		refreshToken = req.RefreshToken
	} else {
		refreshToken, _ = httputil.GetRefreshTokenFromCookie(r)
	}

	if refreshToken != "" {
		// Failures are not surfaced, to prevent token probing.
		_ = h.tokens.RevokeByRefreshToken(r.Context(), refreshToken)
	}

	if !httputil.IsMobileClient(r) {
		httputil.ClearAuthCookies(w, h.cookieConfig)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeLoginResult(w http.ResponseWriter, r *http.Request, result *domain.LoginResult) {
	if !httputil.IsMobileClient(r) {
		httputil.SetAuthCookies(w, result.AccessToken, result.RefreshToken,
			h.tokens.AccessTokenTTL(), h.tokens.RefreshTokenTTL(), h.cookieConfig)
	}
	httputil.JSON(w, http.StatusOK, result)
}
