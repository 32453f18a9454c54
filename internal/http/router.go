package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/urbanserve/identity/internal/config"
	"github.com/urbanserve/identity/internal/http/features/account"
	"github.com/urbanserve/identity/internal/http/features/me"
	"github.com/urbanserve/identity/internal/http/features/mfa"
	"github.com/urbanserve/identity/internal/http/features/otp"
	"github.com/urbanserve/identity/internal/http/features/session"
	"github.com/urbanserve/identity/internal/http/middleware"
	"github.com/urbanserve/identity/internal/httputil"
	"github.com/urbanserve/identity/pkg/auth"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Logger             *slog.Logger
	PasswordService    *auth.PasswordService
	TokenService       *auth.TokenService
	OtpService         *auth.OtpService
	MFAService         *auth.MFAService
	RateLimit          config.RateLimitConfig
	CORSAllowedOrigins []string
	CookieSecure       bool
}

// NewRouter creates the HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequestSizeLimit(maxRequestBodySize))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Client-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limiters := middleware.CreateRateLimiters(cfg.RateLimit, cfg.Logger)
	requireAuth := middleware.Auth(cfg.TokenService)
	cookieConfig := httputil.DefaultCookieConfig(cfg.CookieSecure)

	accountHandler := account.NewHandler(cfg.Logger, cfg.PasswordService)
	sessionHandler := session.NewHandler(cfg.Logger, cfg.PasswordService, cfg.TokenService, cfg.OtpService, cfg.MFAService, cookieConfig)
	otpHandler := otp.NewHandler(cfg.Logger, cfg.OtpService, cfg.PasswordService, cfg.TokenService)
	meHandler := me.NewHandler(cfg.Logger, cfg.PasswordService)

	r.Group(func(r chi.Router) {
		r.Use(limiters["auth"])
		r.Post("/v1/auth/register", accountHandler.Register)
		r.Post("/v1/auth/login", sessionHandler.Login)
		r.Post("/v1/auth/login/mfa", sessionHandler.LoginMFA)
	})

	r.Group(func(r chi.Router) {
		r.Use(limiters["otp"])
		r.Post("/v1/auth/otp/request", otpHandler.Request)
		r.Post("/v1/auth/otp/verify", otpHandler.Verify)
		r.Post("/v1/auth/verify-email", accountHandler.VerifyEmail)
		r.Post("/v1/auth/password/forgot", accountHandler.ForgotPassword)
		r.Post("/v1/auth/password/reset", accountHandler.ResetPassword)
	})

	r.Group(func(r chi.Router) {
		r.Use(limiters["refresh"])
		r.Post("/v1/auth/refresh", sessionHandler.Refresh)
		r.Post("/v1/auth/logout", sessionHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/v1/me", meHandler.Get)
		r.Post("/v1/auth/password/change", accountHandler.ChangePassword)
	})

	if cfg.MFAService != nil {
		mfaHandler := mfa.NewHandler(cfg.Logger, cfg.MFAService, cfg.PasswordService)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/v1/auth/mfa/setup", mfaHandler.Setup)
			r.Post("/v1/auth/mfa/confirm", mfaHandler.Confirm)
			r.Post("/v1/auth/mfa/disable", mfaHandler.Disable)
		})
	}

	return r
}
