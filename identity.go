// Package identity provides an embeddable authentication and authorization
// library: password login with lockout, purpose-scoped one-time codes,
// JWT access tokens with refresh rotation, role/group based permissions,
// and optional authenticator-app MFA.
//
// Setup:
//
//  1. Run migrations from the migrations/ folder using your preferred tool
//  2. Create an Identity instance and mount its routes
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	idp, err := identity.New(identity.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err) // fails if migrations haven't been run
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/", idp.Router())
//	http.ListenAndServe(":8080", r)
//
// Protecting your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(idp.AuthMiddleware())
//	    r.Use(idp.RequirePermission("jobs.read"))
//	    r.Get("/jobs", listJobs)
//	})
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urbanserve/identity/internal/config"
	identityhttp "github.com/urbanserve/identity/internal/http"
	"github.com/urbanserve/identity/internal/http/middleware"
	"github.com/urbanserve/identity/internal/notification"
	"github.com/urbanserve/identity/pkg/auth"
	"github.com/urbanserve/identity/pkg/domain"
	"github.com/urbanserve/identity/pkg/repository"
)

// Config holds the configuration for the embedded library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret signs access tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in access tokens (default: "urbanserve-identity").
	JWTIssuer string

	// JWTAudience is the audience claim in access tokens (default: "urbanserve").
	JWTAudience string

	// AccessTokenTTL is the lifetime of access tokens (default: 60 minutes).
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the lifetime of refresh tokens (default: 7 days).
	RefreshTokenTTL time.Duration

	// OtpPolicies overrides per-purpose one-time code policies (optional).
	OtpPolicies map[domain.OtpPurpose]auth.OtpPolicy

	// Lockout controls failed-login lockout (zero values use defaults).
	Lockout auth.PasswordConfig

	// Notifier delivers auth emails. When nil, emails are logged instead
	// of sent.
	Notifier auth.Notifier

	// MFAEncryptionKey enables authenticator-app MFA when set (32 bytes).
	MFAEncryptionKey []byte

	// RateLimit enables per-endpoint-class rate limiting (optional;
	// disabled when zero).
	RateLimit config.RateLimitConfig

	// CORSAllowedOrigins for the mounted router (default: "*").
	CORSAllowedOrigins []string

	// CookieSecure marks auth cookies Secure (default: false).
	CookieSecure bool

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// Identity is the embeddable library instance.
type Identity struct {
	config          Config
	db              *sql.DB
	usersRepo       *repository.UsersRepository
	otpRepo         *repository.OtpTokensRepository
	rbacRepo        *repository.RBACRepository
	mfaSecretsRepo  *repository.MFASecretsRepository
	otpService      *auth.OtpService
	passwordService *auth.PasswordService
	tokenService    *auth.TokenService
	mfaService      *auth.MFAService
}

// New creates a new Identity instance with the given configuration.
// Returns an error if required database tables don't exist; run
// migrations first (see the migrations/ folder).
func New(cfg Config) (*Identity, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	usersRepo := repository.NewUsersRepository(cfg.DB)
	otpRepo := repository.NewOtpTokensRepository(cfg.DB)
	rbacRepo := repository.NewRBACRepository(cfg.DB)
	mfaSecretsRepo := repository.NewMFASecretsRepository(cfg.DB)

	otpService := auth.NewOtpService(cfg.OtpPolicies, otpRepo, usersRepo, cfg.Notifier, cfg.Logger)
	passwordService := auth.NewPasswordService(cfg.Lockout, usersRepo, otpService, cfg.Notifier, cfg.Logger)
	tokenService := auth.NewTokenService(auth.TokenConfig{
		JWTSecret:       []byte(cfg.JWTSecret),
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	}, usersRepo, rbacRepo)

	var mfaService *auth.MFAService
	if len(cfg.MFAEncryptionKey) > 0 {
		var err error
		mfaService, err = auth.NewMFAService(auth.MFAConfig{
			Issuer:        cfg.JWTIssuer,
			EncryptionKey: cfg.MFAEncryptionKey,
		}, mfaSecretsRepo, usersRepo)
		if err != nil {
			return nil, err
		}
	}

	return &Identity{
		config:          cfg,
		db:              cfg.DB,
		usersRepo:       usersRepo,
		otpRepo:         otpRepo,
		rbacRepo:        rbacRepo,
		mfaSecretsRepo:  mfaSecretsRepo,
		otpService:      otpService,
		passwordService: passwordService,
		tokenService:    tokenService,
		mfaService:      mfaService,
	}, nil
}

// Router returns an http.Handler with all auth routes registered.
//
// Routes:
//
//	POST /v1/auth/register         - Register with email/password
//	POST /v1/auth/login            - Login with identifier/password
//	POST /v1/auth/login/mfa        - Complete an MFA login
//	POST /v1/auth/otp/request      - Request a one-time code
//	POST /v1/auth/otp/verify       - Verify a one-time code
//	POST /v1/auth/verify-email     - Confirm an email address
//	POST /v1/auth/password/forgot  - Request a password reset code
//	POST /v1/auth/password/reset   - Complete a password reset
//	POST /v1/auth/password/change  - Change password (protected)
//	POST /v1/auth/refresh          - Rotate the refresh token
//	POST /v1/auth/logout           - Revoke the refresh token
//	GET  /v1/me                    - Current user profile (protected)
//	POST /v1/auth/mfa/*            - MFA enrollment (if configured)
func (i *Identity) Router() http.Handler {
	return identityhttp.NewRouter(identityhttp.RouterConfig{
		Logger:             i.config.Logger,
		PasswordService:    i.passwordService,
		TokenService:       i.tokenService,
		OtpService:         i.otpService,
		MFAService:         i.mfaService,
		RateLimit:          i.config.RateLimit,
		CORSAllowedOrigins: i.config.CORSAllowedOrigins,
		CookieSecure:       i.config.CookieSecure,
	})
}

// AuthMiddleware returns middleware that validates access tokens.
// Use it to protect your own routes.
func (i *Identity) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(i.tokenService)
}

// RequirePermission returns middleware that rejects requests whose token
// does not carry the named permission. Must run after AuthMiddleware.
func (i *Identity) RequirePermission(permission string) func(http.Handler) http.Handler {
	return middleware.RequirePermission(permission)
}

// PasswordService exposes the password service for advanced usage.
func (i *Identity) PasswordService() *auth.PasswordService {
	return i.passwordService
}

// TokenService exposes the token service for advanced usage.
func (i *Identity) TokenService() *auth.TokenService {
	return i.tokenService
}

// OtpService exposes the one-time code service for advanced usage.
func (i *Identity) OtpService() *auth.OtpService {
	return i.otpService
}

// PurgeExpiredCodes deletes expired one-time codes older than the given
// age. Call it periodically from the host application.
func (i *Identity) PurgeExpiredCodes(ctx context.Context, olderThan time.Duration) (int64, error) {
	return i.otpService.PurgeExpired(ctx, olderThan)
}

// GetUserID extracts the authenticated user ID from a request.
// Use after AuthMiddleware.
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	return middleware.GetUserID(r.Context())
}

// GetClaims extracts the access token claims from a request.
// Use after AuthMiddleware.
func GetClaims(r *http.Request) (*auth.AccessTokenClaims, bool) {
	return middleware.GetClaims(r.Context())
}

// GetUser retrieves the authenticated user from the database.
// Use after AuthMiddleware.
func (i *Identity) GetUser(r *http.Request) (*domain.User, error) {
	id, ok := middleware.GetUserID(r.Context())
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return i.usersRepo.GetByID(r.Context(), id)
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("identity: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("identity: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("identity: JWTSecret must be at least 32 characters")
	}
	if len(cfg.MFAEncryptionKey) > 0 && len(cfg.MFAEncryptionKey) != 32 {
		return errors.New("identity: MFAEncryptionKey must be 32 bytes")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "urbanserve-identity"
	}
	if cfg.JWTAudience == "" {
		cfg.JWTAudience = "urbanserve"
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = auth.DefaultRefreshTokenTTL
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notification.NewLogService(cfg.Logger)
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	requiredTables := []string{"users", "otp_tokens", "roles", "groups", "permissions"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("identity: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("identity: failed to check schema: %w", err)
		}
	}

	return nil
}
