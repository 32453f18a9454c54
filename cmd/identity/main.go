package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urbanserve/identity/internal/config"
	httpserver "github.com/urbanserve/identity/internal/http"
	"github.com/urbanserve/identity/internal/notification"
	"github.com/urbanserve/identity/pkg/auth"
	"github.com/urbanserve/identity/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	usersRepo := repository.NewUsersRepository(db)
	otpRepo := repository.NewOtpTokensRepository(db)
	rbacRepo := repository.NewRBACRepository(db)
	mfaSecretsRepo := repository.NewMFASecretsRepository(db)

	var notifier auth.Notifier
	if cfg.HasSMTP() {
		notifier = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		logger.Info("email delivery enabled")
	} else {
		notifier = notification.NewLogService(logger)
		logger.Warn("SMTP not configured, emails will be logged only")
	}

	otpService := auth.NewOtpService(cfg.OtpPolicies, otpRepo, usersRepo, notifier, logger)
	passwordService := auth.NewPasswordService(auth.PasswordConfig{
		MaxFailedAttempts: cfg.MaxFailedAttempts,
		LockoutDuration:   cfg.LockoutDuration,
	}, usersRepo, otpService, notifier, logger)
	tokenService := auth.NewTokenService(auth.TokenConfig{
		JWTSecret:       []byte(cfg.JWTSecret),
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	}, usersRepo, rbacRepo)

	var mfaService *auth.MFAService
	if cfg.HasMFA() {
		mfaService, err = auth.NewMFAService(auth.MFAConfig{
			Issuer:        cfg.JWTIssuer,
			EncryptionKey: []byte(cfg.MFAEncryptionKey),
		}, mfaSecretsRepo, usersRepo)
		if err != nil {
			logger.Error("failed to initialize MFA service", "error", err)
			os.Exit(1)
		}
		logger.Info("authenticator MFA enabled")
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:             logger,
		PasswordService:    passwordService,
		TokenService:       tokenService,
		OtpService:         otpService,
		MFAService:         mfaService,
		RateLimit:          cfg.RateLimit,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CookieSecure:       cfg.CookieSecure,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Periodic purge of expired one-time codes.
	go func() {
		ticker := time.NewTicker(cfg.OtpPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := otpService.PurgeExpired(ctx, cfg.OtpPurgeAge)
				if err != nil {
					logger.Error("failed to purge expired codes", "error", err)
					continue
				}
				if deleted > 0 {
					logger.Info("purged expired codes", "count", deleted)
				}
			}
		}
	}()

	addr := cfg.ServerAddr + ":" + strconv.Itoa(cfg.ServerPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
