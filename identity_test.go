package identity

import (
	"testing"
	"time"

	"github.com/urbanserve/identity/pkg/auth"
)

func TestValidateConfig(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "missing db", mutate: func(c *Config) { c.DB = nil }, wantErr: true},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "short secret", mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: true},
		{name: "bad mfa key length", mutate: func(c *Config) { c.MFAEncryptionKey = []byte("short") }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{JWTSecret: secret}
			tt.mutate(&cfg)
			err := validateConfig(&cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{JWTSecret: "0123456789abcdef0123456789abcdef"}
	applyDefaults(&cfg)

	if cfg.JWTIssuer != "urbanserve-identity" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "urbanserve-identity")
	}
	if cfg.JWTAudience != "urbanserve" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "urbanserve")
	}
	if cfg.AccessTokenTTL != auth.DefaultAccessTokenTTL {
		t.Errorf("AccessTokenTTL = %v, want %v", cfg.AccessTokenTTL, auth.DefaultAccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want %v", cfg.RefreshTokenTTL, 7*24*time.Hour)
	}
	if cfg.Logger == nil {
		t.Error("Logger default not applied")
	}
	if cfg.Notifier == nil {
		t.Error("Notifier default not applied")
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Errorf("CORSAllowedOrigins = %v, want [*]", cfg.CORSAllowedOrigins)
	}
}
