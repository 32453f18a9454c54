package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/urbanserve/identity/pkg/domain"
)

// UserStore is the persistence contract the auth services depend on.
// Implemented by repository.UsersRepository.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByEmailOrUsername(ctx context.Context, identifier string) (*domain.User, error)
	GetByRefreshTokenHash(ctx context.Context, tokenHash string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	IncrementFailedLoginAttempts(ctx context.Context, userID uuid.UUID, lockoutDuration time.Duration, maxAttempts int) error
	ResetFailedLoginAttempts(ctx context.Context, userID uuid.UUID) error
	SetRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	ClearRefreshToken(ctx context.Context, userID uuid.UUID) error
	SetEmailVerified(ctx context.Context, userID uuid.UUID) error
	SetMFAEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error
	SetPasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// OtpStore is the persistence contract for one-time codes.
// CreateReplacingActive must atomically invalidate any active tokens for
// the same (user, purpose) and insert the new one.
type OtpStore interface {
	CreateReplacingActive(ctx context.Context, token *domain.OtpToken) error
	GetLatestUnused(ctx context.Context, email string, purpose domain.OtpPurpose) (*domain.OtpToken, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RBACStore resolves the role/group/permission graph for token claims.
// Only currently effective (time-boxed) assignments are returned.
type RBACStore interface {
	EffectiveRoles(ctx context.Context, userID uuid.UUID) ([]domain.Role, error)
	EffectiveGroups(ctx context.Context, userID uuid.UUID) ([]domain.Group, error)
	EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]domain.Permission, error)
}

// MFASecretStore persists encrypted TOTP secrets.
type MFASecretStore interface {
	Upsert(ctx context.Context, secret *domain.MFASecret) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.MFASecret, error)
	Confirm(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// Notifier delivers auth-related emails. Implemented by
// notification.EmailService; delivery mechanism is out of this package's
// hands.
type Notifier interface {
	SendOtp(email, username, code string, purpose domain.OtpPurpose) error
	SendPasswordReset(email, username, token, link string) error
	SendWelcome(email, username string) error
	SendLockoutNotice(email, username string, until time.Time) error
	SendPasswordChangedNotice(email, username string) error
}
