package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urbanserve/identity/pkg/domain"
)

// PasswordConfig holds lockout configuration.
type PasswordConfig struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// DefaultPasswordConfig returns the default lockout policy.
func DefaultPasswordConfig() PasswordConfig {
	return PasswordConfig{
		MaxFailedAttempts: 5,
		LockoutDuration:   15 * time.Minute,
	}
}

// PasswordService handles registration and password authentication.
type PasswordService struct {
	config   PasswordConfig
	users    UserStore
	otp      *OtpService
	notifier Notifier
	logger   *slog.Logger
}

// NewPasswordService creates a new password service.
func NewPasswordService(config PasswordConfig, users UserStore, otp *OtpService, notifier Notifier, logger *slog.Logger) *PasswordService {
	if config.MaxFailedAttempts == 0 {
		config.MaxFailedAttempts = DefaultPasswordConfig().MaxFailedAttempts
	}
	if config.LockoutDuration == 0 {
		config.LockoutDuration = DefaultPasswordConfig().LockoutDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PasswordService{
		config:   config,
		users:    users,
		otp:      otp,
		notifier: notifier,
		logger:   logger,
	}
}

// RegisterOpts carries optional registration fields and request context.
type RegisterOpts struct {
	Username  *string
	Phone     *string
	IP        string
	UserAgent string
}

// Register creates a new user, sends a welcome email, and issues an
// email-verification code. Email delivery failures do not fail
// registration; the user can request a new code later.
func (s *PasswordService) Register(ctx context.Context, email, password, firstName, lastName string, opts RegisterOpts) (*domain.User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)

	if !IsPasswordStrong(password) {
		return nil, domain.ErrWeakPassword
	}

	firstName = SanitizeName(firstName)
	lastName = SanitizeName(lastName)

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	if opts.Username != nil && *opts.Username != "" {
		if err := ValidateUsername(*opts.Username); err != nil {
			return nil, err
		}
		exists, err := s.users.ExistsByUsername(ctx, *opts.Username)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, domain.ErrUsernameAlreadyExists
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     opts.Username,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: hash,
		Active:       true,
		Phone:        opts.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.notifier.SendWelcome(user.Email, user.DisplayName()); err != nil {
		s.logger.Warn("failed to send welcome email", "error", err)
	}

	_, err = s.otp.Generate(ctx, user.ID, user.Email, domain.OtpPurposeEmailVerification, GenerateOpts{
		Phone:     opts.Phone,
		IP:        opts.IP,
		UserAgent: opts.UserAgent,
	})
	if err != nil {
		s.logger.Warn("failed to issue email verification code", "error", err)
	}

	return user, nil
}

// Authenticate verifies identifier (email or username) and password.
// Failed attempts count toward lockout; crossing the threshold locks the
// account and sends a lockout notice.
func (s *PasswordService) Authenticate(ctx context.Context, identifier, password string) (*domain.User, error) {
	user, err := s.users.GetByEmailOrUsername(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if user.IsLocked() {
		return nil, domain.ErrAccountLocked
	}
	if !user.Active {
		return nil, domain.ErrAccountInactive
	}

	if !VerifyPassword(password, user.PasswordHash) {
		if err := s.users.IncrementFailedLoginAttempts(ctx, user.ID, s.config.LockoutDuration, s.config.MaxFailedAttempts); err != nil {
			s.logger.Error("failed to record failed login attempt", "error", err)
		} else if updated, err := s.users.GetByID(ctx, user.ID); err == nil && updated.IsLocked() {
			if err := s.notifier.SendLockoutNotice(user.Email, user.DisplayName(), *updated.LockedUntil); err != nil {
				s.logger.Warn("failed to send lockout notice", "error", err)
			}
		}
		return nil, domain.ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
		if err := s.users.ResetFailedLoginAttempts(ctx, user.ID); err != nil {
			s.logger.Error("failed to reset login attempts", "error", err)
		}
	}

	return user, nil
}

// ChangePassword verifies the current password and replaces it.
func (s *PasswordService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !VerifyPassword(currentPassword, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	if !IsPasswordStrong(newPassword) {
		return domain.ErrWeakPassword
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	if err := s.notifier.SendPasswordChangedNotice(user.Email, user.DisplayName()); err != nil {
		s.logger.Warn("failed to send password changed notice", "error", err)
	}
	return nil
}

// RequestPasswordReset issues a password-reset code for the given email.
// Unknown addresses succeed silently to prevent account enumeration.
func (s *PasswordService) RequestPasswordReset(ctx context.Context, email string, opts GenerateOpts) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}

	_, err = s.otp.Generate(ctx, user.ID, user.Email, domain.OtpPurposePasswordReset, opts)
	return err
}

// ResetPassword validates a password-reset code and, on success, replaces
// the password, clears lockout state, and revokes the stored refresh
// token. Expected code failures come back in the result.
func (s *PasswordService) ResetPassword(ctx context.Context, email, code, newPassword string) (*domain.OtpValidationResult, error) {
	// Strength runs first: validation consumes the code, and a rejected
	// password must not cost the user their one valid code.
	if !IsPasswordStrong(newPassword) {
		return nil, domain.ErrWeakPassword
	}

	result, err := s.otp.Validate(ctx, NormalizeEmail(email), code, domain.OtpPurposePasswordReset)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return result, nil
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetPasswordHash(ctx, result.UserID, hash); err != nil {
		return nil, err
	}
	if err := s.users.ResetFailedLoginAttempts(ctx, result.UserID); err != nil {
		s.logger.Error("failed to reset login attempts", "error", err)
	}
	if err := s.users.ClearRefreshToken(ctx, result.UserID); err != nil {
		s.logger.Error("failed to revoke refresh token", "error", err)
	}

	user, err := s.users.GetByID(ctx, result.UserID)
	if err == nil {
		if err := s.notifier.SendPasswordChangedNotice(user.Email, user.DisplayName()); err != nil {
			s.logger.Warn("failed to send password changed notice", "error", err)
		}
	}

	return result, nil
}

// VerifyEmail validates an email-verification code and marks the user's
// email as verified.
func (s *PasswordService) VerifyEmail(ctx context.Context, email, code string) (*domain.OtpValidationResult, error) {
	result, err := s.otp.Validate(ctx, NormalizeEmail(email), code, domain.OtpPurposeEmailVerification)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return result, nil
	}

	if err := s.users.SetEmailVerified(ctx, result.UserID); err != nil {
		return nil, err
	}
	return result, nil
}

// GetUserByID retrieves a user by ID.
func (s *PasswordService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// GetUserByEmail retrieves a user by email address.
func (s *PasswordService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.GetByEmail(ctx, NormalizeEmail(email))
}
