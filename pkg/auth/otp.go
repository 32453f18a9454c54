package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urbanserve/identity/pkg/domain"
)

const otpAlphanumericChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// OtpPolicy defines the issuance parameters for one OTP purpose.
type OtpPolicy struct {
	Length       int
	Alphanumeric bool
	TTL          time.Duration
	MaxAttempts  int
}

// DefaultOtpPolicies returns the per-purpose policy map. The map is keyed
// by the purpose enum and covers every purpose, so a missing entry is a
// programming error caught by NewOtpService.
func DefaultOtpPolicies() map[domain.OtpPurpose]OtpPolicy {
	return map[domain.OtpPurpose]OtpPolicy{
		domain.OtpPurposeLogin:             {Length: 6, TTL: 10 * time.Minute, MaxAttempts: 3},
		domain.OtpPurposeTwoFactorAuth:     {Length: 6, TTL: 10 * time.Minute, MaxAttempts: 3},
		domain.OtpPurposeEmailVerification: {Length: 6, TTL: 30 * time.Minute, MaxAttempts: 5},
		domain.OtpPurposePasswordReset:     {Length: 8, Alphanumeric: true, TTL: 15 * time.Minute, MaxAttempts: 5},
	}
}

// OtpService issues and validates purpose-scoped one-time codes.
type OtpService struct {
	policies map[domain.OtpPurpose]OtpPolicy
	store    OtpStore
	users    UserStore
	notifier Notifier
	logger   *slog.Logger
}

// NewOtpService creates a new OTP service. Policies missing from the
// supplied map fall back to the defaults.
func NewOtpService(policies map[domain.OtpPurpose]OtpPolicy, store OtpStore, users UserStore, notifier Notifier, logger *slog.Logger) *OtpService {
	merged := DefaultOtpPolicies()
	for purpose, policy := range policies {
		merged[purpose] = policy
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OtpService{
		policies: merged,
		store:    store,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

// Policy returns the policy for a purpose.
func (s *OtpService) Policy(purpose domain.OtpPurpose) OtpPolicy {
	return s.policies[purpose]
}

// GenerateOpts carries optional request context recorded for audit.
type GenerateOpts struct {
	Phone     *string
	IP        string
	UserAgent string
}

// Generate invalidates any active codes for (user, purpose), issues a new
// one, and dispatches it via the notifier. Invalidate-and-insert happens
// atomically in the store. The code is returned to the caller; handlers
// must not echo it back to the client.
func (s *OtpService) Generate(ctx context.Context, userID uuid.UUID, email string, purpose domain.OtpPurpose, opts GenerateOpts) (string, error) {
	if !purpose.Valid() {
		return "", domain.ErrInvalidArgument
	}

	policy := s.policies[purpose]
	code, err := generateCode(policy)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrOtpGenerationFailed, err)
	}

	token := &domain.OtpToken{
		ID:          uuid.New(),
		UserID:      userID,
		Code:        code,
		Email:       email,
		Phone:       opts.Phone,
		Purpose:     purpose,
		ExpiresAt:   time.Now().Add(policy.TTL),
		MaxAttempts: policy.MaxAttempts,
		IP:          opts.IP,
		UserAgent:   opts.UserAgent,
		CreatedAt:   time.Now(),
	}

	if err := s.store.CreateReplacingActive(ctx, token); err != nil {
		s.logger.Error("failed to persist one-time code", "purpose", purpose, "error", err)
		return "", fmt.Errorf("%w: %v", domain.ErrOtpGenerationFailed, err)
	}

	name := email
	if user, err := s.users.GetByID(ctx, userID); err == nil {
		name = user.DisplayName()
	}
	if err := s.notifier.SendOtp(email, name, code, purpose); err != nil {
		s.logger.Error("failed to deliver one-time code", "purpose", purpose, "error", err)
		return "", fmt.Errorf("%w: %v", domain.ErrOtpGenerationFailed, err)
	}

	return code, nil
}

// Validate checks a submitted code against the latest unused token for
// (email, purpose). Expected failures come back as a structured result,
// never as an error; every attempt persists the updated attempt count, so
// wrong guesses consume the budget.
func (s *OtpService) Validate(ctx context.Context, email, code string, purpose domain.OtpPurpose) (*domain.OtpValidationResult, error) {
	token, err := s.store.GetLatestUnused(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrOtpNotFound) {
			return &domain.OtpValidationResult{ErrorCode: domain.OtpErrorNotFound}, nil
		}
		return nil, err
	}

	if token.IsExpired() {
		return &domain.OtpValidationResult{ErrorCode: domain.OtpErrorExpired}, nil
	}

	if token.AttemptCount >= token.MaxAttempts {
		return &domain.OtpValidationResult{ErrorCode: domain.OtpErrorMaxAttempts}, nil
	}

	attempts, err := s.store.IncrementAttempts(ctx, token.ID)
	if err != nil {
		return nil, err
	}

	// Case-sensitive comparison; codes are generated uppercase.
	if token.Code != code {
		remaining := token.MaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		return &domain.OtpValidationResult{
			ErrorCode:         domain.OtpErrorInvalid,
			RemainingAttempts: remaining,
		}, nil
	}

	if err := s.store.MarkUsed(ctx, token.ID); err != nil {
		return nil, err
	}

	return &domain.OtpValidationResult{
		Valid:  true,
		UserID: token.UserID,
		Email:  token.Email,
	}, nil
}

// PurgeExpired deletes expired tokens older than the given age.
func (s *OtpService) PurgeExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.store.DeleteExpired(ctx, olderThan)
}

// generateCode produces a code per policy. Numeric codes never start with
// zero and are never a single repeated digit; both rules regenerate.
func generateCode(policy OtpPolicy) (string, error) {
	if policy.Length <= 0 {
		return "", fmt.Errorf("invalid code length %d", policy.Length)
	}

	if policy.Alphanumeric {
		return randomString(otpAlphanumericChars, policy.Length)
	}

	for {
		code, err := randomString("0123456789", policy.Length)
		if err != nil {
			return "", err
		}
		if code[0] == '0' || allSameByte(code) {
			continue
		}
		return code, nil
	}
}

// randomString draws length characters uniformly from charset using
// rejection sampling to avoid modulo bias.
func randomString(charset string, length int) (string, error) {
	out := make([]byte, 0, length)
	limit := byte(256 - (256 % len(charset)))
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if limit != 0 && b >= limit {
				continue
			}
			out = append(out, charset[int(b)%len(charset)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

func allSameByte(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
