package domain

import (
	"time"

	"github.com/google/uuid"
)

// OtpPurpose classifies why a one-time code was issued. Each purpose
// carries its own length, expiry, and attempt policy.
type OtpPurpose string

const (
	OtpPurposeLogin             OtpPurpose = "login"
	OtpPurposePasswordReset     OtpPurpose = "password_reset"
	OtpPurposeEmailVerification OtpPurpose = "email_verification"
	OtpPurposeTwoFactorAuth     OtpPurpose = "two_factor_auth"
)

// Purposes lists every known OTP purpose.
func Purposes() []OtpPurpose {
	return []OtpPurpose{
		OtpPurposeLogin,
		OtpPurposePasswordReset,
		OtpPurposeEmailVerification,
		OtpPurposeTwoFactorAuth,
	}
}

// Valid reports whether p is a known purpose.
func (p OtpPurpose) Valid() bool {
	switch p {
	case OtpPurposeLogin, OtpPurposePasswordReset, OtpPurposeEmailVerification, OtpPurposeTwoFactorAuth:
		return true
	}
	return false
}

// OtpToken is a single one-time code issued to a user.
// Invariant: at most one active (unused, unexpired) token exists per
// (user, purpose); issuing a new one marks prior active tokens used.
type OtpToken struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Code         string
	Email        string
	Phone        *string
	Purpose      OtpPurpose
	ExpiresAt    time.Time
	AttemptCount int
	MaxAttempts  int
	Used         bool
	IP           string
	UserAgent    string
	CreatedAt    time.Time
}

// IsExpired reports whether the token is past its expiry.
func (t *OtpToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsActive reports whether the token can still be validated.
func (t *OtpToken) IsActive() bool {
	return !t.Used && !t.IsExpired() && t.AttemptCount < t.MaxAttempts
}

// OtpErrorCode identifies the outcome of a failed validation attempt.
type OtpErrorCode string

const (
	OtpErrorNotFound    OtpErrorCode = "OTP_NOT_FOUND"
	OtpErrorExpired     OtpErrorCode = "OTP_EXPIRED"
	OtpErrorMaxAttempts OtpErrorCode = "OTP_MAX_ATTEMPTS"
	OtpErrorInvalid     OtpErrorCode = "OTP_INVALID"
)

// OtpValidationResult is the structured outcome of a validation attempt.
// Expected failures are reported here rather than as errors so callers
// can branch on ErrorCode.
type OtpValidationResult struct {
	Valid             bool
	UserID            uuid.UUID
	Email             string
	ErrorCode         OtpErrorCode
	RemainingAttempts int
}
