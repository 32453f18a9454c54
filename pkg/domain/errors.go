package domain

import "errors"

// Authentication errors
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUserAlreadyExists     = errors.New("user already exists")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountLocked         = errors.New("account locked due to too many failed login attempts")
	ErrAccountInactive       = errors.New("account is deactivated")
	ErrUnauthorized          = errors.New("invalid or expired token")
	ErrInvalidArgument       = errors.New("invalid argument")
)

// OTP errors
var (
	ErrOtpNotFound         = errors.New("no active one-time code found")
	ErrOtpGenerationFailed = errors.New("failed to generate one-time code")
)

// Validation errors
var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidUsername = errors.New("invalid username format")
	ErrWeakPassword    = errors.New("password does not meet requirements")
)

// RBAC errors
var (
	ErrRoleNotFound       = errors.New("role not found")
	ErrGroupNotFound      = errors.New("group not found")
	ErrPermissionNotFound = errors.New("permission not found")
)

// MFA errors
var (
	ErrMFANotEnabled       = errors.New("MFA is not enabled for this account")
	ErrMFAAlreadyEnabled   = errors.New("MFA is already enabled")
	ErrInvalidMFACode      = errors.New("invalid MFA code")
	ErrMFAChallengeExpired = errors.New("MFA challenge is invalid or expired")
)
