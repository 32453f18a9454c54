package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents the account.
type User struct {
	ID                    uuid.UUID
	Email                 string
	Username              *string
	FirstName             string
	LastName              string
	PasswordHash          string
	Active                bool
	EmailVerified         bool
	PhoneVerified         bool
	Phone                 *string
	FailedLoginAttempts   int
	LockedUntil           *time.Time
	RefreshTokenHash      *string
	RefreshTokenExpiresAt *time.Time
	MFAEnabled            bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
	DeletedAt             *time.Time
}

// IsLocked returns true if the account is currently locked.
func (u *User) IsLocked() bool {
	if u.LockedUntil == nil {
		return false
	}
	return time.Now().Before(*u.LockedUntil)
}

// HasValidRefreshToken reports whether the stored refresh token is still usable.
func (u *User) HasValidRefreshToken() bool {
	if u.RefreshTokenHash == nil || u.RefreshTokenExpiresAt == nil {
		return false
	}
	return time.Now().Before(*u.RefreshTokenExpiresAt)
}

// DisplayName returns the best available human-readable name.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != nil && *u.Username != "":
		return *u.Username
	default:
		return u.Email
	}
}
