package domain

import (
	"time"

	"github.com/google/uuid"
)

// MFASecret stores an encrypted TOTP secret for a user.
// The secret is AES-GCM encrypted at rest; Confirmed flips to true once
// the user proves possession by submitting a valid code.
type MFASecret struct {
	UserID          uuid.UUID
	EncryptedSecret []byte
	Confirmed       bool
	CreatedAt       time.Time
	ConfirmedAt     *time.Time
}

// MFASetupResponse is returned when a user starts TOTP enrollment.
type MFASetupResponse struct {
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauth_url"`
	QRCode     string `json:"qr_code"`
}
