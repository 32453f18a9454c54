package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"unicode"

	"github.com/urbanserve/identity/pkg/domain"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters
const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32
	saltLen          = 16

	resetTokenLen    = 32
	minResetTokenLen = 16
)

// HashPassword hashes a password using PBKDF2-HMAC-SHA256.
// The encoded form is base64(salt || derived key).
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", domain.ErrInvalidArgument
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return base64.StdEncoding.EncodeToString(append(salt, key...)), nil
}

// VerifyPassword verifies a password against an encoded PBKDF2 hash.
// Malformed hashes fail verification rather than returning an error.
func VerifyPassword(password, encoded string) bool {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	if len(raw) != saltLen+pbkdf2KeyLen {
		return false
	}

	salt, key := raw[:saltLen], raw[saltLen:]
	computed := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	return constantTimeCompare(key, computed)
}

// IsPasswordStrong reports whether a password has at least 8 characters
// and contains a lowercase letter, an uppercase letter, a digit, and a symbol.
func IsPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

// GenerateResetToken returns a new opaque password-reset token. The
// bundled HTTP flow resets passwords with emailed codes and never calls
// this; it exists for embedders building link-based reset flows, paired
// with Notifier.SendPasswordReset for delivery.
func GenerateResetToken() (string, error) {
	return GenerateToken(resetTokenLen)
}

// IsValidResetToken checks the structural validity of a reset token:
// base64-decodable with at least 16 bytes of entropy. It does not check
// the token against a stored record; callers must do that separately.
func IsValidResetToken(token string) bool {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return false
	}
	return len(raw) >= minResetTokenLen
}
