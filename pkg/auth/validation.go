package auth

import (
	"html"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/urbanserve/identity/pkg/domain"
)

const maxEmailLength = 254 // RFC 5321

// Usernames: 3-32 chars, start with a letter or digit, then letters,
// digits, underscore, or hyphen.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{2,31}$`)

// ValidateEmail validates an email address for format and length.
func ValidateEmail(email string) error {
	if email == "" || len(email) > maxEmailLength {
		return domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(NormalizeEmail(email))
	if err != nil || addr.Address != NormalizeEmail(email) {
		return domain.ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateUsername validates a username against the allowed format.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return domain.ErrInvalidUsername
	}
	return nil
}

// SanitizeName trims a name field, strips control characters, and escapes
// HTML.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	return html.EscapeString(name)
}
