package auth

import (
	"strings"
	"testing"

	"github.com/urbanserve/identity/pkg/domain"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "valid", email: "user@example.com", wantErr: false},
		{name: "valid with subdomain", email: "user@mail.example.com", wantErr: false},
		{name: "valid with plus tag", email: "user+tag@example.com", wantErr: false},
		{name: "uppercase is normalized", email: "USER@EXAMPLE.COM", wantErr: false},
		{name: "surrounding whitespace", email: "  user@example.com  ", wantErr: false},
		{name: "empty", email: "", wantErr: true},
		{name: "no at sign", email: "userexample.com", wantErr: true},
		{name: "no domain", email: "user@", wantErr: true},
		{name: "no local part", email: "@example.com", wantErr: true},
		{name: "with display name", email: "Jane Doe <user@example.com>", wantErr: true},
		{name: "spaces inside", email: "us er@example.com", wantErr: true},
		{name: "over length limit", email: strings.Repeat("a", 250) + "@example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
			if err != nil && err != domain.ErrInvalidEmail {
				t.Errorf("ValidateEmail(%q) error = %v, want %v", tt.email, err, domain.ErrInvalidEmail)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "User@Example.COM", want: "user@example.com"},
		{in: "  user@example.com\n", want: "user@example.com"},
		{in: "user@example.com", want: "user@example.com"},
	}

	for _, tt := range tests {
		if got := NormalizeEmail(tt.in); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		wantErr  bool
	}{
		{name: "valid alphanumeric", username: "user123", wantErr: false},
		{name: "valid with underscore", username: "user_name", wantErr: false},
		{name: "valid with hyphen", username: "user-name", wantErr: false},
		{name: "valid minimum length", username: "abc", wantErr: false},
		{name: "valid maximum length", username: strings.Repeat("a", 32), wantErr: false},
		{name: "valid starts with digit", username: "1ab", wantErr: false},
		{name: "empty", username: "", wantErr: true},
		{name: "too short", username: "ab", wantErr: true},
		{name: "too long", username: strings.Repeat("a", 33), wantErr: true},
		{name: "starts with underscore", username: "_username", wantErr: true},
		{name: "starts with hyphen", username: "-username", wantErr: true},
		{name: "contains space", username: "user name", wantErr: true},
		{name: "contains at sign", username: "user@name", wantErr: true},
		{name: "contains dot", username: "user.name", wantErr: true},
		{name: "unicode characters", username: "usér123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUsername(%q) error = %v, wantErr %v", tt.username, err, tt.wantErr)
			}
			if err != nil && err != domain.ErrInvalidUsername {
				t.Errorf("ValidateUsername(%q) error = %v, want %v", tt.username, err, domain.ErrInvalidUsername)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Jane", want: "Jane"},
		{name: "trims whitespace", in: "  Jane  ", want: "Jane"},
		{name: "strips control characters", in: "Ja\x00ne\x1b", want: "Jane"},
		{name: "escapes html", in: "<b>Jane</b>", want: "&lt;b&gt;Jane&lt;/b&gt;"},
		{name: "keeps accents", in: "Renée", want: "Renée"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeName(tt.in); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
