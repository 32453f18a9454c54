package domain

import (
	"testing"
	"time"
)

func TestOtpPurposeValid(t *testing.T) {
	for _, purpose := range Purposes() {
		if !purpose.Valid() {
			t.Errorf("Valid() = false for known purpose %q", purpose)
		}
	}
	if OtpPurpose("bogus").Valid() {
		t.Error("Valid() = true for unknown purpose")
	}
	if OtpPurpose("").Valid() {
		t.Error("Valid() = true for empty purpose")
	}
}

func TestOtpTokenIsActive(t *testing.T) {
	future := time.Now().Add(10 * time.Minute)
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name  string
		token OtpToken
		want  bool
	}{
		{name: "fresh", token: OtpToken{ExpiresAt: future, MaxAttempts: 3}, want: true},
		{name: "attempts remaining", token: OtpToken{ExpiresAt: future, AttemptCount: 2, MaxAttempts: 3}, want: true},
		{name: "used", token: OtpToken{ExpiresAt: future, MaxAttempts: 3, Used: true}, want: false},
		{name: "expired", token: OtpToken{ExpiresAt: past, MaxAttempts: 3}, want: false},
		{name: "attempts exhausted", token: OtpToken{ExpiresAt: future, AttemptCount: 3, MaxAttempts: 3}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.token.IsActive(); got != tt.want {
				t.Errorf("IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}
