package domain

import "time"

// UserProfile is the client-facing view of a user embedded in a LoginResult.
type UserProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username,omitempty"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	Active        bool   `json:"active"`
}

// LoginResult is the ephemeral outcome of a successful login or refresh.
// It is returned to the client and never persisted.
type LoginResult struct {
	AccessToken           string      `json:"access_token"`
	RefreshToken          string      `json:"refresh_token"`
	TokenType             string      `json:"token_type"`
	ExpiresIn             int         `json:"expires_in"`
	ExpiresAt             time.Time   `json:"expires_at"`
	RefreshTokenExpiresAt time.Time   `json:"refresh_token_expires_at"`
	User                  UserProfile `json:"user"`
	Roles                 []string    `json:"roles"`
	Groups                []string    `json:"groups"`
	Permissions           []string    `json:"permissions"`
}
