package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/urbanserve/identity/pkg/domain"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{
		JWTSecret: []byte("0123456789abcdef0123456789abcdef"),
		Issuer:    "urbanserve-identity",
		Audience:  "urbanserve",
	}
}

func newTokenFixture(t *testing.T) (*TokenService, *fakeUserStore, *fakeRBACStore, *domain.User) {
	t.Helper()
	users := newFakeUserStore()
	rbac := newFakeRBACStore()
	svc := NewTokenService(testTokenConfig(), users, rbac)

	username := "jdoe"
	user := &domain.User{
		ID:            uuid.New(),
		Email:         "jdoe@example.com",
		Username:      &username,
		FirstName:     "Jane",
		LastName:      "Doe",
		Active:        true,
		EmailVerified: true,
	}
	users.add(user)
	return svc, users, rbac, user
}

func TestIssueClaims(t *testing.T) {
	svc, _, rbac, user := newTokenFixture(t)
	rbac.roles[user.ID] = []domain.Role{{Name: "provider"}, {Name: "customer"}}
	rbac.groups[user.ID] = []domain.Group{{Name: "beta-testers"}}
	rbac.permissions[user.ID] = []domain.Permission{
		{Name: "jobs.read"},
		{Name: "jobs.bid"},
		{Name: "jobs.read"}, // duplicate via role and group path
	}

	result, err := svc.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if result.TokenType != "Bearer" {
		t.Errorf("token type = %q, want Bearer", result.TokenType)
	}
	if result.ExpiresIn != int(DefaultAccessTokenTTL.Seconds()) {
		t.Errorf("expires_in = %d, want %d", result.ExpiresIn, int(DefaultAccessTokenTTL.Seconds()))
	}

	claims, err := svc.Validate(result.AccessToken)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.Subject != user.ID.String() {
		t.Errorf("sub = %q, want %q", claims.Subject, user.ID)
	}
	if claims.Email != user.Email || claims.Username != "jdoe" {
		t.Errorf("identity claims = (%q, %q), want (%q, jdoe)", claims.Email, claims.Username, user.Email)
	}
	if !claims.Active || !claims.EmailVerified {
		t.Errorf("status claims = (active=%v, email_verified=%v), want both true", claims.Active, claims.EmailVerified)
	}
	if claims.ID == "" {
		t.Error("jti claim is empty")
	}

	// Roles and permissions are sorted; permissions are de-duplicated.
	wantRoles := []string{"customer", "provider"}
	if len(claims.Roles) != 2 || claims.Roles[0] != wantRoles[0] || claims.Roles[1] != wantRoles[1] {
		t.Errorf("roles = %v, want %v", claims.Roles, wantRoles)
	}
	wantPerms := []string{"jobs.bid", "jobs.read"}
	if len(claims.Permissions) != 2 || claims.Permissions[0] != wantPerms[0] || claims.Permissions[1] != wantPerms[1] {
		t.Errorf("permissions = %v, want %v", claims.Permissions, wantPerms)
	}
	if !claims.HasPermission("jobs.bid") || claims.HasPermission("jobs.cancel") {
		t.Error("HasPermission() does not reflect the permissions claim")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _, _, user := newTokenFixture(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	refreshed, err := svc.Refresh(ctx, issued.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.RefreshToken == issued.RefreshToken {
		t.Error("refresh token was not rotated")
	}
	if _, err := svc.Validate(refreshed.AccessToken); err != nil {
		t.Errorf("refreshed access token does not validate: %v", err)
	}

	// Rotation invalidates the old refresh token.
	if _, err := svc.Refresh(ctx, issued.RefreshToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Refresh() with rotated-out token error = %v, want %v", err, domain.ErrUnauthorized)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	svc, _, _, _ := newTokenFixture(t)

	if _, err := svc.Refresh(context.Background(), "never-issued"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Refresh() error = %v, want %v", err, domain.ErrUnauthorized)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, users, _, user := newTokenFixture(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := users.SetRefreshToken(ctx, user.ID, HashToken(issued.RefreshToken), time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SetRefreshToken() error = %v", err)
	}

	if _, err := svc.Refresh(ctx, issued.RefreshToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Refresh() with expired token error = %v, want %v", err, domain.ErrUnauthorized)
	}
}

func TestRefreshInactiveUser(t *testing.T) {
	svc, users, _, user := newTokenFixture(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	stored, err := users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	stored.Active = false
	if err := users.Update(ctx, stored); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if _, err := svc.Refresh(ctx, issued.RefreshToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Refresh() for inactive user error = %v, want %v", err, domain.ErrUnauthorized)
	}
}

func TestValidateRejections(t *testing.T) {
	svc, _, _, user := newTokenFixture(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	wrongSecret := testTokenConfig()
	wrongSecret.JWTSecret = []byte("ffffffffffffffffffffffffffffffff")
	wrongIssuer := testTokenConfig()
	wrongIssuer.Issuer = "someone-else"
	wrongAudience := testTokenConfig()
	wrongAudience.Audience = "other-app"
	expired := testTokenConfig()
	expired.AccessTokenTTL = -time.Minute

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not.a.jwt"},
		{name: "empty", token: ""},
		{name: "tampered", token: issued.AccessToken + "x"},
		{name: "wrong signing key", token: mustIssue(t, NewTokenService(wrongSecret, newFakeUserStore(), newFakeRBACStore()), user)},
		{name: "wrong issuer", token: mustIssue(t, NewTokenService(wrongIssuer, newFakeUserStore(), newFakeRBACStore()), user)},
		{name: "wrong audience", token: mustIssue(t, NewTokenService(wrongAudience, newFakeUserStore(), newFakeRBACStore()), user)},
		{name: "expired", token: mustIssue(t, NewTokenService(expired, newFakeUserStore(), newFakeRBACStore()), user)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Validate(tt.token); !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("Validate() error = %v, want %v", err, domain.ErrUnauthorized)
			}
		})
	}
}

func mustIssue(t *testing.T, svc *TokenService, user *domain.User) string {
	t.Helper()
	clone := *user
	store := svc.users.(*fakeUserStore)
	store.add(&clone)
	result, err := svc.Issue(context.Background(), &clone)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return result.AccessToken
}

func TestRevoke(t *testing.T) {
	svc, _, _, user := newTokenFixture(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := svc.Revoke(ctx, user.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := svc.Refresh(ctx, issued.RefreshToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Refresh() after revoke error = %v, want %v", err, domain.ErrUnauthorized)
	}
}

func TestRevokeByRefreshToken(t *testing.T) {
	svc, _, _, user := newTokenFixture(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := svc.RevokeByRefreshToken(ctx, issued.RefreshToken); err != nil {
		t.Fatalf("RevokeByRefreshToken() error = %v", err)
	}
	if _, err := svc.Refresh(ctx, issued.RefreshToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Refresh() after revoke error = %v, want %v", err, domain.ErrUnauthorized)
	}

	if err := svc.RevokeByRefreshToken(ctx, "never-issued"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("RevokeByRefreshToken() with unknown token error = %v, want %v", err, domain.ErrUnauthorized)
	}
}

func TestMFAChallengeRoundTrip(t *testing.T) {
	svc, _, _, user := newTokenFixture(t)

	challenge, err := svc.IssueMFAChallenge(user)
	if err != nil {
		t.Fatalf("IssueMFAChallenge() error = %v", err)
	}
	if challenge == "" {
		t.Fatal("IssueMFAChallenge() returned empty token")
	}

	userID, err := svc.ValidateMFAChallenge(challenge)
	if err != nil {
		t.Fatalf("ValidateMFAChallenge() error = %v", err)
	}
	if userID != user.ID {
		t.Errorf("ValidateMFAChallenge() user = %v, want %v", userID, user.ID)
	}
}

func TestMFAChallengeGrantsNoAccess(t *testing.T) {
	svc, _, _, user := newTokenFixture(t)

	challenge, err := svc.IssueMFAChallenge(user)
	if err != nil {
		t.Fatalf("IssueMFAChallenge() error = %v", err)
	}
	if _, err := svc.Validate(challenge); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Validate(challenge) error = %v, want %v", err, domain.ErrUnauthorized)
	}
}

func TestMFAChallengeRejectsAccessToken(t *testing.T) {
	svc, _, _, user := newTokenFixture(t)

	issued, err := svc.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := svc.ValidateMFAChallenge(issued.AccessToken); !errors.Is(err, domain.ErrMFAChallengeExpired) {
		t.Errorf("ValidateMFAChallenge(access token) error = %v, want %v", err, domain.ErrMFAChallengeExpired)
	}
}

func TestMFAChallengeExpired(t *testing.T) {
	cfg := testTokenConfig()
	cfg.MFAChallengeTTL = -time.Minute
	svc := NewTokenService(cfg, newFakeUserStore(), newFakeRBACStore())

	user := &domain.User{ID: uuid.New(), Email: "jdoe@example.com", Active: true}
	challenge, err := svc.IssueMFAChallenge(user)
	if err != nil {
		t.Fatalf("IssueMFAChallenge() error = %v", err)
	}
	if _, err := svc.ValidateMFAChallenge(challenge); !errors.Is(err, domain.ErrMFAChallengeExpired) {
		t.Errorf("ValidateMFAChallenge(expired) error = %v, want %v", err, domain.ErrMFAChallengeExpired)
	}
}

func TestMFAChallengeGarbage(t *testing.T) {
	svc, _, _, _ := newTokenFixture(t)

	for _, challenge := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := svc.ValidateMFAChallenge(challenge); !errors.Is(err, domain.ErrMFAChallengeExpired) {
			t.Errorf("ValidateMFAChallenge(%q) error = %v, want %v", challenge, err, domain.ErrMFAChallengeExpired)
		}
	}
}
