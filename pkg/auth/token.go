package auth

import (
	"context"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/urbanserve/identity/pkg/domain"
)

const (
	refreshTokenLen = 64

	DefaultAccessTokenTTL  = 60 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	DefaultMFAChallengeTTL = 5 * time.Minute

	mfaChallengeAudSuffix = ":mfa-challenge"
)

// TokenConfig holds token issuance configuration.
type TokenConfig struct {
	JWTSecret       []byte
	Issuer          string
	Audience        string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	MFAChallengeTTL time.Duration
}

// TokenService issues, refreshes, validates, and revokes tokens.
// Each user holds at most one active refresh token; issuing or refreshing
// overwrites the stored value, so older refresh tokens stop working.
type TokenService struct {
	config TokenConfig
	users  UserStore
	rbac   RBACStore
}

// NewTokenService creates a new token service.
func NewTokenService(config TokenConfig, users UserStore, rbac RBACStore) *TokenService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if config.MFAChallengeTTL == 0 {
		config.MFAChallengeTTL = DefaultMFAChallengeTTL
	}
	return &TokenService{config: config, users: users, rbac: rbac}
}

// AccessTokenTTL returns the access token TTL.
func (s *TokenService) AccessTokenTTL() time.Duration {
	return s.config.AccessTokenTTL
}

// RefreshTokenTTL returns the refresh token TTL.
func (s *TokenService) RefreshTokenTTL() time.Duration {
	return s.config.RefreshTokenTTL
}

// AccessTokenClaims represents the claims in an access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Username      string   `json:"username,omitempty"`
	Email         string   `json:"email"`
	FirstName     string   `json:"given_name,omitempty"`
	LastName      string   `json:"family_name,omitempty"`
	Active        bool     `json:"active"`
	EmailVerified bool     `json:"email_verified"`
	Roles         []string `json:"roles,omitempty"`
	Groups        []string `json:"groups,omitempty"`
	Permissions   []string `json:"permissions,omitempty"`
}

// HasPermission reports whether the claims carry the named permission.
func (c *AccessTokenClaims) HasPermission(name string) bool {
	for _, p := range c.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// Issue resolves the user's effective roles, groups, and permissions and
// mints a signed access token plus a new opaque refresh token. The refresh
// token hash and expiry are stored on the user row, replacing any prior
// value.
func (s *TokenService) Issue(ctx context.Context, user *domain.User) (*domain.LoginResult, error) {
	profile, err := s.resolveAccess(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	accessExpiry := now.Add(s.config.AccessTokenTTL)

	username := ""
	if user.Username != nil {
		username = *user.Username
	}

	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
			Issuer:    s.config.Issuer,
			Audience:  jwt.ClaimStrings{s.config.Audience},
			ID:        uuid.NewString(),
		},
		Username:      username,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Active:        user.Active,
		EmailVerified: user.EmailVerified,
		Roles:         profile.Roles,
		Groups:        profile.Groups,
		Permissions:   profile.Permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString(s.config.JWTSecret)
	if err != nil {
		return nil, err
	}

	refreshToken, err := GenerateToken(refreshTokenLen)
	if err != nil {
		return nil, err
	}
	refreshExpiry := now.Add(s.config.RefreshTokenTTL)
	if err := s.users.SetRefreshToken(ctx, user.ID, HashToken(refreshToken), refreshExpiry); err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		TokenType:             "Bearer",
		ExpiresIn:             int(s.config.AccessTokenTTL.Seconds()),
		ExpiresAt:             accessExpiry,
		RefreshTokenExpiresAt: refreshExpiry,
		User: domain.UserProfile{
			ID:            user.ID.String(),
			Email:         user.Email,
			Username:      username,
			FirstName:     user.FirstName,
			LastName:      user.LastName,
			EmailVerified: user.EmailVerified,
			Active:        user.Active,
		},
		Roles:       profile.Roles,
		Groups:      profile.Groups,
		Permissions: profile.Permissions,
	}, nil
}

// Refresh exchanges a refresh token for a new token pair, rotating the
// refresh token. Unknown, expired, and revoked tokens all fail with
// ErrUnauthorized.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (*domain.LoginResult, error) {
	user, err := s.users.GetByRefreshTokenHash(ctx, HashToken(refreshToken))
	if err != nil {
		return nil, domain.ErrUnauthorized
	}
	if !user.HasValidRefreshToken() {
		return nil, domain.ErrUnauthorized
	}
	if !user.Active {
		return nil, domain.ErrUnauthorized
	}

	return s.Issue(ctx, user)
}

// Validate verifies a token's signature, issuer, audience, and expiry with
// zero clock-skew tolerance. Every failure mode collapses to
// ErrUnauthorized; callers learn nothing about why validation failed.
func (s *TokenService) Validate(tokenString string) (*AccessTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthorized
		}
		return s.config.JWTSecret, nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(s.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(0),
	)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Revoke clears the user's stored refresh token so future refresh
// attempts fail.
func (s *TokenService) Revoke(ctx context.Context, userID uuid.UUID) error {
	return s.users.ClearRefreshToken(ctx, userID)
}

// IssueMFAChallenge mints a short-lived signed token proving the holder
// passed the password check. It grants no access by itself: the audience
// is scoped so Validate rejects it, and the login completes only when a
// second-factor code is presented alongside it.
func (s *TokenService) IssueMFAChallenge(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.MFAChallengeTTL)),
		Issuer:    s.config.Issuer,
		Audience:  jwt.ClaimStrings{s.config.Audience + mfaChallengeAudSuffix},
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.config.JWTSecret)
}

// ValidateMFAChallenge verifies a challenge token and returns the user it
// was issued for. Every failure mode, including an access token presented
// in place of a challenge, collapses to ErrMFAChallengeExpired.
func (s *TokenService) ValidateMFAChallenge(challenge string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(challenge, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrMFAChallengeExpired
		}
		return s.config.JWTSecret, nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(s.config.Audience+mfaChallengeAudSuffix),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(0),
	)
	if err != nil {
		return uuid.Nil, domain.ErrMFAChallengeExpired
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return uuid.Nil, domain.ErrMFAChallengeExpired
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, domain.ErrMFAChallengeExpired
	}
	return userID, nil
}

// RevokeByRefreshToken revokes the session owning the given refresh
// token. Unknown tokens fail with ErrUnauthorized.
func (s *TokenService) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	user, err := s.users.GetByRefreshTokenHash(ctx, HashToken(refreshToken))
	if err != nil {
		return domain.ErrUnauthorized
	}
	return s.users.ClearRefreshToken(ctx, user.ID)
}

// resolveAccess builds the de-duplicated authorization view from the
// user's currently effective role and group assignments.
func (s *TokenService) resolveAccess(ctx context.Context, userID uuid.UUID) (*domain.AccessProfile, error) {
	roles, err := s.rbac.EffectiveRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups, err := s.rbac.EffectiveGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	permissions, err := s.rbac.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := &domain.AccessProfile{}
	for _, r := range roles {
		profile.Roles = append(profile.Roles, r.Name)
	}
	for _, g := range groups {
		profile.Groups = append(profile.Groups, g.Name)
	}
	seen := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		profile.Permissions = append(profile.Permissions, p.Name)
	}
	sort.Strings(profile.Roles)
	sort.Strings(profile.Groups)
	sort.Strings(profile.Permissions)
	return profile, nil
}
