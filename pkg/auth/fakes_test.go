package auth

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/urbanserve/identity/pkg/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// In-memory store implementations used across the service tests.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (s *fakeUserStore) add(user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *user
	s.users[user.ID] = &clone
}

func (s *fakeUserStore) Create(ctx context.Context, user *domain.User) error {
	s.add(user)
	return nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *fakeUserStore) GetByEmailOrUsername(ctx context.Context, identifier string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == identifier || (user.Username != nil && *user.Username == identifier) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *fakeUserStore) GetByRefreshTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.RefreshTokenHash != nil && *user.RefreshTokenHash == tokenHash {
			clone := *user
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *fakeUserStore) Update(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *fakeUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (s *fakeUserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Username != nil && *user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeUserStore) IncrementFailedLoginAttempts(ctx context.Context, userID uuid.UUID, lockoutDuration time.Duration, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= maxAttempts {
		until := time.Now().Add(lockoutDuration)
		user.LockedUntil = &until
	}
	return nil
}

func (s *fakeUserStore) ResetFailedLoginAttempts(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	return nil
}

func (s *fakeUserStore) SetRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.RefreshTokenHash = &tokenHash
	user.RefreshTokenExpiresAt = &expiresAt
	return nil
}

func (s *fakeUserStore) ClearRefreshToken(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.RefreshTokenHash = nil
	user.RefreshTokenExpiresAt = nil
	return nil
}

func (s *fakeUserStore) SetEmailVerified(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.EmailVerified = true
	return nil
}

func (s *fakeUserStore) SetMFAEnabled(ctx context.Context, userID uuid.UUID, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.MFAEnabled = enabled
	return nil
}

func (s *fakeUserStore) SetPasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

type fakeOtpStore struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*domain.OtpToken
	// failCreate forces CreateReplacingActive to fail, for error paths.
	failCreate error
}

func newFakeOtpStore() *fakeOtpStore {
	return &fakeOtpStore{tokens: make(map[uuid.UUID]*domain.OtpToken)}
}

func (s *fakeOtpStore) CreateReplacingActive(ctx context.Context, token *domain.OtpToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}
	for _, existing := range s.tokens {
		if existing.UserID == token.UserID && existing.Purpose == token.Purpose && !existing.Used {
			existing.Used = true
		}
	}
	clone := *token
	s.tokens[token.ID] = &clone
	return nil
}

func (s *fakeOtpStore) GetLatestUnused(ctx context.Context, email string, purpose domain.OtpPurpose) (*domain.OtpToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var candidates []*domain.OtpToken
	for _, token := range s.tokens {
		if token.Email == email && token.Purpose == purpose && !token.Used {
			candidates = append(candidates, token)
		}
	}
	if len(candidates) == 0 {
		return nil, domain.ErrOtpNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	clone := *candidates[0]
	return &clone, nil
}

func (s *fakeOtpStore) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok {
		return 0, domain.ErrOtpNotFound
	}
	token.AttemptCount++
	return token.AttemptCount, nil
}

func (s *fakeOtpStore) MarkUsed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[id]
	if !ok || token.Used {
		return domain.ErrOtpNotFound
	}
	token.Used = true
	return nil
}

func (s *fakeOtpStore) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var deleted int64
	for id, token := range s.tokens {
		if token.ExpiresAt.Before(cutoff) {
			delete(s.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

// expire backdates the expiry of a stored token.
func (s *fakeOtpStore) expire(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.tokens[id]; ok {
		token.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

// lastToken returns the most recently created token.
func (s *fakeOtpStore) lastToken() *domain.OtpToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.OtpToken
	for _, token := range s.tokens {
		if latest == nil || token.CreatedAt.After(latest.CreatedAt) {
			latest = token
		}
	}
	if latest == nil {
		return nil
	}
	clone := *latest
	return &clone
}

type fakeRBACStore struct {
	roles       map[uuid.UUID][]domain.Role
	groups      map[uuid.UUID][]domain.Group
	permissions map[uuid.UUID][]domain.Permission
}

func newFakeRBACStore() *fakeRBACStore {
	return &fakeRBACStore{
		roles:       make(map[uuid.UUID][]domain.Role),
		groups:      make(map[uuid.UUID][]domain.Group),
		permissions: make(map[uuid.UUID][]domain.Permission),
	}
}

func (s *fakeRBACStore) EffectiveRoles(ctx context.Context, userID uuid.UUID) ([]domain.Role, error) {
	return s.roles[userID], nil
}

func (s *fakeRBACStore) EffectiveGroups(ctx context.Context, userID uuid.UUID) ([]domain.Group, error) {
	return s.groups[userID], nil
}

func (s *fakeRBACStore) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]domain.Permission, error) {
	return s.permissions[userID], nil
}

type sentEmail struct {
	kind    string
	to      string
	code    string
	purpose domain.OtpPurpose
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEmail
	// failSend forces delivery to fail.
	failSend error
}

func (n *fakeNotifier) record(email sentEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failSend != nil {
		return n.failSend
	}
	n.sent = append(n.sent, email)
	return nil
}

func (n *fakeNotifier) SendOtp(email, username, code string, purpose domain.OtpPurpose) error {
	return n.record(sentEmail{kind: "otp", to: email, code: code, purpose: purpose})
}

func (n *fakeNotifier) SendPasswordReset(email, username, token, link string) error {
	return n.record(sentEmail{kind: "password_reset", to: email})
}

func (n *fakeNotifier) SendWelcome(email, username string) error {
	return n.record(sentEmail{kind: "welcome", to: email})
}

func (n *fakeNotifier) SendLockoutNotice(email, username string, until time.Time) error {
	return n.record(sentEmail{kind: "lockout", to: email})
}

func (n *fakeNotifier) SendPasswordChangedNotice(email, username string) error {
	return n.record(sentEmail{kind: "password_changed", to: email})
}

func (n *fakeNotifier) sentKinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]string, len(n.sent))
	for i, e := range n.sent {
		kinds[i] = e.kind
	}
	return kinds
}
