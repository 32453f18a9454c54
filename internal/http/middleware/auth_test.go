package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/urbanserve/identity/pkg/auth"
)

var testJWTSecret = []byte("0123456789abcdef0123456789abcdef")

func testTokenService() *auth.TokenService {
	return auth.NewTokenService(auth.TokenConfig{
		JWTSecret: testJWTSecret,
		Issuer:    "urbanserve-identity",
		Audience:  "urbanserve",
	}, nil, nil)
}

func signedToken(t *testing.T, userID uuid.UUID, permissions []string) string {
	t.Helper()
	now := time.Now()
	claims := auth.AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			Issuer:    "urbanserve-identity",
			Audience:  jwt.ClaimStrings{"urbanserve"},
			ID:        uuid.NewString(),
		},
		Email:       "jane@example.com",
		Active:      true,
		Permissions: permissions,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTSecret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func TestAuth(t *testing.T) {
	tokens := testTokenService()
	userID := uuid.New()

	var gotUserID uuid.UUID
	handler := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserID(r.Context())
		if !ok {
			t.Error("user ID missing from request context")
		}
		gotUserID = id
		if _, ok := GetClaims(r.Context()); !ok {
			t.Error("claims missing from request context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/me", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, userID, nil))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if gotUserID != userID {
			t.Errorf("context user ID = %v, want %v", gotUserID, userID)
		}
	})

	t.Run("cookie fallback", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/me", nil)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: signedToken(t, userID, nil)})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/me", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("malformed token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/me", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/me", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

func TestRequirePermission(t *testing.T) {
	tokens := testTokenService()
	userID := uuid.New()

	handler := Auth(tokens)(RequirePermission("jobs.read")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	t.Run("granted", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/jobs", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, userID, []string{"jobs.read"}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("denied", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/v1/jobs", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, userID, []string{"jobs.bid"}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
		}
	})

	t.Run("without auth context", func(t *testing.T) {
		bare := RequirePermission("jobs.read")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		req := httptest.NewRequest("GET", "/v1/jobs", nil)
		w := httptest.NewRecorder()
		bare.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}
