package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/redclaw/internal/auth"
	"github.com/fjod/redclaw/internal/domain"
)

func testTokens() *auth.Tokens {
	return auth.NewTokens(auth.TokenConfig{AccessSecret: "access-secret", RefreshSecret: "refresh-secret"})
}

func echoPrincipal() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"user": p.UserID.String(), "role": p.Role})
	})
}

func TestAuthenticate(t *testing.T) {
	tokens := testTokens()
	userID := uuid.New()
	access, err := tokens.IssueAccess(userID, domain.RoleCustomer)
	require.NoError(t, err)
	refresh, err := tokens.IssueRefresh(userID)
	require.NoError(t, err)

	handler := Authenticate(tokens)(echoPrincipal())

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), userID.String())
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: access})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+refresh)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid access token")
	})

	t.Run("basic scheme ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic "+access)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

type expiredParser struct{}

func (expiredParser) ParseAccess(string) (*auth.Claims, error) {
	return nil, auth.ErrExpiredToken
}

func TestAuthenticate_Expired(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	Authenticate(expiredParser{})(echoPrincipal()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token_expired")
}

func TestAdminOnly(t *testing.T) {
	handler := AdminOnly(echoPrincipal())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New()))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := httptest.NewRequest(http.MethodGet, "/", nil)
	admin = admin.WithContext(WithPrincipal(admin.Context(), Principal{UserID: uuid.New(), Role: domain.RoleAdmin}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 2)
	limiter.now = func() time.Time { return now }

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := limiter.Middleware(ok)

	alice, bob := uuid.New(), uuid.New()
	call := func(userID uuid.UUID) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/", nil), userID))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call(alice).Code)
	assert.Equal(t, http.StatusNoContent, call(alice).Code)

	limited := call(alice)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	// buckets are per user
	assert.Equal(t, http.StatusNoContent, call(bob).Code)

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusNoContent, call(alice).Code)
}

func TestRateLimiter_AnonymousByAddress(t *testing.T) {
	limiter := NewRateLimiter(0.001, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5001"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:5000"))
}

func TestRateLimiter_PrunesIdleVisitors(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, 1)
	limiter.now = func() time.Time { return now }

	limiter.reserve("user:a")
	now = now.Add(11 * time.Minute)
	limiter.reserve("user:b")

	assert.Len(t, limiter.visitors, 1)
	assert.Contains(t, limiter.visitors, "user:b")
}
