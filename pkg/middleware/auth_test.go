package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chris/stars-ledger/pkg/api"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueToken(t *testing.T) {
	auth := NewAdminAuth("secret", "bot-token", []string{"100", " 200 "})

	t.Run("Success", func(t *testing.T) {
		token, expiresAt, err := auth.IssueToken("200")

		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(TokenTTL), expiresAt, time.Minute)
		claims, err := auth.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "200", claims.TelegramID)
	})

	t.Run("Not Admin", func(t *testing.T) {
		_, _, err := auth.IssueToken("300")

		assert.ErrorIs(t, err, ErrNotAdmin)
	})

	t.Run("No Secret", func(t *testing.T) {
		_, _, err := NewAdminAuth("", "bot-token", []string{"100"}).IssueToken("100")

		assert.ErrorIs(t, err, ErrAuthDisabled)
	})
}

func TestVerify(t *testing.T) {
	auth := NewAdminAuth("secret", "bot-token", []string{"100"})

	t.Run("Expired", func(t *testing.T) {
		auth.now = func() time.Time { return time.Now().Add(-2 * TokenTTL) }
		token, _, err := auth.IssueToken("100")
		require.NoError(t, err)
		auth.now = time.Now

		_, err = auth.Verify(token)

		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("Wrong Secret", func(t *testing.T) {
		token, _, err := NewAdminAuth("other", "bot-token", []string{"100"}).IssueToken("100")
		require.NoError(t, err)

		_, err = auth.Verify(token)

		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("Unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{TelegramID: "100"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = auth.Verify(token)

		assert.Error(t, err)
	})
}

func TestAdminAuthMiddleware(t *testing.T) {
	auth := NewAdminAuth("secret", "bot-token", []string{"100"})
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AdminFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	secured := func(token string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/me", nil)
		req = req.WithContext(context.WithValue(req.Context(), api.BearerAuthScopes, []string{}))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req
	}

	t.Run("Public Operation", func(t *testing.T) {
		rr := httptest.NewRecorder()

		auth.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/payments/packages", nil))

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("Valid Token", func(t *testing.T) {
		token, _, err := auth.IssueToken("100")
		require.NoError(t, err)
		rr := httptest.NewRecorder()

		auth.Middleware(next).ServeHTTP(rr, secured(token))

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "100", seen)
	})

	t.Run("Missing Token", func(t *testing.T) {
		rr := httptest.NewRecorder()

		auth.Middleware(next).ServeHTTP(rr, secured(""))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Revoked Admin", func(t *testing.T) {
		token, _, err := NewAdminAuth("secret", "bot-token", []string{"999"}).IssueToken("999")
		require.NoError(t, err)
		rr := httptest.NewRecorder()

		auth.Middleware(next).ServeHTTP(rr, secured(token))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}
