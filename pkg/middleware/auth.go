package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chris/stars-ledger/pkg/api"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenTTL is how long an admin token stays valid.
	TokenTTL = time.Hour

	// DefaultInitDataMaxAge bounds how old the initData presented at login may be.
	DefaultInitDataMaxAge = 24 * time.Hour
)

var (
	// ErrNotAdmin is returned when a token is requested for an id outside the admin list.
	ErrNotAdmin = errors.New("not an admin")

	// ErrAuthDisabled is returned when no signing secret or bot token is configured.
	ErrAuthDisabled = errors.New("admin authentication is not configured")
)

// Claims are the claims carried by an admin token.
type Claims struct {
	TelegramID string `json:"telegram_id"`
	jwt.RegisteredClaims
}

type adminKey struct{}

// AdminFromContext returns the admin id stored by AdminAuth.
func AdminFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(adminKey{}).(string)
	return id, ok
}

// WithAdmin stores an authenticated admin id in ctx.
func WithAdmin(ctx context.Context, telegramID string) context.Context {
	return context.WithValue(ctx, adminKey{}, telegramID)
}

// AdminAuth issues and checks HS256 tokens for a fixed list of admin ids.
// Tokens are only handed out against initData signed with the bot token.
type AdminAuth struct {
	// InitDataMaxAge bounds the age of the initData accepted by Login.
	InitDataMaxAge time.Duration

	secret   []byte
	botToken string
	admins   map[string]struct{}
	now      func() time.Time
}

// NewAdminAuth creates an AdminAuth. An empty secret rejects every request and an empty bot token disables login.
func NewAdminAuth(secret, botToken string, adminIDs []string) *AdminAuth {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = struct{}{}
		}
	}
	return &AdminAuth{
		InitDataMaxAge: DefaultInitDataMaxAge,
		secret:         []byte(secret),
		botToken:       botToken,
		admins:         admins,
		now:            time.Now,
	}
}

// Login verifies Telegram WebApp initData and issues a token when the signed user is an admin.
func (a *AdminAuth) Login(initData string) (string, time.Time, error) {
	if len(a.secret) == 0 || a.botToken == "" {
		return "", time.Time{}, ErrAuthDisabled
	}

	telegramID, err := VerifyInitData(initData, a.botToken, a.InitDataMaxAge, a.now())
	if err != nil {
		return "", time.Time{}, err
	}
	return a.IssueToken(telegramID)
}

// IsAdmin reports whether telegramID is on the admin list.
func (a *AdminAuth) IsAdmin(telegramID string) bool {
	_, ok := a.admins[telegramID]
	return ok
}

// IssueToken signs a token for an admin. telegramID must already be authenticated.
func (a *AdminAuth) IssueToken(telegramID string) (string, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, ErrAuthDisabled
	}
	if !a.IsAdmin(telegramID) {
		return "", time.Time{}, ErrNotAdmin
	}

	now := a.now()
	expiresAt := now.Add(TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TelegramID: telegramID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   telegramID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign admin token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses a token and returns its claims.
func (a *AdminAuth) Verify(tokenString string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, ErrAuthDisabled
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid admin token: %w", err)
	}
	return claims, nil
}

// Middleware guards operations that declare bearer auth. Other operations pass through.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Context().Value(api.BearerAuthScopes) == nil {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			deny(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := a.Verify(tokenString)
		if err != nil {
			slog.Log(r.Context(), slog.LevelWarn, "rejected admin token", "error", err)
			deny(w, http.StatusUnauthorized, "invalid token")
			return
		}
		// The admin list may have shrunk since the token was issued.
		if !a.IsAdmin(claims.TelegramID) {
			deny(w, http.StatusForbidden, "admin access revoked")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), claims.TelegramID)))
	})
}

func deny(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.Error{Error: message})
}
