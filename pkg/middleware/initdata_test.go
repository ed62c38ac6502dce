package middleware

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:test-token"

func signedInitData(botToken string, userID int64, authDate time.Time) string {
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("query_id", "AAF")
	values.Set("user", `{"id":`+strconv.FormatInt(userID, 10)+`,"first_name":"Ada"}`)
	values.Set("hash", initDataHash(values, botToken))
	return values.Encode()
}

func TestVerifyInitData(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		id, err := VerifyInitData(signedInitData(testBotToken, 100, now.Add(-time.Hour)), testBotToken, DefaultInitDataMaxAge, now)

		require.NoError(t, err)
		assert.Equal(t, "100", id)
	})

	t.Run("Forged Hash", func(t *testing.T) {
		values, err := url.ParseQuery(signedInitData(testBotToken, 100, now))
		require.NoError(t, err)
		values.Set("hash", strings.Repeat("ab", 32))

		_, err = VerifyInitData(values.Encode(), testBotToken, DefaultInitDataMaxAge, now)

		assert.ErrorIs(t, err, ErrInvalidInitData)
	})

	t.Run("Signed With Another Bot", func(t *testing.T) {
		_, err := VerifyInitData(signedInitData("999:other", 100, now), testBotToken, DefaultInitDataMaxAge, now)

		assert.ErrorIs(t, err, ErrInvalidInitData)
	})

	t.Run("Tampered User", func(t *testing.T) {
		values, err := url.ParseQuery(signedInitData(testBotToken, 300, now))
		require.NoError(t, err)
		values.Set("user", `{"id":100}`)

		_, err = VerifyInitData(values.Encode(), testBotToken, DefaultInitDataMaxAge, now)

		assert.ErrorIs(t, err, ErrInvalidInitData)
	})

	t.Run("Expired Auth Date", func(t *testing.T) {
		_, err := VerifyInitData(signedInitData(testBotToken, 100, now.Add(-25*time.Hour)), testBotToken, DefaultInitDataMaxAge, now)

		assert.ErrorIs(t, err, ErrInitDataExpired)
	})

	t.Run("Auth Date In The Future", func(t *testing.T) {
		_, err := VerifyInitData(signedInitData(testBotToken, 100, now.Add(time.Hour)), testBotToken, DefaultInitDataMaxAge, now)

		assert.ErrorIs(t, err, ErrInitDataExpired)
	})

	t.Run("Missing Hash", func(t *testing.T) {
		_, err := VerifyInitData("auth_date=1&user=%7B%22id%22%3A100%7D", testBotToken, DefaultInitDataMaxAge, now)

		assert.ErrorIs(t, err, ErrInvalidInitData)
	})
}

func TestLogin(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	auth := NewAdminAuth("secret", testBotToken, []string{"100"})
	auth.now = func() time.Time { return now }

	t.Run("Success", func(t *testing.T) {
		token, expiresAt, err := auth.Login(signedInitData(testBotToken, 100, now.Add(-time.Minute)))

		require.NoError(t, err)
		assert.Equal(t, now.Add(TokenTTL), expiresAt)
		claims, err := auth.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "100", claims.TelegramID)
	})

	t.Run("Signed User Not Admin", func(t *testing.T) {
		_, _, err := auth.Login(signedInitData(testBotToken, 200, now))

		assert.ErrorIs(t, err, ErrNotAdmin)
	})

	t.Run("Bare Telegram Id Is Not Enough", func(t *testing.T) {
		_, _, err := auth.Login("100")

		assert.ErrorIs(t, err, ErrInvalidInitData)
	})

	t.Run("Expired", func(t *testing.T) {
		_, _, err := auth.Login(signedInitData(testBotToken, 100, now.Add(-48*time.Hour)))

		assert.ErrorIs(t, err, ErrInitDataExpired)
	})

	t.Run("No Bot Token", func(t *testing.T) {
		_, _, err := NewAdminAuth("secret", "", []string{"100"}).Login(signedInitData("", 100, now))

		assert.ErrorIs(t, err, ErrAuthDisabled)
	})
}
