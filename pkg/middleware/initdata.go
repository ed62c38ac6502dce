package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidInitData is returned when Mini App initData is unsigned, forged or incomplete.
	ErrInvalidInitData = errors.New("invalid telegram init data")

	// ErrInitDataExpired is returned when initData was signed too long ago.
	ErrInitDataExpired = errors.New("telegram init data expired")
)

// clockSkew tolerates auth_date values slightly ahead of the local clock.
const clockSkew = time.Minute

// VerifyInitData checks the Telegram WebApp initData signature and freshness and returns the signed user id.
func VerifyInitData(initData, botToken string, maxAge time.Duration, now time.Time) (string, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}

	received := values.Get("hash")
	if received == "" {
		return "", fmt.Errorf("%w: missing hash", ErrInvalidInitData)
	}
	values.Del("hash")

	expected := initDataHash(values, botToken)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(received))) {
		return "", fmt.Errorf("%w: signature mismatch", ErrInvalidInitData)
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: bad auth_date", ErrInvalidInitData)
	}
	signedAt := time.Unix(authDate, 0)
	if now.Sub(signedAt) > maxAge || signedAt.Sub(now) > clockSkew {
		return "", ErrInitDataExpired
	}

	var user struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID <= 0 {
		return "", fmt.Errorf("%w: missing user", ErrInvalidInitData)
	}
	return strconv.FormatInt(user.ID, 10), nil
}

// initDataHash is hex(HMAC_SHA256(HMAC_SHA256("WebAppData", botToken), data_check_string)).
func initDataHash(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, key := range keys {
		lines[i] = key + "=" + values.Get(key)
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
