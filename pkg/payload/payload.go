// Package payload encodes the invoice payload that carries an intent id through the payment provider.
//
// The format is version 1 of the Stars payload:
//
//	stars_payment:<intentId>:<externalAccountId>
//
// The intent id is a positive decimal integer without sign or leading zeros. The account id is
// any non-empty string without a colon. The whole payload must fit the provider's 128 byte limit.
package payload

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// Prefix marks payloads issued by this service.
	Prefix = "stars_payment"

	// MaxLength is the provider limit for invoice payloads, in bytes.
	MaxLength = 128

	separator = ":"
)

var (
	// ErrForeignPayload is returned for payloads that were not issued by this service.
	ErrForeignPayload = errors.New("payload was not issued by this service")

	// ErrMalformed is returned for payloads with the right prefix but an invalid shape.
	ErrMalformed = errors.New("malformed payload")
)

// Payload is the decoded form of an invoice payload.
type Payload struct {
	IntentID          int64
	ExternalAccountID string
}

// Encode builds the payload for an intent.
func Encode(intentID int64, externalAccountID string) (string, error) {
	if intentID <= 0 {
		return "", fmt.Errorf("intent id %d: %w", intentID, ErrMalformed)
	}
	if externalAccountID == "" || strings.Contains(externalAccountID, separator) {
		return "", fmt.Errorf("account id %q: %w", externalAccountID, ErrMalformed)
	}

	encoded := Prefix + separator + strconv.FormatInt(intentID, 10) + separator + externalAccountID
	if len(encoded) > MaxLength {
		return "", fmt.Errorf("payload is %d bytes: %w", len(encoded), ErrMalformed)
	}
	return encoded, nil
}

// String returns the encoded form of p. It returns an empty string if p cannot be encoded.
func (p Payload) String() string {
	encoded, _ := Encode(p.IntentID, p.ExternalAccountID)
	return encoded
}

// Decode parses a payload. Anything that does not match the format exactly is rejected.
func Decode(raw string) (Payload, error) {
	parts := strings.Split(raw, separator)
	if parts[0] != Prefix {
		return Payload{}, ErrForeignPayload
	}
	if len(raw) > MaxLength || len(parts) != 3 {
		return Payload{}, ErrMalformed
	}

	idPart, accountPart := parts[1], parts[2]
	if !isCanonicalInt(idPart) || accountPart == "" {
		return Payload{}, ErrMalformed
	}

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return Payload{}, ErrMalformed
	}

	return Payload{IntentID: id, ExternalAccountID: accountPart}, nil
}

// isCanonicalInt reports whether s is a run of ASCII digits without a leading zero.
func isCanonicalInt(s string) bool {
	if s == "" || s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
