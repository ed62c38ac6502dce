// Package telegram is a minimal Bot API client covering the Stars payment methods.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chris/stars-ledger/pkg/metrics"
	"github.com/chris/stars-ledger/pkg/retry"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// ErrProviderUnavailable is returned when the Bot API could not be reached after every retry.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// APIError is a request the Bot API answered with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed with code %d: %s", e.Method, e.Code, e.Description)
}

// temporary reports whether retrying the call could succeed.
func (e *APIError) temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError || e.Code == 0
}

// Client defines the Bot API calls used by the ledger.
type Client interface {
	// CreateInvoiceLink creates a payable invoice link and returns it.
	CreateInvoiceLink(ctx context.Context, req InvoiceLinkRequest) (string, error)

	// AnswerPreCheckoutQuery confirms or rejects a pending checkout.
	AnswerPreCheckoutQuery(ctx context.Context, queryID string, approve bool, errorMessage string) error

	// SendMessage sends a text message to a chat.
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// HTTPClient implements Client over HTTPS.
type HTTPClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Policy  retry.Policy
	Metrics *metrics.Metrics
}

// NewHTTPClient creates an HTTPClient for the given bot token.
func NewHTTPClient(token string, policy retry.Policy, m *metrics.Metrics) *HTTPClient {
	return &HTTPClient{
		BaseURL: DefaultBaseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Policy:  policy,
		Metrics: m,
	}
}

// Make sure we conform to the interface
var _ Client = (*HTTPClient)(nil)

// CreateInvoiceLink calls createInvoiceLink.
func (c *HTTPClient) CreateInvoiceLink(ctx context.Context, req InvoiceLinkRequest) (string, error) {
	var link string
	if err := c.call(ctx, "createInvoiceLink", req, &link); err != nil {
		return "", err
	}
	return link, nil
}

// AnswerPreCheckoutQuery calls answerPreCheckoutQuery.
func (c *HTTPClient) AnswerPreCheckoutQuery(ctx context.Context, queryID string, approve bool, errorMessage string) error {
	return c.call(ctx, "answerPreCheckoutQuery", answerPreCheckoutQueryRequest{
		PreCheckoutQueryID: queryID,
		OK:                 approve,
		ErrorMessage:       errorMessage,
	}, nil)
}

// SendMessage calls sendMessage.
func (c *HTTPClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text}, nil)
}

// call posts body to method under the retry policy and decodes the result into out.
func (c *HTTPClient) call(ctx context.Context, method string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/bot" + c.Token + "/" + method

	err = c.Policy.Do(ctx, func(ctx context.Context) error {
		return c.post(ctx, method, endpoint, payload, out)
	}, func(attempt int, err error, wait time.Duration) {
		c.Metrics.ProviderCallFailed(method)
		slog.Log(ctx, slog.LevelWarn, "telegram call failed, retrying", "method", method, "attempt", attempt, "wait", wait.String(), "error", err)
	})
	if err == nil {
		return nil
	}

	c.Metrics.ProviderCallFailed(method)
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.temporary() {
		return apiErr
	}
	return fmt.Errorf("telegram %s: %w: %w", method, ErrProviderUnavailable, err)
}

func (c *HTTPClient) post(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to build %s request: %w", method, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		// The URL carries the bot token, so only the underlying cause is kept.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode %s response (status %d): %w", method, resp.StatusCode, err)
	}

	if !envelope.OK {
		apiErr := &APIError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if !apiErr.temporary() {
			return retry.Permanent(apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return retry.Permanent(fmt.Errorf("failed to decode %s result: %w", method, err))
	}
	return nil
}
