// Package invoice issues Stars purchase invoices.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chris/stars-ledger/pkg/catalog"
	"github.com/chris/stars-ledger/pkg/metrics"
	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/payload"
	"github.com/chris/stars-ledger/pkg/provider/telegram"
	"github.com/chris/stars-ledger/pkg/storage"
)

// SimulateEndpoint is where simulated invoices are confirmed.
const SimulateEndpoint = "/api/payments/simulate-success"

var (
	// ErrInvalidRequest is returned for requests rejected before touching the store.
	ErrInvalidRequest = errors.New("invalid invoice request")

	// ErrAccountBlocked is returned when a blocked account tries to buy Stars.
	ErrAccountBlocked = errors.New("account is blocked")

	// ErrProviderUnavailable is returned when the payment provider could not issue a link.
	// The intent stays pending.
	ErrProviderUnavailable = telegram.ErrProviderUnavailable
)

// Request is an invoice creation request.
type Request struct {
	ExternalUserID string
	PackageKey     string
	DisplayName    string
}

// Invoice is the result of a successful request.
// Live invoices carry PayableLink, simulated ones carry SimulateEndpoint.
type Invoice struct {
	Mode             models.IssuanceMode
	IntentID         int64
	Amount           int64
	PayableLink      string
	SimulateEndpoint string
}

// Issuer creates pending intents and the matching payable reference.
type Issuer struct {
	store    storage.ApiStore
	catalog  *catalog.Catalog
	provider telegram.Client
	mode     models.IssuanceMode
	metrics  *metrics.Metrics
}

// NewIssuer creates an Issuer. provider may be nil in simulated mode.
func NewIssuer(store storage.ApiStore, cat *catalog.Catalog, provider telegram.Client, mode models.IssuanceMode, m *metrics.Metrics) *Issuer {
	return &Issuer{
		store:    store,
		catalog:  cat,
		provider: provider,
		mode:     mode,
		metrics:  m,
	}
}

// Mode returns the issuance mode of new invoices.
func (i *Issuer) Mode() models.IssuanceMode {
	return i.mode
}

// CreateInvoice resolves the package, records a pending intent and issues the payable reference.
func (i *Issuer) CreateInvoice(ctx context.Context, req Request) (*Invoice, error) {
	// 1. Validate before touching the store.
	externalID := strings.TrimSpace(req.ExternalUserID)
	if externalID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	pkg, err := i.catalog.Resolve(req.PackageKey)
	if err != nil {
		return nil, err
	}

	// 2. Resolve the buyer.
	account, err := i.store.GetOrCreateAccount(ctx, externalID, req.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}
	if account.Status == models.BLOCKED {
		return nil, fmt.Errorf("account %s: %w", account.ID, ErrAccountBlocked)
	}

	// 3. Record the pending intent.
	intent, err := i.store.CreateIntent(ctx, &models.PaymentIntent{
		AccountID: account.ID,
		Amount:    pkg.Amount,
		Currency:  models.CurrencyStars,
		Mode:      i.mode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	slog.Log(ctx, slog.LevelInfo, "payment intent created", "intent_id", intent.ID, "account_id", account.ID, "amount", pkg.Amount, "mode", i.mode)

	invoice := &Invoice{
		Mode:     i.mode,
		IntentID: intent.ID,
		Amount:   intent.Amount,
	}

	if i.mode == models.SIMULATED {
		invoice.SimulateEndpoint = SimulateEndpoint
		i.metrics.InvoiceIssued(string(i.mode))
		return invoice, nil
	}

	// 4. Ask the provider for a payable link.
	link, err := i.issueLink(ctx, intent, account)
	if err != nil {
		return nil, err
	}
	invoice.PayableLink = link
	i.metrics.InvoiceIssued(string(i.mode))
	return invoice, nil
}

func (i *Issuer) issueLink(ctx context.Context, intent *models.PaymentIntent, account *models.Account) (string, error) {
	if i.provider == nil {
		return "", fmt.Errorf("no payment provider configured: %w", ErrProviderUnavailable)
	}

	encoded, err := payload.Encode(intent.ID, account.ID)
	if err != nil {
		return "", fmt.Errorf("failed to encode invoice payload: %w", err)
	}

	link, err := i.provider.CreateInvoiceLink(ctx, telegram.InvoiceLinkRequest{
		Title:       "Stars Purchase",
		Description: fmt.Sprintf("Buy %d Telegram Stars", intent.Amount),
		Payload:     encoded,
		Currency:    models.CurrencyStars,
		Prices:      []telegram.LabeledPrice{{Label: "Stars Purchase", Amount: intent.Amount}},
	})
	if err == nil {
		return link, nil
	}

	// The intent stays pending so it can be retried or investigated.
	if retryErr := i.store.IncrementIntentRetries(ctx, intent.ID); retryErr != nil {
		slog.Log(ctx, slog.LevelError, "failed to record provider failure", "intent_id", intent.ID, "error", retryErr)
	}
	slog.Log(ctx, slog.LevelWarn, "payment provider failed to issue invoice", "intent_id", intent.ID, "error", err)

	if errors.Is(err, ErrProviderUnavailable) {
		return "", fmt.Errorf("failed to issue invoice for intent %d: %w", intent.ID, err)
	}
	return "", fmt.Errorf("failed to issue invoice for intent %d: %w: %w", intent.ID, ErrProviderUnavailable, err)
}
