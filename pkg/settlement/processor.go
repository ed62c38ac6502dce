// Package settlement turns payment confirmations into exactly-once balance credits.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chris/stars-ledger/pkg/metrics"
	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/payload"
	"github.com/chris/stars-ledger/pkg/provider/telegram"
	"github.com/chris/stars-ledger/pkg/storage"
	"github.com/chris/stars-ledger/pkg/websockets"
)

// Result types.
const (
	TypeSuccessfulPayment = "successful_payment"
	TypePreCheckoutQuery  = "pre_checkout_query"
	TypeCommand           = "command"
	TypeInvoice           = "invoice"
	TypeUnknown           = "unknown"
)

// Result statuses.
const (
	StatusPaid              = "paid"
	StatusDuplicateIgnored  = "duplicate_ignored"
	StatusPaymentNotFound   = "payment_not_found"
	StatusIgnoredPayload    = "ignored_payload"
	StatusInvalidTransition = "invalid_transition"
	StatusAmountMismatch    = "amount_mismatch"
	StatusAnswered          = "answered"
	StatusRejected          = "rejected"
	StatusBuyStarsSent      = "buy_stars_sent"
	StatusPending           = "pending"
	StatusIgnored           = "ignored"
)

var (
	// ErrValidation is returned for privileged requests rejected before touching the store.
	ErrValidation = errors.New("validation failed")

	// ErrSimulationDisabled is returned when self-service confirmation is not allowed.
	ErrSimulationDisabled = errors.New("simulation is disabled in live mode")
)

// Result is the outcome of an inbound provider event.
type Result struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	IntentID int64  `json:"paymentId,omitempty"`
}

// Confirmation is a provider notification that a payment went through.
type Confirmation struct {
	Payload   string
	Reference string
	Amount    int64
	Currency  string
}

// Auditor records privileged mutations.
type Auditor interface {
	Record(ctx context.Context, actorID string, action models.AuditAction, targetID string)
}

// Processor validates confirmations against the ledger and applies them.
type Processor struct {
	store     storage.Storage
	auditor   Auditor
	publisher websockets.Publisher
	provider  telegram.Client
	mode      models.IssuanceMode
	metrics   *metrics.Metrics
}

// NewProcessor creates a Processor. publisher and provider may be nil.
func NewProcessor(store storage.Storage, auditor Auditor, publisher websockets.Publisher, provider telegram.Client, mode models.IssuanceMode, m *metrics.Metrics) *Processor {
	if publisher == nil {
		publisher = &websockets.NoOpPublisher{}
	}
	return &Processor{
		store:     store,
		auditor:   auditor,
		publisher: publisher,
		provider:  provider,
		mode:      mode,
		metrics:   m,
	}
}

// HandleConfirmation applies a provider confirmation.
// Business outcomes are reported in the Result; only infrastructure failures return an error.
func (p *Processor) HandleConfirmation(ctx context.Context, c Confirmation) (Result, error) {
	result := Result{Type: TypeSuccessfulPayment}
	done := func(status string, intentID int64) (Result, error) {
		result.Status = status
		result.IntentID = intentID
		p.metrics.Settlement(status)
		return result, nil
	}

	// 1. Recover the intent from the opaque payload.
	decoded, err := payload.Decode(c.Payload)
	if err != nil {
		slog.Log(ctx, slog.LevelInfo, "ignoring confirmation with foreign payload", "error", err)
		return done(StatusIgnoredPayload, 0)
	}
	if c.Reference == "" {
		slog.Log(ctx, slog.LevelWarn, "ignoring confirmation without settlement reference", "intent_id", decoded.IntentID)
		return done(StatusIgnoredPayload, 0)
	}

	// 2. Replays of an already bound reference are acknowledged without effect.
	bound, err := p.store.FindIntentByExternalReference(ctx, c.Reference)
	if err != nil {
		return result, fmt.Errorf("failed to look up settlement reference: %w", err)
	}
	if bound != nil {
		slog.Log(ctx, slog.LevelInfo, "duplicate confirmation ignored", "intent_id", bound.ID, "reference", c.Reference)
		return done(StatusDuplicateIgnored, bound.ID)
	}

	// 3. Validate the confirmation against the intent.
	intent, err := p.store.FindIntentByID(ctx, decoded.IntentID)
	if errors.Is(err, storage.ErrIntentNotFound) {
		slog.Log(ctx, slog.LevelWarn, "confirmation for unknown payment intent", "intent_id", decoded.IntentID)
		return done(StatusPaymentNotFound, 0)
	}
	if err != nil {
		return result, fmt.Errorf("failed to look up payment intent: %w", err)
	}
	if intent.AccountID != decoded.ExternalAccountID {
		slog.Log(ctx, slog.LevelWarn, "confirmation payload names another account", "intent_id", intent.ID, "payload_account_id", decoded.ExternalAccountID)
		return done(StatusPaymentNotFound, 0)
	}
	if (c.Amount != 0 && c.Amount != intent.Amount) || (c.Currency != "" && c.Currency != intent.Currency) {
		slog.Log(ctx, slog.LevelWarn, "confirmation amount does not match intent",
			"intent_id", intent.ID, "expected", intent.Amount, "got", c.Amount, "currency", c.Currency)
		return done(StatusAmountMismatch, intent.ID)
	}

	// 4. Settle.
	_, status, err := p.settle(ctx, intent.ID, c.Reference, "payment")
	switch {
	case errors.Is(err, storage.ErrInvalidTransition):
		p.recordOrphanCharge(ctx, intent, c.Reference)
		return done(StatusInvalidTransition, intent.ID)
	case errors.Is(err, storage.ErrIntentNotFound):
		return done(StatusPaymentNotFound, 0)
	case err != nil:
		return result, err
	}
	return done(status, intent.ID)
}

// recordOrphanCharge keeps the trace of a real charge that arrived for an intent which can no longer
// be settled. The user has paid; an operator has to credit or refund them by hand.
func (p *Processor) recordOrphanCharge(ctx context.Context, intent *models.PaymentIntent, ref string) {
	status := intent.Status
	if current, err := p.store.FindIntentByID(ctx, intent.ID); err == nil {
		status = current.Status
	}
	slog.Log(ctx, slog.LevelError, "provider charge for payment intent that cannot be settled",
		"alert", "orphan_charge", "intent_id", intent.ID, "account_id", intent.AccountID,
		"status", status, "amount", intent.Amount, "reference", ref)
	p.metrics.OrphanCharge()
	p.auditor.Record(ctx, ProviderActor, models.ActionOrphanCharge, formatID(intent.ID)+":"+ref)
}

// settle performs the ledger transition and reports paid or duplicate_ignored.
// Reference conflicts found by the store are duplicates, not failures.
func (p *Processor) settle(ctx context.Context, intentID int64, ref, reason string) (*models.PaymentIntent, string, error) {
	intent, applied, err := p.store.SettleIntent(ctx, intentID, ref)
	if errors.Is(err, storage.ErrDuplicateSettlement) {
		slog.Log(ctx, slog.LevelInfo, "settlement reference already used", "intent_id", intentID, "reference", ref)
		return intent, StatusDuplicateIgnored, nil
	}
	if err != nil {
		return nil, "", err
	}
	if !applied {
		return intent, StatusDuplicateIgnored, nil
	}

	slog.Log(ctx, slog.LevelInfo, "payment intent settled", "intent_id", intent.ID, "account_id", intent.AccountID, "amount", intent.Amount, "reference", ref)
	p.metrics.StarsCredited(intent.Amount)
	p.publishBalance(ctx, intent.AccountID, intent.ID, intent.Amount, reason)
	return intent, StatusPaid, nil
}

// publishBalance pushes the current balance to connected clients. Failures are only logged.
func (p *Processor) publishBalance(ctx context.Context, accountID string, intentID, change int64, reason string) {
	account, err := p.store.GetAccount(ctx, accountID)
	if err != nil {
		slog.Log(ctx, slog.LevelWarn, "failed to read balance for notification", "account_id", accountID, "error", err)
		return
	}
	p.publishAccount(ctx, account, intentID, change, reason)
}

func (p *Processor) publishAccount(ctx context.Context, account *models.Account, intentID, change int64, reason string) {
	message := websockets.NewBalanceUpdate(websockets.BalanceUpdatePayload{
		TelegramID: account.ID,
		PaymentID:  intentID,
		Change:     change,
		NewBalance: account.Balance,
		Reason:     reason,
	})
	if err := p.publisher.Publish(ctx, message); err != nil {
		slog.Log(ctx, slog.LevelWarn, "failed to publish balance update", "account_id", account.ID, "error", err)
	}
}
