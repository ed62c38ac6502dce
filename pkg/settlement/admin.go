package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/chris/stars-ledger/pkg/models"
)

// ProviderActor is the audit actor for events raised by the payment provider.
const ProviderActor = "telegram"

// Outcome is the result of a privileged settlement call.
type Outcome struct {
	Intent *models.PaymentIntent `json:"-"`
	Status string                `json:"status"`
}

// SimulateSuccess settles a simulated intent with a synthetic reference.
// It is refused while the processor runs in live mode.
func (p *Processor) SimulateSuccess(ctx context.Context, intentID int64) (*Outcome, error) {
	if p.mode == models.LIVE {
		return nil, ErrSimulationDisabled
	}

	intent, err := p.store.FindIntentByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Mode == models.LIVE {
		return nil, ErrSimulationDisabled
	}

	settled, status, err := p.settle(ctx, intentID, "demo_"+strconv.FormatInt(intentID, 10), "payment")
	if err != nil {
		return nil, err
	}
	p.metrics.Settlement(status)
	return &Outcome{Intent: settled, Status: status}, nil
}

// ManualVerify settles an intent on an operator's word.
func (p *Processor) ManualVerify(ctx context.Context, intentID int64, actorID string) (*Outcome, error) {
	settled, status, err := p.settle(ctx, intentID, "manual_"+strconv.FormatInt(intentID, 10), "manual_verify")
	if err != nil {
		return nil, err
	}
	p.metrics.Settlement(status)
	if status == StatusPaid {
		p.auditor.Record(ctx, actorID, models.ActionManualVerify, formatID(intentID))
	}
	return &Outcome{Intent: settled, Status: status}, nil
}

// Refund marks a paid intent refunded. The credited balance is left untouched.
func (p *Processor) Refund(ctx context.Context, intentID int64, actorID string) (*models.PaymentIntent, error) {
	intent, applied, err := p.store.RefundIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if applied {
		slog.Log(ctx, slog.LevelInfo, "payment intent refunded", "intent_id", intentID, "actor_id", actorID)
		p.auditor.Record(ctx, actorID, models.ActionRefund, formatID(intentID))
	}
	return intent, nil
}

// Fail marks a pending intent failed.
func (p *Processor) Fail(ctx context.Context, intentID int64, actorID string) (*models.PaymentIntent, error) {
	intent, err := p.store.FailIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	slog.Log(ctx, slog.LevelInfo, "payment intent failed", "intent_id", intentID, "actor_id", actorID)
	p.auditor.Record(ctx, actorID, models.ActionFail, formatID(intentID))
	return intent, nil
}

// AdjustBalance credits a positive delta or debits a negative one, clamping at zero.
func (p *Processor) AdjustBalance(ctx context.Context, accountID string, delta int64, actorID string) (*models.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", ErrValidation)
	}
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta must not be zero", ErrValidation)
	}

	var (
		account *models.Account
		action  models.AuditAction
		err     error
	)
	if delta > 0 {
		account, err = p.store.CreditBalance(ctx, accountID, delta)
		action = models.ActionBalanceCredit
	} else {
		account, err = p.store.DebitBalance(ctx, accountID, -delta)
		action = models.ActionBalanceDebit
	}
	if err != nil {
		return nil, err
	}

	slog.Log(ctx, slog.LevelInfo, "balance adjusted", "account_id", accountID, "delta", delta, "balance", account.Balance, "actor_id", actorID)
	p.auditor.Record(ctx, actorID, action, accountID)
	p.publishAccount(ctx, account, 0, delta, string(action))
	return account, nil
}

// SetAccountStatus blocks or unblocks an account.
func (p *Processor) SetAccountStatus(ctx context.Context, accountID string, status models.AccountStatus, actorID string) (*models.Account, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown account status %q", ErrValidation, status)
	}

	account, err := p.store.SetAccountStatus(ctx, accountID, status)
	if err != nil {
		return nil, err
	}

	action := models.ActionUserUnban
	if status == models.BLOCKED {
		action = models.ActionUserBan
	}
	slog.Log(ctx, slog.LevelInfo, "account status changed", "account_id", accountID, "status", status, "actor_id", actorID)
	p.auditor.Record(ctx, actorID, action, accountID)
	return account, nil
}

// FlagStale reports every intent that has been pending for longer than maxAge.
// Stale intents stay pending: Telegram may still deliver their charge, and only an operator
// can decide to verify or fail them.
func (p *Processor) FlagStale(ctx context.Context, maxAge time.Duration) ([]models.PaymentIntent, error) {
	intents, err := p.store.GetStalePendingIntents(ctx, maxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale payment intents: %w", err)
	}

	for _, intent := range intents {
		slog.Log(ctx, slog.LevelWarn, "payment intent pending past threshold",
			"alert", "stale_payment_intent", "intent_id", intent.ID, "account_id", intent.AccountID, "created_at", intent.CreatedAt)
	}
	p.metrics.StalePending(len(intents))
	return intents, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
