package storage

import (
	"context"

	"github.com/chris/stars-ledger/pkg/models"
)

// SettlementStore defines the privileged interface for moving intents between terminal states.
// SettleIntent writes to the intents, references and accounts tables in one atomic unit.
// It should only be exposed to the settlement processor.
type SettlementStore interface {
	// SettleIntent marks a pending intent paid, binds ref to it and credits the owning account.
	// It returns the current intent and whether the settlement was actually performed.
	// An intent that is already paid is returned unchanged with applied set to false.
	SettleIntent(ctx context.Context, id int64, ref string) (intent *models.PaymentIntent, applied bool, err error)

	// FailIntent moves a pending intent to failed.
	FailIntent(ctx context.Context, id int64) (*models.PaymentIntent, error)

	// RefundIntent moves a paid intent to refunded without touching the balance.
	// An intent that is already refunded is returned unchanged with applied set to false.
	RefundIntent(ctx context.Context, id int64) (intent *models.PaymentIntent, applied bool, err error)
}
