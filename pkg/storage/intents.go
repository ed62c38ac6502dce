package storage

import (
	"context"
	"time"

	"github.com/chris/stars-ledger/pkg/models"
)

// IntentReader defines the interface for reading payment intents.
type IntentReader interface {
	// FindIntentByID retrieves a payment intent by its internal id.
	FindIntentByID(ctx context.Context, id int64) (*models.PaymentIntent, error)

	// FindIntentByExternalReference returns the intent bound to ref, or nil if there is none.
	FindIntentByExternalReference(ctx context.Context, ref string) (*models.PaymentIntent, error)

	// ListIntents retrieves the most recent intents, optionally filtered by status.
	ListIntents(ctx context.Context, status *models.IntentStatus, limit int32) ([]models.PaymentIntent, error)

	// GetStalePendingIntents retrieves intents that have been pending for longer than maxAge.
	GetStalePendingIntents(ctx context.Context, maxAge time.Duration) ([]models.PaymentIntent, error)
}

// IntentManager defines the interface for creating intents before settlement.
type IntentManager interface {
	// CreateIntent stores a new pending intent and assigns its id.
	CreateIntent(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error)

	// IncrementIntentRetries records a failed provider attempt for an intent.
	IncrementIntentRetries(ctx context.Context, id int64) error
}
