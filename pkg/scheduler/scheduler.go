package scheduler

import (
	"context"

	"github.com/chris/stars-ledger/pkg/provider/telegram"
)

// Scheduler defines the interface for a component that hands a webhook update to the settlement worker.
type Scheduler interface {
	// EnqueueUpdate enqueues an update for asynchronous processing.
	EnqueueUpdate(ctx context.Context, update *telegram.Update) error
}
