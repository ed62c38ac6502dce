// Package audit records privileged mutations for later review.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chris/stars-ledger/pkg/metrics"
	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/storage"
)

// Recorder appends audit entries. Writing is best effort: a failed append is logged and
// counted but never reported to the caller, whose mutation has already been committed.
type Recorder struct {
	store   storage.AuditStore
	node    *snowflake.Node
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRecorder creates a Recorder. nodeID distinguishes id generators running in parallel (0-1023).
func NewRecorder(store storage.AuditStore, nodeID int64, m *metrics.Metrics) (*Recorder, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit id generator: %w", err)
	}
	return &Recorder{
		store:   store,
		node:    node,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Record appends one entry for a privileged mutation.
func (r *Recorder) Record(ctx context.Context, actorID string, action models.AuditAction, targetID string) {
	entry := &models.AuditLogEntry{
		ID:        r.node.Generate().String(),
		ActorID:   actorID,
		Action:    action,
		TargetID:  targetID,
		CreatedAt: r.now(),
	}

	if err := r.store.AppendAuditEntry(ctx, entry); err != nil {
		r.metrics.AuditWriteFailed()
		slog.Log(ctx, slog.LevelError, "failed to write audit entry",
			"alert", "audit_write_failed",
			"actor_id", actorID,
			"action", action,
			"target_id", targetID,
			"error", err,
		)
		return
	}

	slog.Log(ctx, slog.LevelInfo, "audit entry recorded", "id", entry.ID, "actor_id", actorID, "action", action, "target_id", targetID)
}

// List returns the most recent entries first.
func (r *Recorder) List(ctx context.Context, limit int32) ([]models.AuditLogEntry, error) {
	entries, err := r.store.ListAuditEntries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
