package storage

import (
	"context"

	"github.com/chris/stars-ledger/pkg/models"
)

// AuditStore defines the append-only interface for the audit log.
type AuditStore interface {
	// AppendAuditEntry stores a new audit entry.
	AppendAuditEntry(ctx context.Context, entry *models.AuditLogEntry) error

	// ListAuditEntries retrieves the most recent audit entries.
	ListAuditEntries(ctx context.Context, limit int32) ([]models.AuditLogEntry, error)
}
