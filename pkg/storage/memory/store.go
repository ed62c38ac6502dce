// Package memory provides an in-process implementation of the storage interfaces.
// It is used by the local development server and by tests that need real concurrency semantics.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/storage"
)

// Store keeps every table in maps guarded by a single mutex.
// Multi-record writes are staged on copies and only committed once every step has succeeded.
type Store struct {
	mu          sync.Mutex
	accounts    map[string]models.Account
	intents     map[int64]models.PaymentIntent
	references  map[string]int64
	audit       []models.AuditLogEntry
	connections map[string]struct{}
	lastID      int64

	now func() time.Time

	// SettleFault, when set, runs after the intent has been staged as paid and before the
	// account credit is staged. Returning an error aborts the settlement.
	SettleFault func(intent models.PaymentIntent) error
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts:    make(map[string]models.Account),
		intents:     make(map[int64]models.PaymentIntent),
		references:  make(map[string]int64),
		connections: make(map[string]struct{}),
	}
}

// Make sure we conform to the interfaces
var (
	_ storage.Storage          = (*Store)(nil)
	_ storage.WebSocketManager = (*Store)(nil)
)

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// GetOrCreateAccount returns the account for externalID, creating it if it does not exist.
func (s *Store) GetOrCreateAccount(_ context.Context, externalID, displayName string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account, ok := s.accounts[externalID]; ok {
		return &account, nil
	}

	now := s.clock()
	account := models.Account{
		ID:          externalID,
		DisplayName: displayName,
		Status:      models.ACTIVE,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.accounts[externalID] = account
	return &account, nil
}

// GetAccount retrieves an account by its id.
func (s *Store) GetAccount(_ context.Context, accountID string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrAccountNotFound)
	}
	return &account, nil
}

// CreditBalance adds amount to the account balance.
func (s *Store) CreditBalance(_ context.Context, accountID string, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, storage.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrAccountNotFound)
	}
	account.Balance += amount
	account.UpdatedAt = s.clock()
	s.accounts[accountID] = account
	return &account, nil
}

// DebitBalance subtracts amount from the account balance, clamping at zero.
func (s *Store) DebitBalance(_ context.Context, accountID string, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, storage.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrAccountNotFound)
	}
	account.Balance = max(account.Balance-amount, 0)
	account.UpdatedAt = s.clock()
	s.accounts[accountID] = account
	return &account, nil
}

// SetAccountStatus updates the status of an existing account.
func (s *Store) SetAccountStatus(_ context.Context, accountID string, status models.AccountStatus) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrAccountNotFound)
	}
	account.Status = status
	account.UpdatedAt = s.clock()
	s.accounts[accountID] = account
	return &account, nil
}

// ListAccounts returns accounts ordered by creation time, optionally filtered by status.
func (s *Store) ListAccounts(_ context.Context, status *models.AccountStatus) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make([]models.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		if status != nil && account.Status != *status {
			continue
		}
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

// CreateIntent assigns the next id and stores a new pending intent.
func (s *Store) CreateIntent(_ context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	now := s.clock()
	created := *intent
	created.ID = s.lastID
	created.Status = models.PENDING
	created.ExternalReference = nil
	created.Retries = 0
	created.CreatedAt = now
	created.UpdatedAt = now
	s.intents[created.ID] = created

	return &created, nil
}

// FindIntentByID retrieves a payment intent by its id.
func (s *Store) FindIntentByID(_ context.Context, id int64) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.intent(id)
}

func (s *Store) intent(id int64) (*models.PaymentIntent, error) {
	intent, ok := s.intents[id]
	if !ok {
		return nil, fmt.Errorf("payment intent %d: %w", id, storage.ErrIntentNotFound)
	}
	return &intent, nil
}

// FindIntentByExternalReference returns the intent bound to ref, or nil if there is none.
func (s *Store) FindIntentByExternalReference(_ context.Context, ref string) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.references[ref]
	if !ok {
		return nil, nil
	}
	return s.intent(id)
}

// ListIntents returns the newest intents first, optionally filtered by status.
// A non-positive limit returns every match.
func (s *Store) ListIntents(_ context.Context, status *models.IntentStatus, limit int32) ([]models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intents := make([]models.PaymentIntent, 0, len(s.intents))
	for _, intent := range s.intents {
		if status != nil && intent.Status != *status {
			continue
		}
		intents = append(intents, intent)
	}
	sort.Slice(intents, func(i, j int) bool {
		return intents[i].ID > intents[j].ID
	})
	if limit > 0 && len(intents) > int(limit) {
		intents = intents[:limit]
	}
	return intents, nil
}

// GetStalePendingIntents returns pending intents created before now minus maxAge.
func (s *Store) GetStalePendingIntents(_ context.Context, maxAge time.Duration) ([]models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock().Add(-maxAge)
	var stale []models.PaymentIntent
	for _, intent := range s.intents {
		if intent.Status == models.PENDING && intent.CreatedAt.Before(cutoff) {
			stale = append(stale, intent)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		return stale[i].ID < stale[j].ID
	})
	return stale, nil
}

// IncrementIntentRetries records one more failed provider attempt on an intent.
func (s *Store) IncrementIntentRetries(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return fmt.Errorf("payment intent %d: %w", id, storage.ErrIntentNotFound)
	}
	intent.Retries++
	s.intents[id] = intent
	return nil
}

// SettleIntent marks a pending intent paid, binds ref and credits the owning account.
// All three writes are staged and committed together, or not at all.
func (s *Store) SettleIntent(_ context.Context, id int64, ref string) (*models.PaymentIntent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, false, fmt.Errorf("payment intent %d: %w", id, storage.ErrIntentNotFound)
	}

	switch intent.Status {
	case models.PAID:
		return &intent, false, nil
	case models.PENDING:
	default:
		return &intent, false, fmt.Errorf("cannot settle %s intent %d: %w", intent.Status, id, storage.ErrInvalidTransition)
	}

	if owner, bound := s.references[ref]; bound && owner != id {
		return nil, false, fmt.Errorf("reference %s: %w", ref, storage.ErrDuplicateSettlement)
	}

	now := s.clock()

	// Stage the intent.
	stagedIntent := intent
	stagedIntent.Status = models.PAID
	stagedIntent.ExternalReference = &ref
	stagedIntent.UpdatedAt = now

	if s.SettleFault != nil {
		if err := s.SettleFault(stagedIntent); err != nil {
			return nil, false, fmt.Errorf("failed to settle payment intent %d: %w", id, err)
		}
	}

	// Stage the credit.
	account, ok := s.accounts[intent.AccountID]
	if !ok {
		return nil, false, fmt.Errorf("settling intent %d: %w", id, storage.ErrAccountNotFound)
	}
	account.Balance += intent.Amount
	account.UpdatedAt = now

	// Commit.
	s.intents[id] = stagedIntent
	s.references[ref] = id
	s.accounts[account.ID] = account

	return &stagedIntent, true, nil
}

// FailIntent moves a pending intent to failed.
func (s *Store) FailIntent(_ context.Context, id int64) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, fmt.Errorf("payment intent %d: %w", id, storage.ErrIntentNotFound)
	}
	if intent.Status != models.PENDING {
		return nil, fmt.Errorf("cannot fail %s intent %d: %w", intent.Status, id, storage.ErrInvalidTransition)
	}
	intent.Status = models.FAILED
	intent.UpdatedAt = s.clock()
	s.intents[id] = intent
	return &intent, nil
}

// RefundIntent moves a paid intent to refunded without touching the balance.
func (s *Store) RefundIntent(_ context.Context, id int64) (*models.PaymentIntent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, false, fmt.Errorf("payment intent %d: %w", id, storage.ErrIntentNotFound)
	}
	switch intent.Status {
	case models.REFUNDED:
		return &intent, false, nil
	case models.PAID:
	default:
		return &intent, false, fmt.Errorf("cannot refund %s intent %d: %w", intent.Status, id, storage.ErrInvalidTransition)
	}
	intent.Status = models.REFUNDED
	intent.UpdatedAt = s.clock()
	s.intents[id] = intent
	return &intent, true, nil
}

// AppendAuditEntry stores a new audit entry.
func (s *Store) AppendAuditEntry(_ context.Context, entry *models.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.audit {
		if existing.ID == entry.ID {
			return fmt.Errorf("audit entry %s already exists", entry.ID)
		}
	}
	s.audit = append(s.audit, *entry)
	return nil
}

// ListAuditEntries returns the most recent audit entries first.
func (s *Store) ListAuditEntries(_ context.Context, limit int32) ([]models.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]models.AuditLogEntry, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		entries = append(entries, s.audit[i])
		if limit > 0 && len(entries) == int(limit) {
			break
		}
	}
	return entries, nil
}

// AddConnection registers a local WebSocket connection.
func (s *Store) AddConnection(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections[connectionID] = struct{}{}
	return nil
}

// RemoveConnection forgets a local WebSocket connection.
func (s *Store) RemoveConnection(_ context.Context, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.connections, connectionID)
	return nil
}

// GetAllConnections returns every registered connection id.
func (s *Store) GetAllConnections(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.connections))
	for id := range s.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
