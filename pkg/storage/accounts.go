package storage

import (
	"context"

	"github.com/chris/stars-ledger/pkg/models"
)

// AccountStore defines the interface for managing account balances.
type AccountStore interface {
	// GetOrCreateAccount returns the account for externalID, creating it with a zero balance if needed.
	GetOrCreateAccount(ctx context.Context, externalID, displayName string) (*models.Account, error)

	// GetAccount retrieves an account by its id.
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)

	// CreditBalance atomically increments an account's balance.
	CreditBalance(ctx context.Context, accountID string, amount int64) (*models.Account, error)

	// DebitBalance atomically decrements an account's balance, never below zero.
	DebitBalance(ctx context.Context, accountID string, amount int64) (*models.Account, error)

	// SetAccountStatus changes an account between active and blocked.
	SetAccountStatus(ctx context.Context, accountID string, status models.AccountStatus) (*models.Account, error)

	// ListAccounts retrieves accounts, optionally filtered by status.
	ListAccounts(ctx context.Context, status *models.AccountStatus) ([]models.Account, error)
}
