package models

import (
	"time"
)

// AccountStatus defines whether an account may transact.
type AccountStatus string

const (
	ACTIVE  AccountStatus = "active"
	BLOCKED AccountStatus = "blocked"
)

// Valid reports whether s is a known account status.
func (s AccountStatus) Valid() bool {
	return s == ACTIVE || s == BLOCKED
}

// IntentStatus defines the possible states of a payment intent.
type IntentStatus string

const (
	PENDING  IntentStatus = "pending"
	PAID     IntentStatus = "paid"
	FAILED   IntentStatus = "failed"
	REFUNDED IntentStatus = "refunded"
)

// Valid reports whether s is a known intent status.
func (s IntentStatus) Valid() bool {
	switch s {
	case PENDING, PAID, FAILED, REFUNDED:
		return true
	}
	return false
}

// IssuanceMode tells whether an invoice was issued through the real provider or simulated.
type IssuanceMode string

const (
	LIVE      IssuanceMode = "live"
	SIMULATED IssuanceMode = "simulated"
)

// CurrencyStars is the Telegram Stars currency code.
const CurrencyStars = "XTR"

// transitions lists every allowed edge of the intent state machine.
var transitions = map[IntentStatus][]IntentStatus{
	PENDING: {PAID, FAILED},
	PAID:    {REFUNDED},
}

// CanTransition reports whether an intent may move from one status to another.
func CanTransition(from, to IntentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Account represents a user's Stars balance.
// The ID is the stable external identity (the Telegram user id).
type Account struct {
	ID          string        `dynamodbav:"account_id"`
	DisplayName string        `dynamodbav:"display_name"`
	Balance     int64         `dynamodbav:"balance"`
	Status      AccountStatus `dynamodbav:"status"`
	IsPremium   bool          `dynamodbav:"is_premium"`
	CreatedAt   time.Time     `dynamodbav:"created_at"`
	UpdatedAt   time.Time     `dynamodbav:"updated_at"`
}

// PaymentIntent is a ledger record for a single purchase attempt.
type PaymentIntent struct {
	ID                int64        `dynamodbav:"id"`
	AccountID         string       `dynamodbav:"account_id"`
	Amount            int64        `dynamodbav:"amount"`
	Currency          string       `dynamodbav:"currency"`
	Status            IntentStatus `dynamodbav:"status"`
	ExternalReference *string      `dynamodbav:"external_reference,omitempty"`
	Mode              IssuanceMode `dynamodbav:"mode"`
	Retries           int          `dynamodbav:"retries"`
	CreatedAt         time.Time    `dynamodbav:"created_at"`
	UpdatedAt         time.Time    `dynamodbav:"updated_at"`
}

// Reference returns the external settlement reference or an empty string.
func (p *PaymentIntent) Reference() string {
	if p.ExternalReference == nil {
		return ""
	}
	return *p.ExternalReference
}

// AuditAction tags a privileged mutation.
type AuditAction string

const (
	ActionManualVerify  AuditAction = "manual_verify_payment"
	ActionRefund        AuditAction = "payment_refund"
	ActionFail          AuditAction = "payment_fail"
	ActionOrphanCharge  AuditAction = "orphan_charge"
	ActionBalanceCredit AuditAction = "balance_credit"
	ActionBalanceDebit  AuditAction = "balance_debit"
	ActionUserBan       AuditAction = "user_ban"
	ActionUserUnban     AuditAction = "user_unban"
)

// AuditLogEntry records one privileged mutation.
type AuditLogEntry struct {
	ID        string      `dynamodbav:"id"`
	ActorID   string      `dynamodbav:"actor_id"`
	Action    AuditAction `dynamodbav:"action"`
	TargetID  string      `dynamodbav:"target_id"`
	CreatedAt time.Time   `dynamodbav:"created_at"`
	GSI1PK    string      `dynamodbav:"gsi1pk"`
}
