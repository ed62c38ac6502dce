package mapping

import (
	"github.com/chris/stars-ledger/pkg/api"
	"github.com/chris/stars-ledger/pkg/catalog"
	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/settlement"
)

// ToApiAccount converts a domain Account model to an API Account model.
func ToApiAccount(account *models.Account) *api.Account {
	return &api.Account{
		TelegramId:   account.ID,
		DisplayName:  account.DisplayName,
		BalanceStars: account.Balance,
		Status:       string(account.Status),
		IsPremium:    account.IsPremium,
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    account.UpdatedAt,
	}
}

// ToApiBalance converts a domain Account model to the public balance view.
func ToApiBalance(account *models.Account) *api.Balance {
	return &api.Balance{
		TelegramId:   account.ID,
		BalanceStars: account.Balance,
	}
}

// ToApiPaymentIntent converts a domain PaymentIntent model to an API PaymentIntent model.
func ToApiPaymentIntent(intent *models.PaymentIntent) *api.PaymentIntent {
	return &api.PaymentIntent{
		Id:                intent.ID,
		TelegramId:        intent.AccountID,
		StarsAmount:       intent.Amount,
		Currency:          intent.Currency,
		Status:            string(intent.Status),
		ExternalReference: intent.ExternalReference,
		Mode:              string(intent.Mode),
		Retries:           intent.Retries,
		CreatedAt:         intent.CreatedAt,
		UpdatedAt:         intent.UpdatedAt,
	}
}

// ToApiAuditLogEntry converts a domain AuditLogEntry model to an API AuditLogEntry model.
func ToApiAuditLogEntry(entry *models.AuditLogEntry) *api.AuditLogEntry {
	return &api.AuditLogEntry{
		Id:        entry.ID,
		ActorId:   entry.ActorID,
		Action:    string(entry.Action),
		TargetId:  entry.TargetID,
		CreatedAt: entry.CreatedAt,
	}
}

// ToApiPackages converts catalog packages to their API form.
func ToApiPackages(packages []catalog.Package) []api.Package {
	apiPackages := make([]api.Package, len(packages))
	for i, p := range packages {
		apiPackages[i] = api.Package{Key: p.Key, StarsAmount: p.Amount}
	}
	return apiPackages
}

// ToApiWebhookResult converts a settlement Result to the webhook response body.
func ToApiWebhookResult(result settlement.Result) *api.WebhookResult {
	apiResult := &api.WebhookResult{
		Type:   result.Type,
		Status: result.Status,
	}
	if result.IntentID != 0 {
		id := result.IntentID
		apiResult.PaymentId = &id
	}
	return apiResult
}

// ToApiStats summarises accounts and intents for the admin dashboard.
func ToApiStats(accounts []models.Account, intents []models.PaymentIntent) *api.Stats {
	stats := &api.Stats{
		Accounts: len(accounts),
		Payments: map[string]int{},
	}
	for _, account := range accounts {
		if account.Status == models.BLOCKED {
			stats.BlockedAccounts++
		}
	}
	for _, intent := range intents {
		stats.Payments[string(intent.Status)]++
		if intent.Status == models.PAID || intent.Status == models.REFUNDED {
			stats.StarsPaid += intent.Amount
		}
	}
	return stats
}
