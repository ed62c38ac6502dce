package mapping

import (
	"testing"

	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/settlement"
	"github.com/stretchr/testify/assert"
)

func TestToApiWebhookResult(t *testing.T) {
	t.Run("With Intent", func(t *testing.T) {
		result := ToApiWebhookResult(settlement.Result{Type: settlement.TypeSuccessfulPayment, Status: settlement.StatusPaid, IntentID: 4})

		assert.Equal(t, "paid", result.Status)
		if assert.NotNil(t, result.PaymentId) {
			assert.Equal(t, int64(4), *result.PaymentId)
		}
	})

	t.Run("Without Intent", func(t *testing.T) {
		result := ToApiWebhookResult(settlement.Result{Type: settlement.TypeUnknown, Status: settlement.StatusIgnored})

		assert.Nil(t, result.PaymentId)
	})
}

func TestToApiStats(t *testing.T) {
	accounts := []models.Account{
		{ID: "1", Status: models.ACTIVE},
		{ID: "2", Status: models.BLOCKED},
	}
	intents := []models.PaymentIntent{
		{ID: 1, Amount: 100, Status: models.PAID},
		{ID: 2, Amount: 50, Status: models.REFUNDED},
		{ID: 3, Amount: 250, Status: models.PENDING},
		{ID: 4, Amount: 500, Status: models.FAILED},
	}

	stats := ToApiStats(accounts, intents)

	assert.Equal(t, 2, stats.Accounts)
	assert.Equal(t, 1, stats.BlockedAccounts)
	assert.Equal(t, map[string]int{"paid": 1, "refunded": 1, "pending": 1, "failed": 1}, stats.Payments)
	assert.Equal(t, int64(150), stats.StarsPaid)
}
