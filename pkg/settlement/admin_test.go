package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateSuccess(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t, models.SIMULATED, nil)
		_, err := f.store.GetOrCreateAccount(ctx, "42", "alice")
		require.NoError(t, err)
		intent, err := f.store.CreateIntent(ctx, &models.PaymentIntent{AccountID: "42", Amount: 100, Currency: models.CurrencyStars, Mode: models.SIMULATED})
		require.NoError(t, err)

		// Act
		outcome, err := f.processor.SimulateSuccess(ctx, intent.ID)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, outcome.Status)
		assert.Equal(t, models.PAID, outcome.Intent.Status)
		assert.Equal(t, "demo_1", outcome.Intent.Reference())
		assert.Equal(t, int64(100), f.balance(t, "42"))
		assert.Empty(t, f.auditActions(t))

		// A second confirmation of the same intent changes nothing.
		again, err := f.processor.SimulateSuccess(ctx, intent.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusDuplicateIgnored, again.Status)
		assert.Equal(t, int64(100), f.balance(t, "42"))
	})

	t.Run("Disabled In Live Mode", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)
		intent := f.pendingIntent(t, "42", 100)

		_, err := f.processor.SimulateSuccess(ctx, intent.ID)

		assert.ErrorIs(t, err, ErrSimulationDisabled)
		assert.Zero(t, f.balance(t, "42"))
	})

	t.Run("Live Intent Refused", func(t *testing.T) {
		f := newFixture(t, models.SIMULATED, nil)
		intent := f.pendingIntent(t, "42", 100)

		_, err := f.processor.SimulateSuccess(ctx, intent.ID)

		assert.ErrorIs(t, err, ErrSimulationDisabled)
	})

	t.Run("Unknown Intent", func(t *testing.T) {
		f := newFixture(t, models.SIMULATED, nil)

		_, err := f.processor.SimulateSuccess(ctx, 404)

		assert.ErrorIs(t, err, storage.ErrIntentNotFound)
	})
}

func TestManualVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)
		intent := f.pendingIntent(t, "42", 250)

		outcome, err := f.processor.ManualVerify(ctx, intent.ID, "admin-1")

		require.NoError(t, err)
		assert.Equal(t, StatusPaid, outcome.Status)
		assert.Equal(t, "manual_1", outcome.Intent.Reference())
		assert.Equal(t, int64(250), f.balance(t, "42"))
		entries, _ := f.store.ListAuditEntries(ctx, 0)
		require.Len(t, entries, 1)
		assert.Equal(t, models.ActionManualVerify, entries[0].Action)
		assert.Equal(t, "admin-1", entries[0].ActorID)
		assert.Equal(t, "1", entries[0].TargetID)
	})

	t.Run("Already Paid", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)
		intent := f.pendingIntent(t, "42", 250)
		_, err := f.processor.HandleConfirmation(ctx, confirmationFor(t, intent, "charge_1"))
		require.NoError(t, err)

		outcome, err := f.processor.ManualVerify(ctx, intent.ID, "admin-1")

		require.NoError(t, err)
		assert.Equal(t, StatusDuplicateIgnored, outcome.Status)
		assert.Equal(t, int64(250), f.balance(t, "42"))
		assert.Empty(t, f.auditActions(t))
	})

	t.Run("Failed Intent", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)
		intent := f.pendingIntent(t, "42", 250)
		_, err := f.processor.Fail(ctx, intent.ID, "admin-1")
		require.NoError(t, err)

		_, err = f.processor.ManualVerify(ctx, intent.ID, "admin-1")

		assert.ErrorIs(t, err, storage.ErrInvalidTransition)
	})
}

func TestRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t, models.LIVE, nil)
		intent := f.pendingIntent(t, "42", 100)
		_, err := f.processor.HandleConfirmation(ctx, confirmationFor(t, intent, "charge_1"))
		require.NoError(t, err)

		// Act
		refunded, err := f.processor.Refund(ctx, intent.ID, "admin-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, models.REFUNDED, refunded.Status)
		assert.Equal(t, int64(100), f.balance(t, "42"))
		assert.Equal(t, []models.AuditAction{models.ActionRefund}, f.auditActions(t))

		again, err := f.processor.Refund(ctx, intent.ID, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, models.REFUNDED, again.Status)
		assert.Len(t, f.auditActions(t), 1)
	})

	t.Run("Pending Intent", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)
		intent := f.pendingIntent(t, "42", 100)

		_, err := f.processor.Refund(ctx, intent.ID, "admin-1")

		assert.ErrorIs(t, err, storage.ErrInvalidTransition)
		assert.Empty(t, f.auditActions(t))
	})
}

func TestFail(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)
		intent := f.pendingIntent(t, "42", 100)

		failed, err := f.processor.Fail(ctx, intent.ID, "admin-1")

		require.NoError(t, err)
		assert.Equal(t, models.FAILED, failed.Status)
		assert.Equal(t, []models.AuditAction{models.ActionFail}, f.auditActions(t))
	})

	t.Run("Paid Intent", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)
		intent := f.pendingIntent(t, "42", 100)
		_, err := f.processor.HandleConfirmation(ctx, confirmationFor(t, intent, "charge_1"))
		require.NoError(t, err)

		_, err = f.processor.Fail(ctx, intent.ID, "admin-1")

		assert.ErrorIs(t, err, storage.ErrInvalidTransition)
		assert.Equal(t, int64(100), f.balance(t, "42"))
	})
}

func TestAdjustBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("Credit", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)
		f.pendingIntent(t, "42", 100)

		account, err := f.processor.AdjustBalance(ctx, "42", 30, "admin-1")

		require.NoError(t, err)
		assert.Equal(t, int64(30), account.Balance)
		assert.Equal(t, []models.AuditAction{models.ActionBalanceCredit}, f.auditActions(t))
	})

	t.Run("Debit Clamps At Zero", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)
		f.pendingIntent(t, "42", 100)
		_, err := f.processor.AdjustBalance(ctx, "42", 30, "admin-1")
		require.NoError(t, err)

		account, err := f.processor.AdjustBalance(ctx, "42", -50, "admin-1")

		require.NoError(t, err)
		assert.Zero(t, account.Balance)
		assert.Equal(t, models.ActionBalanceDebit, f.auditActions(t)[0])
	})

	t.Run("Zero Delta", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)

		_, err := f.processor.AdjustBalance(ctx, "42", 0, "admin-1")

		assert.ErrorIs(t, err, ErrValidation)
		assert.Empty(t, f.auditActions(t))
	})

	t.Run("Unknown Account", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)

		_, err := f.processor.AdjustBalance(ctx, "nobody", 10, "admin-1")

		assert.ErrorIs(t, err, storage.ErrAccountNotFound)
		assert.Empty(t, f.auditActions(t))
	})
}

func TestSetAccountStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Ban And Unban", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)
		f.pendingIntent(t, "42", 100)

		banned, err := f.processor.SetAccountStatus(ctx, "42", models.BLOCKED, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, models.BLOCKED, banned.Status)

		active, err := f.processor.SetAccountStatus(ctx, "42", models.ACTIVE, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, models.ACTIVE, active.Status)

		assert.Equal(t, []models.AuditAction{models.ActionUserUnban, models.ActionUserBan}, f.auditActions(t))
	})

	t.Run("Unknown Status", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)

		_, err := f.processor.SetAccountStatus(ctx, "42", models.AccountStatus("deleted"), "admin-1")

		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestFlagStale(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t, models.LIVE, nil)
		stale := f.pendingIntent(t, "42", 100)
		paid := f.pendingIntent(t, "42", 50)
		_, err := f.processor.HandleConfirmation(ctx, confirmationFor(t, paid, "charge_1"))
		require.NoError(t, err)

		// Act
		flagged, err := f.processor.FlagStale(ctx, -time.Minute)

		// Assert
		require.NoError(t, err)
		require.Len(t, flagged, 1)
		assert.Equal(t, stale.ID, flagged[0].ID)
		unchanged, _ := f.store.FindIntentByID(ctx, stale.ID)
		assert.Equal(t, models.PENDING, unchanged.Status)
		assert.Empty(t, f.auditActions(t))
		f.assertMetric(t, `
# HELP stars_stale_payment_intents Pending intents older than the stale threshold at the last reconciliation run.
# TYPE stars_stale_payment_intents gauge
stars_stale_payment_intents 1
`, "stars_stale_payment_intents")
	})

	t.Run("Late Charge Still Settles", func(t *testing.T) {
		// Arrange
		f := newFixture(t, models.LIVE, nil)
		intent := f.pendingIntent(t, "42", 100)
		_, err := f.processor.FlagStale(ctx, -time.Minute)
		require.NoError(t, err)

		// Act
		result, err := f.processor.HandleConfirmation(ctx, confirmationFor(t, intent, "tg_charge_1"))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, result.Status)
		assert.Equal(t, int64(100), f.balance(t, "42"))
		settled, _ := f.store.FindIntentByID(ctx, intent.ID)
		assert.Equal(t, "tg_charge_1", settled.Reference())
	})

	t.Run("Nothing Stale", func(t *testing.T) {
		f := newFixture(t, models.LIVE, nil)
		f.pendingIntent(t, "42", 100)

		flagged, err := f.processor.FlagStale(ctx, time.Hour)

		require.NoError(t, err)
		assert.Empty(t, flagged)
	})
}
