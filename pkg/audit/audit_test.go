package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/chris/stars-ledger/pkg/metrics"
	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/storage/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockStore := new(mocks.AuditStore)
		recorder, err := NewRecorder(mockStore, 1, nil)
		require.NoError(t, err)

		mockStore.On("AppendAuditEntry", mock.Anything, mock.MatchedBy(func(e *models.AuditLogEntry) bool {
			return e.ID != "" && e.ActorID == "admin-1" && e.Action == models.ActionRefund && e.TargetID == "7" && !e.CreatedAt.IsZero()
		})).Return(nil)

		// Act
		recorder.Record(context.Background(), "admin-1", models.ActionRefund, "7")

		// Assert
		mockStore.AssertExpectations(t)
	})

	t.Run("Ids Are Unique And Ordered", func(t *testing.T) {
		mockStore := new(mocks.AuditStore)
		recorder, err := NewRecorder(mockStore, 1, nil)
		require.NoError(t, err)

		var ids []string
		mockStore.On("AppendAuditEntry", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			ids = append(ids, args.Get(1).(*models.AuditLogEntry).ID)
		}).Return(nil)

		recorder.Record(context.Background(), "a", models.ActionUserBan, "u1")
		recorder.Record(context.Background(), "a", models.ActionUserUnban, "u1")

		require.Len(t, ids, 2)
		assert.NotEqual(t, ids[0], ids[1])
	})

	t.Run("Write Failure Is Counted Not Returned", func(t *testing.T) {
		mockStore := new(mocks.AuditStore)
		reg := prometheus.NewRegistry()
		recorder, err := NewRecorder(mockStore, 1, metrics.New(reg))
		require.NoError(t, err)

		mockStore.On("AppendAuditEntry", mock.Anything, mock.Anything).Return(errors.New("table missing"))

		assert.NotPanics(t, func() {
			recorder.Record(context.Background(), "admin-1", models.ActionManualVerify, "3")
		})

		assert.Equal(t, float64(1), counterValue(t, reg, "stars_audit_write_failures_total"))
		mockStore.AssertExpectations(t)
	})

	t.Run("Invalid Node", func(t *testing.T) {
		_, err := NewRecorder(new(mocks.AuditStore), 5000, nil)

		assert.Error(t, err)
	})
}

func TestList(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockStore := new(mocks.AuditStore)
		recorder, _ := NewRecorder(mockStore, 1, nil)
		mockStore.On("ListAuditEntries", mock.Anything, int32(20)).Return([]models.AuditLogEntry{{ID: "1"}}, nil)

		entries, err := recorder.List(context.Background(), 20)

		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("Store Fails", func(t *testing.T) {
		mockStore := new(mocks.AuditStore)
		recorder, _ := NewRecorder(mockStore, 1, nil)
		mockStore.On("ListAuditEntries", mock.Anything, int32(20)).Return(nil, errors.New("boom"))

		_, err := recorder.List(context.Background(), 20)

		assert.Error(t, err)
	})
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}
