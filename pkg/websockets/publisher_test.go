package websockets

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/chris/stars-ledger/pkg/storage/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	posted map[string][]byte
	errs   map[string]error
}

func (f *fakeGateway) PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	if err := f.errs[*params.ConnectionId]; err != nil {
		return nil, err
	}
	f.posted[*params.ConnectionId] = params.Data
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func TestPublish(t *testing.T) {
	message := NewBalanceUpdate(BalanceUpdatePayload{TelegramID: "42", PaymentID: 3, Change: 100, NewBalance: 150, Reason: "payment"})

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockStore := new(mocks.WebSocketManager)
		gateway := &fakeGateway{posted: map[string][]byte{}}
		publisher := NewPublisherWithClient(mockStore, gateway)

		mockStore.On("GetAllConnections", mock.Anything).Return([]string{"c1", "c2"}, nil)

		// Act
		err := publisher.Publish(context.Background(), message)

		// Assert
		require.NoError(t, err)
		require.Len(t, gateway.posted, 2)

		var decoded struct {
			Type    string               `json:"type"`
			Payload BalanceUpdatePayload `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(gateway.posted["c1"], &decoded))
		assert.Equal(t, "balanceUpdate", decoded.Type)
		assert.Equal(t, int64(150), decoded.Payload.NewBalance)
		mockStore.AssertExpectations(t)
	})

	t.Run("Gone Connections Are Removed", func(t *testing.T) {
		mockStore := new(mocks.WebSocketManager)
		gateway := &fakeGateway{
			posted: map[string][]byte{},
			errs: map[string]error{
				"stale":  &apigwtypes.GoneException{},
				"broken": errors.New("throttled"),
			},
		}
		publisher := NewPublisherWithClient(mockStore, gateway)

		mockStore.On("GetAllConnections", mock.Anything).Return([]string{"stale", "broken", "live"}, nil)
		mockStore.On("RemoveConnection", mock.Anything, "stale").Return(nil).Once()

		err := publisher.Publish(context.Background(), message)

		require.NoError(t, err)
		assert.Contains(t, gateway.posted, "live")
		mockStore.AssertExpectations(t)
		mockStore.AssertNotCalled(t, "RemoveConnection", mock.Anything, "broken")
	})

	t.Run("GetAllConnections Fails", func(t *testing.T) {
		mockStore := new(mocks.WebSocketManager)
		publisher := NewPublisherWithClient(mockStore, &fakeGateway{posted: map[string][]byte{}})

		mockStore.On("GetAllConnections", mock.Anything).Return(nil, errors.New("boom"))

		err := publisher.Publish(context.Background(), message)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get all connections")
	})
}
