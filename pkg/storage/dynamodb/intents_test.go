package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/storage"
	"github.com/chris/stars-ledger/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newIntentStore(client DynamoDBAPI) *Store {
	return &Store{
		Client:              client,
		AccountsTableName:   "accounts",
		IntentsTableName:    "intents",
		ReferencesTableName: "references",
		CountersTableName:   "counters",
	}
}

func TestCreateIntent(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)

		mockClient.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
			return *in.TableName == "counters"
		})).Once().Return(&dynamodb.UpdateItemOutput{
			Attributes: map[string]types.AttributeValue{"seq": &types.AttributeValueMemberN{Value: "7"}},
		}, nil)
		mockClient.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
			return *in.TableName == "intents" && *in.ConditionExpression == "attribute_not_exists(id)"
		})).Once().Return(&dynamodb.PutItemOutput{}, nil)

		intent, err := store.CreateIntent(context.Background(), &models.PaymentIntent{
			AccountID: "u1",
			Amount:    100,
			Currency:  models.CurrencyStars,
			Mode:      models.SIMULATED,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(7), intent.ID)
		assert.Equal(t, models.PENDING, intent.Status)
		assert.Nil(t, intent.ExternalReference)
		mockClient.AssertExpectations(t)
	})

	t.Run("Counter Fails", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)

		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		_, err := store.CreateIntent(context.Background(), &models.PaymentIntent{AccountID: "u1", Amount: 100})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to allocate payment intent id")
		mockClient.AssertNotCalled(t, "PutItem", mock.Anything, mock.Anything)
	})
}

func TestFindIntentByID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)

		expected := &models.PaymentIntent{ID: 3, AccountID: "u1", Amount: 50, Status: models.PENDING}
		itemAV, _ := attributevalue.MarshalMap(expected)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: itemAV}, nil)

		intent, err := store.FindIntentByID(context.Background(), 3)

		require.NoError(t, err)
		assert.Equal(t, expected.ID, intent.ID)
		assert.Equal(t, expected.Amount, intent.Amount)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)

		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

		_, err := store.FindIntentByID(context.Background(), 404)

		assert.ErrorIs(t, err, storage.ErrIntentNotFound)
	})
}

func TestFindIntentByExternalReference(t *testing.T) {
	t.Run("Unknown Reference", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)

		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

		intent, err := store.FindIntentByExternalReference(context.Background(), "charge_x")

		assert.NoError(t, err)
		assert.Nil(t, intent)
	})

	t.Run("Bound Reference", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)

		bindingAV, _ := attributevalue.MarshalMap(settlementReference{Reference: "charge_x", IntentID: 9})
		intentAV, _ := attributevalue.MarshalMap(&models.PaymentIntent{ID: 9, Status: models.PAID, ExternalReference: aws.String("charge_x")})
		mockClient.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return *in.TableName == "references"
		})).Once().Return(&dynamodb.GetItemOutput{Item: bindingAV}, nil)
		mockClient.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
			return *in.TableName == "intents"
		})).Once().Return(&dynamodb.GetItemOutput{Item: intentAV}, nil)

		intent, err := store.FindIntentByExternalReference(context.Background(), "charge_x")

		require.NoError(t, err)
		assert.Equal(t, int64(9), intent.ID)
		assert.Equal(t, "charge_x", intent.Reference())
		mockClient.AssertExpectations(t)
	})
}

func TestListIntents(t *testing.T) {
	items := make([]map[string]types.AttributeValue, 2)
	items[0], _ = attributevalue.MarshalMap(&models.PaymentIntent{ID: 1, Status: models.PAID})
	items[1], _ = attributevalue.MarshalMap(&models.PaymentIntent{ID: 2, Status: models.PAID})

	t.Run("By Status Uses Index", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)

		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return *in.IndexName == statusCreatedAtGSI && *in.Limit == 20
		})).Return(&dynamodb.QueryOutput{Items: items}, nil)

		paid := models.PAID
		intents, err := store.ListIntents(context.Background(), &paid, 20)

		require.NoError(t, err)
		require.Len(t, intents, 2)
		assert.Equal(t, int64(2), intents[0].ID)
		mockClient.AssertExpectations(t)
	})

	t.Run("Without Status Scans", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)

		mockClient.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
			return in.Limit == nil
		})).Return(&dynamodb.ScanOutput{Items: items}, nil)

		intents, err := store.ListIntents(context.Background(), nil, 20)

		require.NoError(t, err)
		assert.Len(t, intents, 2)
		mockClient.AssertExpectations(t)
	})

	t.Run("Without Status Reads Every Page Before Truncating", func(t *testing.T) {
		// Arrange
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)

		older, _ := attributevalue.MarshalMap(&models.PaymentIntent{ID: 3, Status: models.PENDING})
		newest, _ := attributevalue.MarshalMap(&models.PaymentIntent{ID: 9, Status: models.PAID})
		middle, _ := attributevalue.MarshalMap(&models.PaymentIntent{ID: 5, Status: models.FAILED})
		pageKey := map[string]types.AttributeValue{"id": &types.AttributeValueMemberN{Value: "3"}}

		mockClient.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
			return in.ExclusiveStartKey == nil
		})).Once().Return(&dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{older}, LastEvaluatedKey: pageKey}, nil)
		mockClient.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
			return in.ExclusiveStartKey != nil
		})).Once().Return(&dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{newest, middle}}, nil)

		// Act
		intents, err := store.ListIntents(context.Background(), nil, 2)

		// Assert
		require.NoError(t, err)
		require.Len(t, intents, 2)
		assert.Equal(t, int64(9), intents[0].ID)
		assert.Equal(t, int64(5), intents[1].ID)
		mockClient.AssertExpectations(t)
	})

	t.Run("Without Limit Counts Every Page", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)
		pageKey := map[string]types.AttributeValue{"id": &types.AttributeValueMemberN{Value: "1"}}

		mockClient.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
			return in.ExclusiveStartKey == nil
		})).Once().Return(&dynamodb.ScanOutput{Items: items[:1], LastEvaluatedKey: pageKey}, nil)
		mockClient.On("Scan", mock.Anything, mock.MatchedBy(func(in *dynamodb.ScanInput) bool {
			return in.ExclusiveStartKey != nil
		})).Once().Return(&dynamodb.ScanOutput{Items: items[1:]}, nil)

		intents, err := store.ListIntents(context.Background(), nil, 0)

		require.NoError(t, err)
		assert.Len(t, intents, 2)
		mockClient.AssertExpectations(t)
	})

	t.Run("By Status Follows Pages Until Limit", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)
		pageKey := map[string]types.AttributeValue{"id": &types.AttributeValueMemberN{Value: "2"}}

		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return in.ExclusiveStartKey == nil
		})).Once().Return(&dynamodb.QueryOutput{Items: items[1:], LastEvaluatedKey: pageKey}, nil)
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			return in.ExclusiveStartKey != nil
		})).Once().Return(&dynamodb.QueryOutput{Items: items[:1]}, nil)

		paid := models.PAID
		intents, err := store.ListIntents(context.Background(), &paid, 2)

		require.NoError(t, err)
		require.Len(t, intents, 2)
		assert.Equal(t, int64(2), intents[0].ID)
		mockClient.AssertExpectations(t)
	})
}

func TestGetStalePendingIntents(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)
		now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return now }

		staleAV, _ := attributevalue.MarshalMap(&models.PaymentIntent{ID: 4, Status: models.PENDING})
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			cutoff := in.ExpressionAttributeValues[":cutoff"].(*types.AttributeValueMemberS).Value
			return cutoff == "2026-10-01T11:00:00Z"
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{staleAV}}, nil)

		intents, err := store.GetStalePendingIntents(context.Background(), time.Hour)

		require.NoError(t, err)
		require.Len(t, intents, 1)
		assert.Equal(t, int64(4), intents[0].ID)
		mockClient.AssertExpectations(t)
	})
}

func TestIncrementIntentRetries(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)

		mockClient.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
			return *in.UpdateExpression == "ADD retries :one"
		})).Return(&dynamodb.UpdateItemOutput{}, nil)

		assert.NoError(t, store.IncrementIntentRetries(context.Background(), 5))
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := newIntentStore(mockClient)

		mockClient.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

		assert.ErrorIs(t, store.IncrementIntentRetries(context.Background(), 5), storage.ErrIntentNotFound)
	})
}
