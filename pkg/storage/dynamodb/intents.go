package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/storage"
)

const (
	statusCreatedAtGSI = "status-created_at-index"
	intentCounterName  = "payment_intents"
)

// settlementReference is the uniqueness guard for external settlement references.
// DynamoDB has no unique secondary indexes, so each reference owns one item keyed by itself.
type settlementReference struct {
	Reference string    `dynamodbav:"reference"`
	IntentID  int64     `dynamodbav:"intent_id"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

// CreateIntent assigns the next monotonic id and stores a new pending intent.
func (s *Store) CreateIntent(ctx context.Context, intent *models.PaymentIntent) (*models.PaymentIntent, error) {
	// 1. Reserve the next id from the atomic counter.
	id, err := s.nextIntentID(ctx)
	if err != nil {
		return nil, err
	}

	// 2. Complete the intent with server-side details.
	now := s.clock()
	intent.ID = id
	intent.Status = models.PENDING
	intent.ExternalReference = nil
	intent.Retries = 0
	intent.CreatedAt = now
	intent.UpdatedAt = now

	slog.Log(ctx, slog.LevelDebug, "creating payment intent", "intent", intent)

	intentAV, err := attributevalue.MarshalMap(intent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment intent: %w", err)
	}

	// 3. Insert, refusing to overwrite an existing intent.
	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.IntentsTableName),
		Item:                intentAV,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return intent, nil
}

// nextIntentID atomically increments the intent counter and returns the new value.
func (s *Store) nextIntentID(ctx context.Context) (int64, error) {
	result, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.CountersTableName),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: intentCounterName},
		},
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate payment intent id: %w", err)
	}

	var id int64
	if err := attributevalue.Unmarshal(result.Attributes["seq"], &id); err != nil {
		return 0, fmt.Errorf("failed to unmarshal payment intent id: %w", err)
	}

	return id, nil
}

// FindIntentByID retrieves a payment intent from DynamoDB by its id.
func (s *Store) FindIntentByID(ctx context.Context, id int64) (*models.PaymentIntent, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.IntentsTableName),
		Key:            intentKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get payment intent from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("payment intent %d: %w", id, storage.ErrIntentNotFound)
	}

	return unmarshalIntent(result.Item)
}

// FindIntentByExternalReference resolves a settlement reference to its intent.
// It returns nil without an error when the reference has never been used.
func (s *Store) FindIntentByExternalReference(ctx context.Context, ref string) (*models.PaymentIntent, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"reference": ref})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settlement reference: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.ReferencesTableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement reference from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var binding settlementReference
	if err := attributevalue.UnmarshalMap(result.Item, &binding); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settlement reference: %w", err)
	}

	return s.FindIntentByID(ctx, binding.IntentID)
}

// ListIntents retrieves the most recent intents, newest first. A limit of zero or less returns every intent.
// With a status the status index is read newest first until limit items are found. Without one the whole
// table is scanned, since a scan page is in no particular order.
func (s *Store) ListIntents(ctx context.Context, status *models.IntentStatus, limit int32) ([]models.PaymentIntent, error) {
	var items []map[string]types.AttributeValue

	if status != nil {
		input := &dynamodb.QueryInput{
			TableName:              aws.String(s.IntentsTableName),
			IndexName:              aws.String(statusCreatedAtGSI),
			KeyConditionExpression: aws.String("#status = :status"),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":status": &types.AttributeValueMemberS{Value: string(*status)},
			},
			ScanIndexForward: aws.Bool(false), // Sort by created_at in descending order
		}
		if limit > 0 {
			input.Limit = aws.Int32(limit)
		}
		for {
			result, err := s.Client.Query(ctx, input)
			if err != nil {
				return nil, fmt.Errorf("failed to query payment intents by status: %w", err)
			}
			items = append(items, result.Items...)

			if len(result.LastEvaluatedKey) == 0 || (limit > 0 && len(items) >= int(limit)) {
				break
			}
			input.ExclusiveStartKey = result.LastEvaluatedKey
		}
	} else {
		input := &dynamodb.ScanInput{TableName: aws.String(s.IntentsTableName)}
		for {
			result, err := s.Client.Scan(ctx, input)
			if err != nil {
				return nil, fmt.Errorf("failed to scan payment intents table: %w", err)
			}
			items = append(items, result.Items...)

			if len(result.LastEvaluatedKey) == 0 {
				break
			}
			input.ExclusiveStartKey = result.LastEvaluatedKey
		}
	}

	var intents []models.PaymentIntent
	if err := attributevalue.UnmarshalListOfMaps(items, &intents); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment intents: %w", err)
	}

	// Ids come from a monotonic counter, so the highest id is the newest intent.
	sort.Slice(intents, func(i, j int) bool {
		return intents[i].ID > intents[j].ID
	})
	if limit > 0 && len(intents) > int(limit) {
		intents = intents[:limit]
	}

	return intents, nil
}

// GetStalePendingIntents retrieves intents that have been pending for longer than maxAge.
func (s *Store) GetStalePendingIntents(ctx context.Context, maxAge time.Duration) ([]models.PaymentIntent, error) {
	// Calculate the cutoff time.
	cutoffTime := s.clock().Add(-maxAge)
	cutoffTimeStr, err := cutoffTime.MarshalText()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cutoff time: %w", err)
	}

	result, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.IntentsTableName),
		IndexName:              aws.String(statusCreatedAtGSI),
		KeyConditionExpression: aws.String("#status = :status AND created_at < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(models.PENDING)},
			":cutoff": &types.AttributeValueMemberS{Value: string(cutoffTimeStr)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query for stale payment intents: %w", err)
	}

	var intents []models.PaymentIntent
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &intents); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stale payment intents: %w", err)
	}

	return intents, nil
}

// IncrementIntentRetries records one more failed provider attempt on an intent.
func (s *Store) IncrementIntentRetries(ctx context.Context, id int64) error {
	_, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.IntentsTableName),
		Key:                 intentKey(id),
		UpdateExpression:    aws.String("ADD retries :one"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return fmt.Errorf("payment intent %d: %w", id, storage.ErrIntentNotFound)
		}
		return fmt.Errorf("failed to increment payment intent retries: %w", err)
	}

	return nil
}

func intentKey(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", id)},
	}
}

func unmarshalIntent(item map[string]types.AttributeValue) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := attributevalue.UnmarshalMap(item, &intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}
	return &intent, nil
}
