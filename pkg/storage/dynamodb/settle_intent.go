package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/storage"
)

// Positions of the operations inside the settlement transaction.
const (
	settleOpIntent = iota
	settleOpReference
	settleOpAccount
)

// SettleIntent performs the final atomic settlement of a payment intent.
// The status flip, the reference binding and the balance credit are written in a single
// TransactWriteItems call. The intent update is conditioned on the status still being pending,
// so two concurrent confirmations for the same intent can never both credit the account.
func (s *Store) SettleIntent(ctx context.Context, id int64, ref string) (*models.PaymentIntent, bool, error) {
	// 1. Get the current state of the intent.
	intent, err := s.FindIntentByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	switch intent.Status {
	case models.PAID:
		// Duplicate delivery; the credit has already been applied.
		return intent, false, nil
	case models.PENDING:
	default:
		return intent, false, fmt.Errorf("cannot settle %s intent %d: %w", intent.Status, id, storage.ErrInvalidTransition)
	}

	// 2. Prepare common values.
	now := s.clock()
	nowAV, err := attributevalue.Marshal(now)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal timestamp for settlement: %w", err)
	}
	amountAV, err := attributevalue.Marshal(intent.Amount)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal amount for settlement: %w", err)
	}
	referenceAV, err := attributevalue.MarshalMap(settlementReference{Reference: ref, IntentID: id, CreatedAt: now})
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal settlement reference: %w", err)
	}

	// 3. Construct the TransactWriteItems input.
	input := &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			settleOpIntent: {
				// Operation 1: Mark the intent paid, only if it is still pending.
				Update: &types.Update{
					TableName:           aws.String(s.IntentsTableName),
					Key:                 intentKey(id),
					UpdateExpression:    aws.String("SET #status = :paid, external_reference = :ref, updated_at = :now"),
					ConditionExpression: aws.String("#status = :pending"),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":paid":    &types.AttributeValueMemberS{Value: string(models.PAID)},
						":pending": &types.AttributeValueMemberS{Value: string(models.PENDING)},
						":ref":     &types.AttributeValueMemberS{Value: ref},
						":now":     nowAV,
					},
				},
			},
			settleOpReference: {
				// Operation 2: Claim the settlement reference.
				Put: &types.Put{
					TableName:           aws.String(s.ReferencesTableName),
					Item:                referenceAV,
					ConditionExpression: aws.String("attribute_not_exists(reference)"),
				},
			},
			settleOpAccount: {
				// Operation 3: Credit the owning account.
				Update: &types.Update{
					TableName:           aws.String(s.AccountsTableName),
					Key:                 accountKey(intent.AccountID),
					UpdateExpression:    aws.String("SET balance = balance + :amount, updated_at = :now"),
					ConditionExpression: aws.String("attribute_exists(account_id)"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":amount": amountAV,
						":now":    nowAV,
					},
				},
			},
		},
	}

	// 4. Execute the transaction.
	_, err = s.Client.TransactWriteItems(ctx, input)
	if err != nil {
		return s.settlementFailure(ctx, id, ref, err)
	}

	// After success, the intent is now PAID.
	intent.Status = models.PAID
	intent.ExternalReference = aws.String(ref)
	intent.UpdatedAt = now
	return intent, true, nil
}

// settlementFailure maps a cancelled settlement transaction to a storage error.
func (s *Store) settlementFailure(ctx context.Context, id int64, ref string, err error) (*models.PaymentIntent, bool, error) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil, false, fmt.Errorf("failed to execute settlement transaction: %w", err)
	}

	failed := func(op int) bool {
		if len(tce.CancellationReasons) <= op {
			return false
		}
		code := tce.CancellationReasons[op].Code
		return code != nil && *code == "ConditionalCheckFailed"
	}

	switch {
	case failed(settleOpIntent):
		// Someone else moved the intent first. If they settled it, this call is a duplicate.
		current, findErr := s.FindIntentByID(ctx, id)
		if findErr != nil {
			return nil, false, findErr
		}
		if current.Status == models.PAID {
			slog.Log(ctx, slog.LevelInfo, "intent settled concurrently", "intent_id", id)
			return current, false, nil
		}
		return current, false, fmt.Errorf("cannot settle %s intent %d: %w", current.Status, id, storage.ErrInvalidTransition)
	case failed(settleOpReference):
		return nil, false, fmt.Errorf("reference %s: %w", ref, storage.ErrDuplicateSettlement)
	case failed(settleOpAccount):
		return nil, false, fmt.Errorf("settling intent %d: %w", id, storage.ErrAccountNotFound)
	}

	return nil, false, fmt.Errorf("failed to execute settlement transaction: %w", err)
}

// FailIntent moves a pending intent to failed.
func (s *Store) FailIntent(ctx context.Context, id int64) (*models.PaymentIntent, error) {
	updated, old, err := s.transitionIntent(ctx, id, models.PENDING, models.FAILED)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("cannot fail %s intent %d: %w", old.Status, id, storage.ErrInvalidTransition)
	}
	return updated, nil
}

// RefundIntent moves a paid intent to refunded. The account balance is left untouched.
func (s *Store) RefundIntent(ctx context.Context, id int64) (*models.PaymentIntent, bool, error) {
	updated, old, err := s.transitionIntent(ctx, id, models.PAID, models.REFUNDED)
	if err != nil {
		return nil, false, err
	}
	if updated == nil {
		if old.Status == models.REFUNDED {
			return old, false, nil
		}
		return old, false, fmt.Errorf("cannot refund %s intent %d: %w", old.Status, id, storage.ErrInvalidTransition)
	}
	return updated, true, nil
}

// transitionIntent performs a single conditional status update.
// When the condition fails it returns a nil updated intent together with the current one.
func (s *Store) transitionIntent(ctx context.Context, id int64, from, to models.IntentStatus) (updated, old *models.PaymentIntent, err error) {
	nowAV, err := attributevalue.Marshal(s.clock())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal timestamp for status update: %w", err)
	}

	result, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.IntentsTableName),
		Key:                 intentKey(id),
		UpdateExpression:    aws.String("SET #status = :to, updated_at = :now"),
		ConditionExpression: aws.String("#status = :from"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":   &types.AttributeValueMemberS{Value: string(to)},
			":from": &types.AttributeValueMemberS{Value: string(from)},
			":now":  nowAV,
		},
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			if len(condCheckFailed.Item) == 0 {
				return nil, nil, fmt.Errorf("payment intent %d: %w", id, storage.ErrIntentNotFound)
			}
			current, err := unmarshalIntent(condCheckFailed.Item)
			if err != nil {
				return nil, nil, err
			}
			return nil, current, nil
		}
		return nil, nil, fmt.Errorf("failed to update payment intent status to %s: %w", to, err)
	}

	intent, err := unmarshalIntent(result.Attributes)
	if err != nil {
		return nil, nil, err
	}
	return intent, nil, nil
}
