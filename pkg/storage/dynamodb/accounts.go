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

// maxDebitAttempts bounds the compare-and-set loop in DebitBalance.
const maxDebitAttempts = 5

// GetOrCreateAccount returns the account for externalID, creating it if it does not exist.
// Concurrent callers race on a conditional put, so only one account is ever created.
func (s *Store) GetOrCreateAccount(ctx context.Context, externalID, displayName string) (*models.Account, error) {
	existing, err := s.GetAccount(ctx, externalID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrAccountNotFound) {
		return nil, err
	}

	now := s.clock()
	account := &models.Account{
		ID:          externalID,
		DisplayName: displayName,
		Balance:     0,
		Status:      models.ACTIVE,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	accountAV, err := attributevalue.MarshalMap(account)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.AccountsTableName),
		Item:                accountAV,
		ConditionExpression: aws.String("attribute_not_exists(account_id)"), // Another request may have created it first.
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return s.GetAccount(ctx, externalID)
		}
		return nil, fmt.Errorf("failed to create account in DynamoDB: %w", err)
	}

	slog.Log(ctx, slog.LevelDebug, "account created", "account_id", externalID)
	return account, nil
}

// GetAccount retrieves an account from DynamoDB by its id.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"account_id": accountID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account ID: %w", err)
	}

	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.AccountsTableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrAccountNotFound)
	}

	var account models.Account
	if err := attributevalue.UnmarshalMap(result.Item, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	return &account, nil
}

// CreditBalance atomically adds amount to the account balance.
func (s *Store) CreditBalance(ctx context.Context, accountID string, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, storage.ErrInvalidAmount
	}

	nowAV, err := attributevalue.Marshal(s.clock())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	result, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.AccountsTableName),
		Key:                 accountKey(accountID),
		UpdateExpression:    aws.String("SET balance = balance + :amount, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(account_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":amount": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", amount)},
			":now":    nowAV,
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}

	return unmarshalAccount(result.Attributes)
}

// DebitBalance atomically subtracts amount from the account balance, clamping at zero.
// It alternates between a guarded decrement and a guarded reset to zero until one of them wins.
func (s *Store) DebitBalance(ctx context.Context, accountID string, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, storage.ErrInvalidAmount
	}

	amountAV := &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", amount)}

	for attempt := 0; attempt < maxDebitAttempts; attempt++ {
		nowAV, err := attributevalue.Marshal(s.clock())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal timestamp: %w", err)
		}

		// Operation 1: plain decrement while the balance covers the amount.
		result, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(s.AccountsTableName),
			Key:                 accountKey(accountID),
			UpdateExpression:    aws.String("SET balance = balance - :amount, updated_at = :now"),
			ConditionExpression: aws.String("attribute_exists(account_id) AND balance >= :amount"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":amount": amountAV,
				":now":    nowAV,
			},
			ReturnValues:                        types.ReturnValueAllNew,
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		})
		if err == nil {
			return unmarshalAccount(result.Attributes)
		}

		var condCheckFailed *types.ConditionalCheckFailedException
		if !errors.As(err, &condCheckFailed) {
			return nil, fmt.Errorf("failed to debit account: %w", err)
		}
		if len(condCheckFailed.Item) == 0 {
			return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrAccountNotFound)
		}

		// Operation 2: the balance is short, so clamp it to zero.
		result, err = s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(s.AccountsTableName),
			Key:                 accountKey(accountID),
			UpdateExpression:    aws.String("SET balance = :zero, updated_at = :now"),
			ConditionExpression: aws.String("attribute_exists(account_id) AND balance < :amount"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":amount": amountAV,
				":zero":   &types.AttributeValueMemberN{Value: "0"},
				":now":    nowAV,
			},
			ReturnValues: types.ReturnValueAllNew,
		})
		if err == nil {
			return unmarshalAccount(result.Attributes)
		}
		if !errors.As(err, &condCheckFailed) {
			return nil, fmt.Errorf("failed to debit account: %w", err)
		}

		// A concurrent credit moved the balance between the two updates; try again.
		slog.Log(ctx, slog.LevelDebug, "debit raced with a concurrent update, retrying", "account_id", accountID, "attempt", attempt+1)
	}

	return nil, fmt.Errorf("failed to debit account %s: too much contention", accountID)
}

// SetAccountStatus updates the status of an existing account.
func (s *Store) SetAccountStatus(ctx context.Context, accountID string, status models.AccountStatus) (*models.Account, error) {
	statusAV, err := attributevalue.Marshal(status)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account status: %w", err)
	}
	nowAV, err := attributevalue.Marshal(s.clock())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	result, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.AccountsTableName),
		Key:                 accountKey(accountID),
		UpdateExpression:    aws.String("SET #status = :status, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(account_id)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": statusAV,
			":now":    nowAV,
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil, fmt.Errorf("account %s: %w", accountID, storage.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to update account status: %w", err)
	}

	return unmarshalAccount(result.Attributes)
}

// ListAccounts retrieves all accounts, optionally filtered by status.
func (s *Store) ListAccounts(ctx context.Context, status *models.AccountStatus) ([]models.Account, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.AccountsTableName),
	}
	if status != nil {
		input.FilterExpression = aws.String("#status = :status")
		input.ExpressionAttributeNames = map[string]string{"#status": "status"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(*status)},
		}
	}

	var accounts []models.Account
	for {
		result, err := s.Client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan accounts table: %w", err)
		}

		var page []models.Account
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal accounts: %w", err)
		}
		accounts = append(accounts, page...)

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return accounts, nil
}

func accountKey(accountID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"account_id": &types.AttributeValueMemberS{Value: accountID},
	}
}

func unmarshalAccount(item map[string]types.AttributeValue) (*models.Account, error) {
	var account models.Account
	if err := attributevalue.UnmarshalMap(item, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}
