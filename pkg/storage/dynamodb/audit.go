package dynamodb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/stars-ledger/pkg/models"
)

const (
	auditGSI          = "gsi1pk-created_at-index"
	auditPartitionKey = "AUDIT_LOG"
)

// AppendAuditEntry stores a new audit entry. Existing entries are never overwritten.
func (s *Store) AppendAuditEntry(ctx context.Context, entry *models.AuditLogEntry) error {
	entry.GSI1PK = auditPartitionKey

	entryAV, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.AuditTableName),
		Item:                entryAV,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// ListAuditEntries retrieves the most recent audit entries. A limit of zero or less returns every entry.
func (s *Store) ListAuditEntries(ctx context.Context, limit int32) ([]models.AuditLogEntry, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.AuditTableName),
		IndexName:              aws.String(auditGSI),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: auditPartitionKey},
		},
		ScanIndexForward: aws.Bool(false), // Sort by created_at in descending order
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	var items []map[string]types.AttributeValue
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query for audit entries: %w", err)
		}
		items = append(items, result.Items...)

		if len(result.LastEvaluatedKey) == 0 || (limit > 0 && len(items) >= int(limit)) {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	if limit > 0 && len(items) > int(limit) {
		items = items[:limit]
	}

	var entries []models.AuditLogEntry
	if err := attributevalue.UnmarshalListOfMaps(items, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit entries: %w", err)
	}

	return entries, nil
}
