// internal/repository/dynamo/transaction_dynamo.go
package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
)

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository implements repository.TransactionRepository on a table keyed by idempotentKey.
type TransactionRepository struct {
	client API
	table  string
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(client API, table string) *TransactionRepository {
	return &TransactionRepository{client: client, table: table}
}

func (r *TransactionRepository) GetTransaction(ctx context.Context, idempotentKey string) (*domain.TransactionRecord, bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            stringKey("idempotentKey", idempotentKey),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get transaction %s: %w", idempotentKey, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	record, err := unmarshalRecord(out.Item)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// CreateTransactionIfAbsent puts the record guarded by attribute_not_exists(idempotentKey).
// The losing writer gets the stored record back from the failed condition, or from a consistent read.
func (r *TransactionRepository) CreateTransactionIfAbsent(ctx context.Context, record *domain.TransactionRecord) (repository.CreateResult, error) {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return repository.CreateResult{}, fmt.Errorf("failed to marshal transaction %s: %w", record.IdempotentKey, err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                           aws.String(r.table),
		Item:                                item,
		ConditionExpression:                 aws.String("attribute_not_exists(idempotentKey)"),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return repository.CreateResult{Outcome: repository.Created, Record: record}, nil
	}

	old, ok := conditionFailed(err)
	if !ok {
		return repository.CreateResult{}, fmt.Errorf("failed to create transaction %s: %w", record.IdempotentKey, err)
	}

	var existing *domain.TransactionRecord
	if len(old) > 0 {
		existing, err = unmarshalRecord(old)
	} else {
		var found bool
		existing, found, err = r.GetTransaction(ctx, record.IdempotentKey)
		if err == nil && !found {
			err = fmt.Errorf("transaction %s vanished after a conflicting create", record.IdempotentKey)
		}
	}
	if err != nil {
		return repository.CreateResult{}, err
	}
	return repository.CreateResult{Outcome: repository.AlreadyExists, Record: existing}, nil
}

func unmarshalRecord(item map[string]types.AttributeValue) (*domain.TransactionRecord, error) {
	var record domain.TransactionRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	if !record.Status.Valid() {
		return nil, fmt.Errorf("transaction %s has unknown status %q", record.IdempotentKey, record.Status)
	}
	return &record, nil
}
