// internal/repository/dynamo/balance_dynamo.go
package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
)

var _ repository.BalanceRepository = (*BalanceRepository)(nil)

// BalanceRepository implements repository.BalanceRepository on a table keyed by userId.
// Balances are stored as integer minor units.
type BalanceRepository struct {
	client API
	table  string
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(client API, table string) *BalanceRepository {
	return &BalanceRepository{client: client, table: table}
}

// GetBalance reads a balance with a strongly consistent read.
func (r *BalanceRepository) GetBalance(ctx context.Context, userID string) (*domain.Balance, bool, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            stringKey("userId", userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get balance for user %s: %w", userID, err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	balance, err := unmarshalBalance(out.Item)
	if err != nil {
		return nil, false, err
	}
	return balance, true, nil
}

// CreateBalanceIfAbsent puts a zero balance guarded by attribute_not_exists(userId).
func (r *BalanceRepository) CreateBalanceIfAbsent(ctx context.Context, userID string) (*domain.Balance, error) {
	balance := domain.NewBalance(userID)
	item, err := attributevalue.MarshalMap(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal balance for user %s: %w", userID, err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(userId)"),
	})
	if err == nil {
		return balance, nil
	}
	if _, ok := conditionFailed(err); !ok {
		return nil, fmt.Errorf("failed to create balance for user %s: %w", userID, err)
	}

	existing, found, err := r.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("balance for user %s vanished after a conflicting create", userID)
	}
	return existing, nil
}

// ApplyDelta is a single UpdateItem: the token guard and, for debits, the overdraft floor are one condition expression.
func (r *BalanceRepository) ApplyDelta(ctx context.Context, userID string, delta domain.Money, token string) (repository.ApplyResult, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	condition := "(attribute_not_exists(#token) OR #token <> :token)"
	values := map[string]types.AttributeValue{
		":zero":  &types.AttributeValueMemberN{Value: "0"},
		":delta": &types.AttributeValueMemberN{Value: strconv.FormatInt(int64(delta), 10)},
		":now":   &types.AttributeValueMemberS{Value: now},
		":token": &types.AttributeValueMemberS{Value: token},
	}
	if delta.IsNegative() {
		condition += " AND #balance >= :floor"
		values[":floor"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(int64(delta.Neg()), 10)}
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.table),
		Key:       stringKey("userId", userID),
		UpdateExpression: aws.String("SET #balance = if_not_exists(#balance, :zero) + :delta, " +
			"#updatedAt = :now, #createdAt = if_not_exists(#createdAt, :now), #token = :token"),
		ConditionExpression: aws.String(condition),
		ExpressionAttributeNames: map[string]string{
			"#balance":   "balance",
			"#updatedAt": "updatedAt",
			"#createdAt": "createdAt",
			"#token":     "latestTransactionToken",
		},
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		old, ok := conditionFailed(err)
		if !ok {
			return repository.ApplyResult{}, fmt.Errorf("failed to update balance for user %s: %w", userID, err)
		}
		return r.classifyRejection(userID, token, old)
	}

	balance, err := unmarshalBalance(out.Attributes)
	if err != nil {
		return repository.ApplyResult{}, err
	}
	return repository.ApplyResult{Outcome: repository.ApplyUpdated, Balance: balance}, nil
}

// classifyRejection tells a duplicate token from an overdraft using the item as it was when the condition failed.
func (r *BalanceRepository) classifyRejection(userID, token string, old map[string]types.AttributeValue) (repository.ApplyResult, error) {
	if len(old) == 0 {
		// Only the floor can fail on a missing item.
		return repository.ApplyResult{Outcome: repository.ApplyOverdrawn}, nil
	}
	balance, err := unmarshalBalance(old)
	if err != nil {
		return repository.ApplyResult{}, fmt.Errorf("failed to read rejected balance for user %s: %w", userID, err)
	}
	if balance.AppliedToken(token) {
		return repository.ApplyResult{Outcome: repository.ApplyDuplicate, Balance: balance}, nil
	}
	return repository.ApplyResult{Outcome: repository.ApplyOverdrawn, Balance: balance}, nil
}

func unmarshalBalance(item map[string]types.AttributeValue) (*domain.Balance, error) {
	var balance domain.Balance
	if err := attributevalue.UnmarshalMap(item, &balance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal balance: %w", err)
	}
	return &balance, nil
}
