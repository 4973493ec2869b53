// pkg/dynamo/tables.go
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableAPI is the part of *dynamodb.Client needed to provision tables.
type TableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// TableWaitTimeout bounds how long EnsureTables waits for a table to become active.
var TableWaitTimeout = 2 * time.Minute

// EnsureTables creates the balances and transactions tables if they do not exist, then waits until both are active.
// Each table has a single string hash key and on-demand billing.
func EnsureTables(ctx context.Context, client TableAPI, cfg Config, logger *slog.Logger) error {
	tables := []struct {
		name string
		key  string
	}{
		{cfg.BalancesTable, "userId"},
		{cfg.TransactionsTable, "idempotentKey"},
	}

	for _, tbl := range tables {
		if err := ensureTable(ctx, client, tbl.name, tbl.key, logger); err != nil {
			return err
		}
	}
	return nil
}

func ensureTable(ctx context.Context, client TableAPI, name, hashKey string, logger *slog.Logger) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(name),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hashKey), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})

	var inUse *types.ResourceInUseException
	switch {
	case err == nil:
		logger.Info("DynamoDB table created", "table", name)
	case errors.As(err, &inUse):
		logger.Info("DynamoDB table already exists", "table", name)
	default:
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, TableWaitTimeout); err != nil {
		return fmt.Errorf("table %s did not become active: %w", name, err)
	}
	return nil
}
