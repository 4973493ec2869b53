// internal/repository/mysql/transaction_mysql.go
package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/pkg/mysql"
)

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository implements repository.TransactionRepository on MySQL through gorm.
type TransactionRepository struct {
	client *mysql.Client
}

func NewTransactionRepository(client *mysql.Client) *TransactionRepository {
	return &TransactionRepository{client: client}
}

func (r *TransactionRepository) GetTransaction(ctx context.Context, idempotentKey string) (*domain.TransactionRecord, bool, error) {
	var row transactionRow
	err := r.client.DB().WithContext(ctx).Where("idempotent_key = ?", idempotentKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get transaction %s: %w", idempotentKey, err)
	}
	return row.toDomain(), true, nil
}

// CreateTransactionIfAbsent inserts the record; no affected rows means another writer owns the key.
func (r *TransactionRepository) CreateTransactionIfAbsent(ctx context.Context, record *domain.TransactionRecord) (repository.CreateResult, error) {
	res := r.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(newTransactionRow(record))
	if res.Error != nil {
		return repository.CreateResult{}, fmt.Errorf("failed to create transaction %s: %w", record.IdempotentKey, res.Error)
	}
	if res.RowsAffected > 0 {
		return repository.CreateResult{Outcome: repository.Created, Record: record}, nil
	}

	existing, found, err := r.GetTransaction(ctx, record.IdempotentKey)
	if err != nil {
		return repository.CreateResult{}, err
	}
	if !found {
		return repository.CreateResult{}, fmt.Errorf("transaction %s was not inserted and cannot be read", record.IdempotentKey)
	}
	return repository.CreateResult{Outcome: repository.AlreadyExists, Record: existing}, nil
}
