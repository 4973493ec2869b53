// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
)

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = pq.ErrorCode("23505")

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// GetTransaction retrieves a transaction record by idempotency key.
func (r *TransactionRepository) GetTransaction(ctx context.Context, idempotentKey string) (*domain.TransactionRecord, bool, error) {
	var record domain.TransactionRecord
	query := `SELECT idempotent_key, transaction_id, user_id, amount, type, status, created_at
		FROM transactions WHERE idempotent_key = $1`
	err := r.db.GetContext(ctx, &record, query, idempotentKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get transaction %s: %w", idempotentKey, err)
	}
	return &record, true, nil
}

// CreateTransactionIfAbsent inserts the record; the primary key on idempotent_key decides the winner.
func (r *TransactionRepository) CreateTransactionIfAbsent(ctx context.Context, record *domain.TransactionRecord) (repository.CreateResult, error) {
	query := `INSERT INTO transactions (idempotent_key, transaction_id, user_id, amount, type, status, created_at)
		VALUES (:idempotent_key, :transaction_id, :user_id, :amount, :type, :status, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, record)
	if err == nil {
		return repository.CreateResult{Outcome: repository.Created, Record: record}, nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return repository.CreateResult{}, fmt.Errorf("failed to create transaction %s: %w", record.IdempotentKey, err)
	}

	existing, found, err := r.GetTransaction(ctx, record.IdempotentKey)
	if err != nil {
		return repository.CreateResult{}, err
	}
	if !found {
		return repository.CreateResult{}, fmt.Errorf("transaction %s vanished after a duplicate key error", record.IdempotentKey)
	}
	return repository.CreateResult{Outcome: repository.AlreadyExists, Record: existing}, nil
}
