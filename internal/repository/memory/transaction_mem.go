// internal/repository/memory/transaction_mem.go
package memory

import (
	"context"
	"sync"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
)

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

// TransactionRepository is an in-process transaction log.
type TransactionRepository struct {
	mu      sync.Mutex
	records map[string]domain.TransactionRecord
}

// NewTransactionRepository creates an empty TransactionRepository.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{records: make(map[string]domain.TransactionRecord)}
}

func (r *TransactionRepository) GetTransaction(ctx context.Context, idempotentKey string) (*domain.TransactionRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[idempotentKey]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (r *TransactionRepository) CreateTransactionIfAbsent(ctx context.Context, record *domain.TransactionRecord) (repository.CreateResult, error) {
	if err := ctx.Err(); err != nil {
		return repository.CreateResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[record.IdempotentKey]; ok {
		return repository.CreateResult{Outcome: repository.AlreadyExists, Record: &existing}, nil
	}
	stored := *record
	r.records[record.IdempotentKey] = stored
	return repository.CreateResult{Outcome: repository.Created, Record: &stored}, nil
}

// Len returns the number of stored records.
func (r *TransactionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
