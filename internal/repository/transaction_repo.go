// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"balance-ledger/internal/domain"
)

// CreateOutcome is the result variant of TransactionRepository.CreateTransactionIfAbsent.
type CreateOutcome int

const (
	Created CreateOutcome = iota + 1
	AlreadyExists
)

func (o CreateOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// CreateResult carries the stored record: the new one when Created, the winner's when AlreadyExists.
type CreateResult struct {
	Outcome CreateOutcome
	Record  *domain.TransactionRecord
}

// TransactionRepository is an append-only log of transaction records keyed by idempotency key.
type TransactionRepository interface {
	// GetTransaction retrieves the record for an idempotency key. The bool is false when none exists.
	GetTransaction(ctx context.Context, idempotentKey string) (*domain.TransactionRecord, bool, error)
	// CreateTransactionIfAbsent stores record unless its idempotency key is taken. First writer wins.
	CreateTransactionIfAbsent(ctx context.Context, record *domain.TransactionRecord) (CreateResult, error)
}
