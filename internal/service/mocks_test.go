// internal/service/mocks_test.go
package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
)

// MockBalanceRepository is a mock implementation of repository.BalanceRepository.
type MockBalanceRepository struct {
	mock.Mock
}

func (m *MockBalanceRepository) GetBalance(ctx context.Context, userID string) (*domain.Balance, bool, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Balance), args.Bool(1), args.Error(2)
}

func (m *MockBalanceRepository) CreateBalanceIfAbsent(ctx context.Context, userID string) (*domain.Balance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Balance), args.Error(1)
}

func (m *MockBalanceRepository) ApplyDelta(ctx context.Context, userID string, delta domain.Money, token string) (repository.ApplyResult, error) {
	args := m.Called(ctx, userID, delta, token)
	return args.Get(0).(repository.ApplyResult), args.Error(1)
}

// MockTransactionRepository is a mock implementation of repository.TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) GetTransaction(ctx context.Context, idempotentKey string) (*domain.TransactionRecord, bool, error) {
	args := m.Called(ctx, idempotentKey)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.TransactionRecord), args.Bool(1), args.Error(2)
}

func (m *MockTransactionRepository) CreateTransactionIfAbsent(ctx context.Context, record *domain.TransactionRecord) (repository.CreateResult, error) {
	args := m.Called(ctx, record)
	// A function return value lets a test echo the record the service built.
	if fn, ok := args.Get(0).(func(context.Context, *domain.TransactionRecord) repository.CreateResult); ok {
		return fn(ctx, record), args.Error(1)
	}
	return args.Get(0).(repository.CreateResult), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func balanceOf(userID string, amount domain.Money) *domain.Balance {
	b := domain.NewBalance(userID)
	b.Balance = amount
	return b
}
