// internal/repository/memory/balance_mem.go
package memory

import (
	"context"
	"sync"
	"time"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
)

var _ repository.BalanceRepository = (*BalanceRepository)(nil)

// BalanceRepository is an in-process balance store.
// The mutex plays the part of the backing store's per-key atomicity; callers never see it.
type BalanceRepository struct {
	mu       sync.Mutex
	balances map[string]domain.Balance
}

// NewBalanceRepository creates an empty BalanceRepository.
func NewBalanceRepository() *BalanceRepository {
	return &BalanceRepository{balances: make(map[string]domain.Balance)}
}

func (r *BalanceRepository) GetBalance(ctx context.Context, userID string) (*domain.Balance, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.balances[userID]
	if !ok {
		return nil, false, nil
	}
	return copyBalance(b), true, nil
}

func (r *BalanceRepository) CreateBalanceIfAbsent(ctx context.Context, userID string) (*domain.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.balances[userID]; ok {
		return copyBalance(b), nil
	}
	b := *domain.NewBalance(userID)
	r.balances[userID] = b
	return copyBalance(b), nil
}

func (r *BalanceRepository) ApplyDelta(ctx context.Context, userID string, delta domain.Money, token string) (repository.ApplyResult, error) {
	if err := ctx.Err(); err != nil {
		return repository.ApplyResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	b, ok := r.balances[userID]
	if !ok {
		b = domain.Balance{UserID: userID, CreatedAt: now}
	}

	if b.AppliedToken(token) {
		return repository.ApplyResult{Outcome: repository.ApplyDuplicate, Balance: copyBalance(b)}, nil
	}
	if delta.IsNegative() && (b.Balance+delta).IsNegative() {
		return repository.ApplyResult{Outcome: repository.ApplyOverdrawn, Balance: copyBalance(b)}, nil
	}

	b.Balance += delta
	b.LatestTransactionToken = &token
	b.UpdatedAt = now
	r.balances[userID] = b
	return repository.ApplyResult{Outcome: repository.ApplyUpdated, Balance: copyBalance(b)}, nil
}

// copyBalance detaches the returned record from the stored one.
func copyBalance(b domain.Balance) *domain.Balance {
	if b.LatestTransactionToken != nil {
		token := *b.LatestTransactionToken
		b.LatestTransactionToken = &token
	}
	return &b
}
