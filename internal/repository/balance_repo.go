// internal/repository/balance_repo.go
package repository

import (
	"context"

	"balance-ledger/internal/domain"
)

// ApplyOutcome is the result variant of BalanceRepository.ApplyDelta.
type ApplyOutcome int

const (
	// ApplyUpdated means the delta was added and the token stamped.
	ApplyUpdated ApplyOutcome = iota + 1
	// ApplyDuplicate means the stored token already equals the given token; nothing was written.
	ApplyDuplicate
	// ApplyOverdrawn means a negative delta would take the balance below zero; nothing was written.
	ApplyOverdrawn
)

func (o ApplyOutcome) String() string {
	switch o {
	case ApplyUpdated:
		return "updated"
	case ApplyDuplicate:
		return "duplicate"
	case ApplyOverdrawn:
		return "overdrawn"
	default:
		return "unknown"
	}
}

// ApplyResult carries the outcome of a conditional balance update.
// Balance is the post-update record for ApplyUpdated and the stored record otherwise, when the store returns one.
type ApplyResult struct {
	Outcome ApplyOutcome
	Balance *domain.Balance
}

// BalanceRepository is a key-value store of balances addressed by user ID.
// Implementations only provide single-key conditional primitives; they know nothing about transactions.
type BalanceRepository interface {
	// GetBalance retrieves the balance of a user. The bool is false when the user has never been seen.
	GetBalance(ctx context.Context, userID string) (*domain.Balance, bool, error)
	// CreateBalanceIfAbsent atomically creates a zero balance, or returns the existing record when one is already stored.
	// Under concurrent callers exactly one creation succeeds and the rest observe the winner's record.
	CreateBalanceIfAbsent(ctx context.Context, userID string) (*domain.Balance, error)
	// ApplyDelta atomically adds delta to the balance (absent counts as zero), stamps token as the latest transaction
	// and refreshes updatedAt, unless token is already the latest transaction or a negative delta would overdraw.
	ApplyDelta(ctx context.Context, userID string, delta domain.Money, token string) (ApplyResult, error)
}
