// internal/repository/postgres/balance_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/pkg/db"
)

var _ repository.BalanceRepository = (*BalanceRepository)(nil)

const balanceColumns = `user_id, balance, latest_transaction_token, created_at, updated_at`

// BalanceRepository implements repository.BalanceRepository for PostgreSQL.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// GetBalance retrieves a balance by user ID.
func (r *BalanceRepository) GetBalance(ctx context.Context, userID string) (*domain.Balance, bool, error) {
	balance, err := getBalance(ctx, r.db, `SELECT `+balanceColumns+` FROM balances WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get balance for user %s: %w", userID, err)
	}
	return balance, true, nil
}

// CreateBalanceIfAbsent inserts a zero balance unless the user already has one, then returns the stored row.
func (r *BalanceRepository) CreateBalanceIfAbsent(ctx context.Context, userID string) (*domain.Balance, error) {
	if err := insertZeroBalance(ctx, r.db, userID); err != nil {
		return nil, err
	}
	balance, err := getBalance(ctx, r.db, `SELECT `+balanceColumns+` FROM balances WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance for user %s after create: %w", userID, err)
	}
	return balance, nil
}

// ApplyDelta runs a short transaction confined to the user's row: the row lock serializes
// concurrent writers, and the token and floor checks happen under it.
func (r *BalanceRepository) ApplyDelta(ctx context.Context, userID string, delta domain.Money, token string) (repository.ApplyResult, error) {
	tx, err := db.BeginTx(ctx, r.db)
	if err != nil {
		return repository.ApplyResult{}, fmt.Errorf("failed to apply delta for user %s: %w", userID, err)
	}
	defer db.RollbackTx(tx)

	if err := insertZeroBalance(ctx, tx, userID); err != nil {
		return repository.ApplyResult{}, err
	}

	current, err := getBalance(ctx, tx, `SELECT `+balanceColumns+` FROM balances WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return repository.ApplyResult{}, fmt.Errorf("failed to lock balance for user %s: %w", userID, err)
	}
	if current.AppliedToken(token) {
		return repository.ApplyResult{Outcome: repository.ApplyDuplicate, Balance: current}, nil
	}
	if delta.IsNegative() && (current.Balance+delta).IsNegative() {
		return repository.ApplyResult{Outcome: repository.ApplyOverdrawn, Balance: current}, nil
	}

	updated, err := getBalance(ctx, tx, `UPDATE balances
		SET balance = balance + $2::numeric, latest_transaction_token = $3, updated_at = $4
		WHERE user_id = $1
		RETURNING `+balanceColumns, userID, delta, token, time.Now().UTC())
	if err != nil {
		return repository.ApplyResult{}, fmt.Errorf("failed to update balance for user %s: %w", userID, err)
	}

	if err := db.CommitTx(tx); err != nil {
		return repository.ApplyResult{}, fmt.Errorf("failed to apply delta for user %s: %w", userID, err)
	}
	return repository.ApplyResult{Outcome: repository.ApplyUpdated, Balance: updated}, nil
}

func insertZeroBalance(ctx context.Context, q repository.DBExecutor, userID string) error {
	now := time.Now().UTC()
	_, err := q.ExecContext(ctx, `INSERT INTO balances (user_id, balance, created_at, updated_at)
		VALUES ($1, 0, $2, $2)
		ON CONFLICT (user_id) DO NOTHING`, userID, now)
	if err != nil {
		return fmt.Errorf("failed to create balance for user %s: %w", userID, err)
	}
	return nil
}

func getBalance(ctx context.Context, q repository.DBExecutor, query string, args ...interface{}) (*domain.Balance, error) {
	var balance domain.Balance
	if err := q.GetContext(ctx, &balance, query, args...); err != nil {
		return nil, err
	}
	return &balance, nil
}
