// internal/repository/mysql/balance_mysql.go
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
	"balance-ledger/pkg/mysql"
)

var _ repository.BalanceRepository = (*BalanceRepository)(nil)

// BalanceRepository implements repository.BalanceRepository on MySQL through gorm.
type BalanceRepository struct {
	client *mysql.Client
}

func NewBalanceRepository(client *mysql.Client) *BalanceRepository {
	return &BalanceRepository{client: client}
}

func (r *BalanceRepository) GetBalance(ctx context.Context, userID string) (*domain.Balance, bool, error) {
	var row balanceRow
	err := r.client.DB().WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get balance for user %s: %w", userID, err)
	}
	return row.toDomain(), true, nil
}

func (r *BalanceRepository) CreateBalanceIfAbsent(ctx context.Context, userID string) (*domain.Balance, error) {
	db := r.client.DB().WithContext(ctx)
	if err := insertZeroBalance(db, userID); err != nil {
		return nil, err
	}

	var row balanceRow
	if err := db.Where("user_id = ?", userID).First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to read balance for user %s after create: %w", userID, err)
	}
	return row.toDomain(), nil
}

// ApplyDelta locks the user's row, checks the token and the zero floor, then writes.
func (r *BalanceRepository) ApplyDelta(ctx context.Context, userID string, delta domain.Money, token string) (repository.ApplyResult, error) {
	var result repository.ApplyResult

	err := r.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertZeroBalance(tx, userID); err != nil {
			return err
		}

		var row balanceRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&row).Error; err != nil {
			return fmt.Errorf("failed to lock balance for user %s: %w", userID, err)
		}

		current := row.toDomain()
		if current.AppliedToken(token) {
			result = repository.ApplyResult{Outcome: repository.ApplyDuplicate, Balance: current}
			return nil
		}
		if delta.IsNegative() && (current.Balance+delta).IsNegative() {
			result = repository.ApplyResult{Outcome: repository.ApplyOverdrawn, Balance: current}
			return nil
		}

		row.Balance += delta
		row.LatestTransactionToken = &token
		row.UpdatedAt = time.Now().UTC()
		if err := tx.Model(&balanceRow{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"balance":                  row.Balance,
			"latest_transaction_token": token,
			"updated_at":               row.UpdatedAt,
		}).Error; err != nil {
			return fmt.Errorf("failed to update balance for user %s: %w", userID, err)
		}

		result = repository.ApplyResult{Outcome: repository.ApplyUpdated, Balance: row.toDomain()}
		return nil
	})
	if err != nil {
		return repository.ApplyResult{}, fmt.Errorf("failed to apply delta for user %s: %w", userID, err)
	}
	return result, nil
}

func insertZeroBalance(db *gorm.DB, userID string) error {
	now := time.Now().UTC()
	row := balanceRow{UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create balance for user %s: %w", userID, err)
	}
	return nil
}
