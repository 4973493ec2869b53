// internal/repository/mysql/models.go
package mysql

import (
	"context"
	"time"

	"balance-ledger/internal/domain"
	"balance-ledger/pkg/mysql"
)

// balanceRow maps the balances table.
type balanceRow struct {
	UserID                 string       `gorm:"column:user_id;primaryKey;size:191"`
	Balance                domain.Money `gorm:"column:balance;type:decimal(20,2);not null"`
	LatestTransactionToken *string      `gorm:"column:latest_transaction_token;size:191"`
	CreatedAt              time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt              time.Time    `gorm:"column:updated_at;not null"`
}

func (*balanceRow) TableName() string {
	return "balances"
}

func (r *balanceRow) toDomain() *domain.Balance {
	return &domain.Balance{
		UserID:                 r.UserID,
		Balance:                r.Balance,
		LatestTransactionToken: r.LatestTransactionToken,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
}

// transactionRow maps the transactions table.
type transactionRow struct {
	IdempotentKey string                   `gorm:"column:idempotent_key;primaryKey;size:191"`
	TransactionID string                   `gorm:"column:transaction_id;size:36;uniqueIndex;not null"`
	UserID        string                   `gorm:"column:user_id;size:191;index;not null"`
	Amount        domain.Money             `gorm:"column:amount;type:decimal(20,2);not null"`
	Type          domain.TransactionType   `gorm:"column:type;size:16;not null"`
	Status        domain.TransactionStatus `gorm:"column:status;size:16;not null"`
	CreatedAt     time.Time                `gorm:"column:created_at;not null"`
}

func (*transactionRow) TableName() string {
	return "transactions"
}

func newTransactionRow(record *domain.TransactionRecord) *transactionRow {
	return &transactionRow{
		IdempotentKey: record.IdempotentKey,
		TransactionID: record.TransactionID,
		UserID:        record.UserID,
		Amount:        record.Amount,
		Type:          record.Type,
		Status:        record.Status,
		CreatedAt:     record.CreatedAt,
	}
}

func (r *transactionRow) toDomain() *domain.TransactionRecord {
	return &domain.TransactionRecord{
		IdempotentKey: r.IdempotentKey,
		TransactionID: r.TransactionID,
		UserID:        r.UserID,
		Amount:        r.Amount,
		Type:          r.Type,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
	}
}

// Migrate creates the balances and transactions tables.
func Migrate(ctx context.Context, client *mysql.Client) error {
	return client.AutoMigrate(ctx, &balanceRow{}, &transactionRow{})
}
