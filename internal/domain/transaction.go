// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType defines the direction of a transaction.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// ParseTransactionType validates a caller-supplied type.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch t := TransactionType(s); t {
	case TransactionTypeCredit, TransactionTypeDebit:
		return t, true
	default:
		return "", false
	}
}

// Signed returns the balance delta for amount: positive for credits, negative for debits.
func (t TransactionType) Signed(amount Money) Money {
	if t == TransactionTypeDebit {
		return amount.Neg()
	}
	return amount
}

// TransactionStatus defines the status of a transaction record.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed" // never persisted
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed:
		return true
	}
	return false
}

// TransactionRecord is the outcome of one accepted idempotency key.
// It is written once and never updated.
type TransactionRecord struct {
	IdempotentKey string            `db:"idempotent_key" json:"idempotentKey" dynamodbav:"idempotentKey"` // Primary key
	TransactionID string            `db:"transaction_id" json:"transactionId" dynamodbav:"transactionId"`
	UserID        string            `db:"user_id" json:"userId" dynamodbav:"userId"`
	Amount        Money             `db:"amount" json:"amount" dynamodbav:"amount"`
	Type          TransactionType   `db:"type" json:"type" dynamodbav:"type"`
	Status        TransactionStatus `db:"status" json:"status" dynamodbav:"status"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt" dynamodbav:"createdAt"`
}

// NewTransactionRecord creates a completed record with a fresh transaction ID.
func NewTransactionRecord(idempotentKey, userID string, amount Money, txType TransactionType) *TransactionRecord {
	return &TransactionRecord{
		IdempotentKey: idempotentKey,
		TransactionID: uuid.NewString(),
		UserID:        userID,
		Amount:        amount,
		Type:          txType,
		Status:        TransactionStatusCompleted,
		CreatedAt:     time.Now().UTC(),
	}
}
