// internal/domain/balance.go
package domain

import "time"

// Balance is the current balance of one user.
// LatestTransactionToken holds the idempotency key of the last transaction applied to it and
// guards the conditional update; it is not a history.
type Balance struct {
	UserID                 string    `db:"user_id" json:"userId" dynamodbav:"userId"`
	Balance                Money     `db:"balance" json:"balance" dynamodbav:"balance"` // minor units in DynamoDB, NUMERIC(20, 2) in SQL
	LatestTransactionToken *string   `db:"latest_transaction_token" json:"latestTransactionToken,omitempty" dynamodbav:"latestTransactionToken,omitempty"`
	CreatedAt              time.Time `db:"created_at" json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt              time.Time `db:"updated_at" json:"updatedAt" dynamodbav:"updatedAt"`
}

// NewBalance creates a zero balance for a user seen for the first time.
func NewBalance(userID string) *Balance {
	now := time.Now().UTC()
	return &Balance{
		UserID:    userID,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppliedToken reports whether token was the last transaction applied to this balance.
func (b *Balance) AppliedToken(token string) bool {
	return b.LatestTransactionToken != nil && *b.LatestTransactionToken == token
}
