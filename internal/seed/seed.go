// internal/seed/seed.go
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/service"
)

// KeyPrefix prefixes the idempotency key of every seed credit.
const KeyPrefix = "seed-"

// User is a demo account and the amount it is credited with.
type User struct {
	UserID         string
	InitialBalance string
}

// DemoUsers are the accounts created by provisioning.
var DemoUsers = []User{
	{UserID: "1", InitialBalance: "100"},
	{UserID: "2", InitialBalance: "50"},
	{UserID: "3", InitialBalance: "200"},
}

// Seed credits each user through the transaction service under the key seed-<userId>,
// so a rerun replays instead of crediting twice.
func Seed(ctx context.Context, transactions service.TransactionService, users []User, logger *slog.Logger) error {
	logger.Info("Seeding initial data", "users", len(users))

	for _, u := range users {
		result, err := transactions.Process(ctx, service.ProcessRequest{
			IdempotentKey: KeyPrefix + u.UserID,
			UserID:        u.UserID,
			Amount:        u.InitialBalance,
			Type:          string(domain.TransactionTypeCredit),
		})
		if err != nil {
			return fmt.Errorf("seed: failed to credit user %s: %w", u.UserID, err)
		}

		if result.Replayed {
			logger.Info("Seed user already exists", "user_id", u.UserID, "balance", result.NewBalance.String())
			continue
		}
		logger.Info("Seed user created", "user_id", u.UserID, "balance", result.NewBalance.String())
	}

	logger.Info("Data seeding completed")
	return nil
}
