// internal/service/balance_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/metrics"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/util"
)

// BalanceService is the read path over the balance store.
type BalanceService interface {
	// GetCurrentBalance returns the user's balance, creating a zero balance for users never seen before.
	GetCurrentBalance(ctx context.Context, userID string) (domain.Money, error)
}

type balanceService struct {
	balanceRepo repository.BalanceRepository
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewBalanceService creates a new instance of BalanceService.
func NewBalanceService(balanceRepo repository.BalanceRepository, m *metrics.Metrics, logger *slog.Logger) BalanceService {
	return &balanceService{
		balanceRepo: balanceRepo,
		metrics:     m,
		logger:      logger,
	}
}

func (s *balanceService) GetCurrentBalance(ctx context.Context, userID string) (domain.Money, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("%w: user ID is required", util.ErrInvalidInput)
	}

	balance, err := resolveBalance(ctx, s.balanceRepo, s.metrics, s.logger, userID)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance.Balance, nil
}

// resolveBalance reads a balance and lazily materializes a zero record when the user is unknown.
// Concurrent first touches are safe: CreateBalanceIfAbsent returns the winner's record to everyone else.
func resolveBalance(ctx context.Context, repo repository.BalanceRepository, m *metrics.Metrics, logger *slog.Logger, userID string) (*domain.Balance, error) {
	balance, found, err := repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance for user %s: %w", userID, err)
	}
	if found {
		return balance, nil
	}

	balance, err = repo.CreateBalanceIfAbsent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize balance for user %s: %w", userID, err)
	}
	m.ObserveBalanceInitialized()
	logger.Info("Initialized balance for new user", "user_id", userID)
	return balance, nil
}
