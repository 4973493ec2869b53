// internal/service/transaction_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/metrics"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/util"
)

// ProcessRequest is a transaction as submitted by a caller. Amount and Type are validated by Process.
type ProcessRequest struct {
	IdempotentKey string
	UserID        string
	Amount        string
	Type          string
}

// ProcessResult is the outcome every submission of the same idempotency key converges on.
type ProcessResult struct {
	NewBalance    domain.Money
	TransactionID string
	// Replayed is true when this call did not apply the delta itself.
	Replayed bool
}

// TransactionService applies credits and debits exactly once per idempotency key.
type TransactionService interface {
	// Process validates, deduplicates and applies a transaction.
	// Errors wrap util.ErrInvalidInput, util.ErrInvalidAmount or util.ErrInsufficientFunds for caller mistakes;
	// anything else is an infrastructure failure.
	Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error)
	// GetTransaction returns the recorded outcome of an idempotency key, or util.ErrNotFound.
	GetTransaction(ctx context.Context, idempotentKey string) (*domain.TransactionRecord, error)
}

// transactionService holds no locks and no shared state: every guard is a conditional write in a store.
type transactionService struct {
	balanceRepo     repository.BalanceRepository
	transactionRepo repository.TransactionRepository
	metrics         *metrics.Metrics
	logger          *slog.Logger
}

// NewTransactionService creates a new instance of TransactionService.
func NewTransactionService(
	balanceRepo repository.BalanceRepository,
	transactionRepo repository.TransactionRepository,
	m *metrics.Metrics,
	logger *slog.Logger,
) TransactionService {
	return &transactionService{
		balanceRepo:     balanceRepo,
		transactionRepo: transactionRepo,
		metrics:         m,
		logger:          logger,
	}
}

func (s *transactionService) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	amount, txType, err := validateRequest(req)
	if err != nil {
		s.metrics.ObserveTransaction(req.Type, metrics.OutcomeInvalid)
		return nil, err
	}

	result, outcome, err := s.process(ctx, req, amount, txType)
	if err != nil {
		if util.IsError(err, util.ErrInsufficientFunds) {
			s.metrics.ObserveTransaction(req.Type, metrics.OutcomeInsufficientFunds)
			s.logger.Info("Transaction rejected", "idempotent_key", req.IdempotentKey, "user_id", req.UserID, "reason", "insufficient funds")
			return nil, err
		}
		s.metrics.ObserveTransaction(req.Type, metrics.OutcomeError)
		s.logger.Error("Transaction failed", "idempotent_key", req.IdempotentKey, "user_id", req.UserID, "error", err)
		return nil, err
	}

	s.metrics.ObserveTransaction(req.Type, outcome)
	s.logger.Info("Transaction processed",
		"idempotent_key", req.IdempotentKey,
		"user_id", req.UserID,
		"type", txType,
		"amount", amount.String(),
		"new_balance", result.NewBalance.String(),
		"transaction_id", result.TransactionID,
		"replayed", result.Replayed,
	)
	return result, nil
}

func (s *transactionService) process(ctx context.Context, req ProcessRequest, amount domain.Money, txType domain.TransactionType) (*ProcessResult, string, error) {
	// Replay: the log is the authoritative record of what has been applied.
	existing, found, err := s.transactionRepo.GetTransaction(ctx, req.IdempotentKey)
	if err != nil {
		return nil, "", fmt.Errorf("process: failed to look up idempotency key %s: %w", req.IdempotentKey, err)
	}
	if found {
		result, err := s.replay(ctx, req, amount, txType, existing)
		return result, metrics.OutcomeReplayed, err
	}

	current, err := resolveBalance(ctx, s.balanceRepo, s.metrics, s.logger, req.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("process: %w", err)
	}

	// A balance already stamped with this key means the delta landed but its log record did not
	// (a concurrent caller still writing it, or a lost write). ApplyDelta reports the duplicate and
	// the log create below reconciles, so the overdraft check must not judge the drained balance.
	alreadyApplied := current.AppliedToken(req.IdempotentKey)
	if alreadyApplied {
		s.logger.Debug("Balance already carries idempotency key", "idempotent_key", req.IdempotentKey, "user_id", req.UserID)
	}

	if !alreadyApplied && txType == domain.TransactionTypeDebit && current.Balance < amount {
		return nil, "", insufficientFunds(req.UserID)
	}

	applied, err := s.balanceRepo.ApplyDelta(ctx, req.UserID, txType.Signed(amount), req.IdempotentKey)
	if err != nil {
		return nil, "", fmt.Errorf("process: failed to apply delta for user %s: %w", req.UserID, err)
	}

	var newBalance domain.Money
	switch applied.Outcome {
	case repository.ApplyUpdated:
		newBalance = applied.Balance.Balance
	case repository.ApplyDuplicate:
		// A concurrent call with the same key won the balance guard after our log lookup.
		s.metrics.ObserveRaceRecovery(metrics.GuardBalanceToken)
		latest, err := resolveBalance(ctx, s.balanceRepo, s.metrics, s.logger, req.UserID)
		if err != nil {
			return nil, "", fmt.Errorf("process: %w", err)
		}
		newBalance = latest.Balance
	case repository.ApplyOverdrawn:
		// A concurrent debit under another key drained the balance after our overdraft check.
		return nil, "", insufficientFunds(req.UserID)
	default:
		return nil, "", fmt.Errorf("process: unexpected apply outcome %s", applied.Outcome)
	}

	// The log write also runs after a duplicate apply, so a winner that died before logging is repaired
	// and every racer converges on one transaction ID.
	record := domain.NewTransactionRecord(req.IdempotentKey, req.UserID, amount, txType)
	created, err := s.transactionRepo.CreateTransactionIfAbsent(ctx, record)
	if err != nil {
		return nil, "", fmt.Errorf("process: failed to record transaction %s: %w", req.IdempotentKey, err)
	}
	if created.Outcome == repository.AlreadyExists {
		s.metrics.ObserveRaceRecovery(metrics.GuardLogKey)
	}

	replayed := applied.Outcome == repository.ApplyDuplicate
	outcome := metrics.OutcomeApplied
	if replayed {
		outcome = metrics.OutcomeReplayed
	}
	return &ProcessResult{
		NewBalance:    newBalance,
		TransactionID: created.Record.TransactionID,
		Replayed:      replayed,
	}, outcome, nil
}

// replay answers a known idempotency key from recorded state without touching the balance.
func (s *transactionService) replay(ctx context.Context, req ProcessRequest, amount domain.Money, txType domain.TransactionType, existing *domain.TransactionRecord) (*ProcessResult, error) {
	if existing.UserID != req.UserID || existing.Amount != amount || existing.Type != txType {
		s.logger.Warn("Idempotency key reused with a different payload",
			"idempotent_key", req.IdempotentKey,
			"recorded_user_id", existing.UserID,
			"user_id", req.UserID,
			"recorded_amount", existing.Amount.String(),
			"amount", amount.String(),
		)
	}

	balance, err := resolveBalance(ctx, s.balanceRepo, s.metrics, s.logger, existing.UserID)
	if err != nil {
		return nil, fmt.Errorf("process: replay of %s: %w", req.IdempotentKey, err)
	}
	return &ProcessResult{
		NewBalance:    balance.Balance,
		TransactionID: existing.TransactionID,
		Replayed:      true,
	}, nil
}

func (s *transactionService) GetTransaction(ctx context.Context, idempotentKey string) (*domain.TransactionRecord, error) {
	if strings.TrimSpace(idempotentKey) == "" {
		return nil, fmt.Errorf("%w: idempotent key is required", util.ErrInvalidInput)
	}
	record, found, err := s.transactionRepo.GetTransaction(ctx, idempotentKey)
	if err != nil {
		return nil, fmt.Errorf("get transaction: failed to look up %s: %w", idempotentKey, err)
	}
	if !found {
		return nil, util.ErrNotFound
	}
	return record, nil
}

var errMissingFields = errors.New("missing required fields: idempotentKey, userId, amount, type")

// validateRequest performs all checks that need no store access.
func validateRequest(req ProcessRequest) (domain.Money, domain.TransactionType, error) {
	if isBlank(req.IdempotentKey) || isBlank(req.UserID) || isBlank(req.Amount) || isBlank(req.Type) {
		return 0, "", fmt.Errorf("%w: %w", util.ErrInvalidInput, errMissingFields)
	}

	txType, ok := domain.ParseTransactionType(req.Type)
	if !ok {
		return 0, "", fmt.Errorf(`%w: type must be either "credit" or "debit"`, util.ErrInvalidInput)
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return 0, "", err
	}
	return amount, txType, nil
}

func insufficientFunds(userID string) error {
	return fmt.Errorf("%w for user %s", util.ErrInsufficientFunds, userID)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
