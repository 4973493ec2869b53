// internal/service/transaction_service_test.go
package service

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/metrics"
	"balance-ledger/internal/repository"
	"balance-ledger/internal/util"
)

// TestProcess tests the Process method of TransactionService branch by branch.
func TestProcess(t *testing.T) {
	const userID = "user-1"

	credit := ProcessRequest{IdempotentKey: "c1", UserID: userID, Amount: "50", Type: "credit"}
	debit := ProcessRequest{IdempotentKey: "d1", UserID: userID, Amount: "25", Type: "debit"}

	t.Run("SuccessfulCredit", func(t *testing.T) {
		ctx := context.Background()
		mockBalanceRepo := new(MockBalanceRepository)
		mockTransactionRepo := new(MockTransactionRepository)
		m := metrics.New()
		service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, m, discardLogger())

		mockTransactionRepo.On("GetTransaction", ctx, "c1").Return(nil, false, nil).Once()
		mockBalanceRepo.On("GetBalance", ctx, userID).Return(balanceOf(userID, 0), true, nil).Once()
		mockBalanceRepo.On("ApplyDelta", ctx, userID, domain.Money(5000), "c1").
			Return(repository.ApplyResult{Outcome: repository.ApplyUpdated, Balance: balanceOf(userID, 5000)}, nil).Once()
		mockTransactionRepo.On("CreateTransactionIfAbsent", ctx, mock.MatchedBy(func(r *domain.TransactionRecord) bool {
			return r.IdempotentKey == "c1" && r.UserID == userID && r.Amount == 5000 &&
				r.Type == domain.TransactionTypeCredit && r.Status == domain.TransactionStatusCompleted
		})).Return(func(_ context.Context, r *domain.TransactionRecord) repository.CreateResult {
			return repository.CreateResult{Outcome: repository.Created, Record: r}
		}, nil).Once()

		res, err := service.Process(ctx, credit)

		require.NoError(t, err)
		assert.Equal(t, domain.Money(5000), res.NewBalance)
		assert.NotEmpty(t, res.TransactionID)
		assert.False(t, res.Replayed)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("credit", metrics.OutcomeApplied)))

		mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
	})

	t.Run("LazyInitializesUnknownUser", func(t *testing.T) {
		ctx := context.Background()
		mockBalanceRepo := new(MockBalanceRepository)
		mockTransactionRepo := new(MockTransactionRepository)
		service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, nil, discardLogger())

		mockTransactionRepo.On("GetTransaction", ctx, "c1").Return(nil, false, nil).Once()
		mockBalanceRepo.On("GetBalance", ctx, userID).Return(nil, false, nil).Once()
		mockBalanceRepo.On("CreateBalanceIfAbsent", ctx, userID).Return(balanceOf(userID, 0), nil).Once()
		mockBalanceRepo.On("ApplyDelta", ctx, userID, domain.Money(5000), "c1").
			Return(repository.ApplyResult{Outcome: repository.ApplyUpdated, Balance: balanceOf(userID, 5000)}, nil).Once()
		mockTransactionRepo.On("CreateTransactionIfAbsent", ctx, mock.AnythingOfType("*domain.TransactionRecord")).
			Return(repository.CreateResult{Outcome: repository.Created, Record: &domain.TransactionRecord{TransactionID: "tx-1"}}, nil).Once()

		res, err := service.Process(ctx, credit)

		require.NoError(t, err)
		assert.Equal(t, domain.Money(5000), res.NewBalance)
		assert.Equal(t, "tx-1", res.TransactionID)
		mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
	})

	t.Run("ReplayReturnsRecordedTransaction", func(t *testing.T) {
		ctx := context.Background()
		mockBalanceRepo := new(MockBalanceRepository)
		mockTransactionRepo := new(MockTransactionRepository)
		m := metrics.New()
		service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, m, discardLogger())

		recorded := &domain.TransactionRecord{IdempotentKey: "c1", TransactionID: "tx-original", UserID: userID, Amount: 5000, Type: domain.TransactionTypeCredit}
		mockTransactionRepo.On("GetTransaction", ctx, "c1").Return(recorded, true, nil).Once()
		mockBalanceRepo.On("GetBalance", ctx, userID).Return(balanceOf(userID, 2500), true, nil).Once()

		res, err := service.Process(ctx, credit)

		require.NoError(t, err)
		assert.Equal(t, "tx-original", res.TransactionID)
		assert.Equal(t, domain.Money(2500), res.NewBalance)
		assert.True(t, res.Replayed)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("credit", metrics.OutcomeReplayed)))

		mockBalanceRepo.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mockTransactionRepo.AssertNotCalled(t, "CreateTransactionIfAbsent", mock.Anything, mock.Anything)
		mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
	})

	t.Run("ReplayReadsRecordedUser", func(t *testing.T) {
		ctx := context.Background()
		mockBalanceRepo := new(MockBalanceRepository)
		mockTransactionRepo := new(MockTransactionRepository)
		service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, nil, discardLogger())

		recorded := &domain.TransactionRecord{IdempotentKey: "c1", TransactionID: "tx-original", UserID: "other-user", Amount: 5000, Type: domain.TransactionTypeCredit}
		mockTransactionRepo.On("GetTransaction", ctx, "c1").Return(recorded, true, nil).Once()
		mockBalanceRepo.On("GetBalance", ctx, "other-user").Return(balanceOf("other-user", 5000), true, nil).Once()

		res, err := service.Process(ctx, credit)

		require.NoError(t, err)
		assert.Equal(t, "tx-original", res.TransactionID)
		assert.Equal(t, domain.Money(5000), res.NewBalance)
		mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		ctx := context.Background()
		mockBalanceRepo := new(MockBalanceRepository)
		mockTransactionRepo := new(MockTransactionRepository)
		m := metrics.New()
		service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, m, discardLogger())

		mockTransactionRepo.On("GetTransaction", ctx, "d1").Return(nil, false, nil).Once()
		mockBalanceRepo.On("GetBalance", ctx, userID).Return(balanceOf(userID, 2000), true, nil).Once()

		res, err := service.Process(ctx, debit)

		assert.ErrorIs(t, err, util.ErrInsufficientFunds)
		assert.EqualError(t, err, "insufficient funds for user user-1")
		assert.Nil(t, res)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("debit", metrics.OutcomeInsufficientFunds)))

		mockBalanceRepo.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mockTransactionRepo.AssertNotCalled(t, "CreateTransactionIfAbsent", mock.Anything, mock.Anything)
		mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
	})

	t.Run("DebitOfWholeBalanceIsAllowed", func(t *testing.T) {
		ctx := context.Background()
		mockBalanceRepo := new(MockBalanceRepository)
		mockTransactionRepo := new(MockTransactionRepository)
		service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, nil, discardLogger())

		mockTransactionRepo.On("GetTransaction", ctx, "d1").Return(nil, false, nil).Once()
		mockBalanceRepo.On("GetBalance", ctx, userID).Return(balanceOf(userID, 2500), true, nil).Once()
		mockBalanceRepo.On("ApplyDelta", ctx, userID, domain.Money(-2500), "d1").
			Return(repository.ApplyResult{Outcome: repository.ApplyUpdated, Balance: balanceOf(userID, 0)}, nil).Once()
		mockTransactionRepo.On("CreateTransactionIfAbsent", ctx, mock.AnythingOfType("*domain.TransactionRecord")).
			Return(repository.CreateResult{Outcome: repository.Created, Record: &domain.TransactionRecord{TransactionID: "tx-d1"}}, nil).Once()

		res, err := service.Process(ctx, debit)

		require.NoError(t, err)
		assert.Equal(t, domain.Money(0), res.NewBalance)
		mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
	})

	t.Run("DuplicateApplicationIsRecovered", func(t *testing.T) {
		ctx := context.Background()
		mockBalanceRepo := new(MockBalanceRepository)
		mockTransactionRepo := new(MockTransactionRepository)
		m := metrics.New()
		service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, m, discardLogger())

		// The racing winner has not logged yet; it logs first and we adopt its record.
		mockTransactionRepo.On("GetTransaction", ctx, "c1").Return(nil, false, nil).Once()
		mockBalanceRepo.On("GetBalance", ctx, userID).Return(balanceOf(userID, 0), true, nil).Once()
		mockBalanceRepo.On("ApplyDelta", ctx, userID, domain.Money(5000), "c1").
			Return(repository.ApplyResult{Outcome: repository.ApplyDuplicate}, nil).Once()
		mockBalanceRepo.On("GetBalance", ctx, userID).Return(balanceOf(userID, 5000), true, nil).Once()
		mockTransactionRepo.On("CreateTransactionIfAbsent", ctx, mock.AnythingOfType("*domain.TransactionRecord")).
			Return(repository.CreateResult{Outcome: repository.AlreadyExists, Record: &domain.TransactionRecord{TransactionID: "tx-winner"}}, nil).Once()

		res, err := service.Process(ctx, credit)

		require.NoError(t, err)
		assert.Equal(t, domain.Money(5000), res.NewBalance)
		assert.Equal(t, "tx-winner", res.TransactionID)
		assert.True(t, res.Replayed)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.RaceRecoveries.WithLabelValues(metrics.GuardBalanceToken)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.RaceRecoveries.WithLabelValues(metrics.GuardLogKey)))
		mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
	})

	t.Run("DuplicateApplicationRepairsMissingLog", func(t *testing.T) {
		ctx := context.Background()
		mockBalanceRepo := new(MockBalanceRepository)
		mockTransactionRepo := new(MockTransactionRepository)
		service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, nil, discardLogger())

		mockTransactionRepo.On("GetTransaction", ctx, "c1").Return(nil, false, nil).Once()
		mockBalanceRepo.On("GetBalance", ctx, userID).Return(balanceOf(userID, 5000), true, nil).Twice()
		mockBalanceRepo.On("ApplyDelta", ctx, userID, domain.Money(5000), "c1").
			Return(repository.ApplyResult{Outcome: repository.ApplyDuplicate}, nil).Once()
		mockTransactionRepo.On("CreateTransactionIfAbsent", ctx, mock.AnythingOfType("*domain.TransactionRecord")).
			Return(func(_ context.Context, r *domain.TransactionRecord) repository.CreateResult {
				return repository.CreateResult{Outcome: repository.Created, Record: r}
			}, nil).Once()

		res, err := service.Process(ctx, credit)

		require.NoError(t, err)
		assert.Equal(t, domain.Money(5000), res.NewBalance)
		assert.NotEmpty(t, res.TransactionID)
		mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
	})

	t.Run("LogAlreadyExistsUsesWinnerID", func(t *testing.T) {
		ctx := context.Background()
		mockBalanceRepo := new(MockBalanceRepository)
		mockTransactionRepo := new(MockTransactionRepository)
		service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, nil, discardLogger())

		mockTransactionRepo.On("GetTransaction", ctx, "c1").Return(nil, false, nil).Once()
		mockBalanceRepo.On("GetBalance", ctx, userID).Return(balanceOf(userID, 0), true, nil).Once()
		mockBalanceRepo.On("ApplyDelta", ctx, userID, domain.Money(5000), "c1").
			Return(repository.ApplyResult{Outcome: repository.ApplyUpdated, Balance: balanceOf(userID, 5000)}, nil).Once()
		mockTransactionRepo.On("CreateTransactionIfAbsent", ctx, mock.AnythingOfType("*domain.TransactionRecord")).
			Return(repository.CreateResult{Outcome: repository.AlreadyExists, Record: &domain.TransactionRecord{TransactionID: "tx-winner"}}, nil).Once()

		res, err := service.Process(ctx, credit)

		require.NoError(t, err)
		assert.Equal(t, "tx-winner", res.TransactionID)
		assert.Equal(t, domain.Money(5000), res.NewBalance)
		mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
	})

	t.Run("OverdrawnByConcurrentDebit", func(t *testing.T) {
		ctx := context.Background()
		mockBalanceRepo := new(MockBalanceRepository)
		mockTransactionRepo := new(MockTransactionRepository)
		service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, nil, discardLogger())

		mockTransactionRepo.On("GetTransaction", ctx, "d1").Return(nil, false, nil).Once()
		mockBalanceRepo.On("GetBalance", ctx, userID).Return(balanceOf(userID, 2500), true, nil).Once()
		mockBalanceRepo.On("ApplyDelta", ctx, userID, domain.Money(-2500), "d1").
			Return(repository.ApplyResult{Outcome: repository.ApplyOverdrawn, Balance: balanceOf(userID, 1000)}, nil).Once()

		res, err := service.Process(ctx, debit)

		assert.ErrorIs(t, err, util.ErrInsufficientFunds)
		assert.Nil(t, res)
		mockTransactionRepo.AssertNotCalled(t, "CreateTransactionIfAbsent", mock.Anything, mock.Anything)
		mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
	})

	t.Run("StoreFailuresPropagate", func(t *testing.T) {
		storeErr := errors.New("connection reset")

		t.Run("LogLookup", func(t *testing.T) {
			ctx := context.Background()
			mockBalanceRepo := new(MockBalanceRepository)
			mockTransactionRepo := new(MockTransactionRepository)
			m := metrics.New()
			service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, m, discardLogger())

			mockTransactionRepo.On("GetTransaction", ctx, "c1").Return(nil, false, storeErr).Once()

			_, err := service.Process(ctx, credit)

			assert.ErrorIs(t, err, storeErr)
			assert.False(t, util.IsClientError(err))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("credit", metrics.OutcomeError)))
			mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
		})

		t.Run("ApplyDelta", func(t *testing.T) {
			ctx := context.Background()
			mockBalanceRepo := new(MockBalanceRepository)
			mockTransactionRepo := new(MockTransactionRepository)
			service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, nil, discardLogger())

			mockTransactionRepo.On("GetTransaction", ctx, "c1").Return(nil, false, nil).Once()
			mockBalanceRepo.On("GetBalance", ctx, userID).Return(balanceOf(userID, 0), true, nil).Once()
			mockBalanceRepo.On("ApplyDelta", ctx, userID, domain.Money(5000), "c1").Return(repository.ApplyResult{}, storeErr).Once()

			_, err := service.Process(ctx, credit)

			assert.ErrorIs(t, err, storeErr)
			assert.Contains(t, err.Error(), "failed to apply delta")
			mockTransactionRepo.AssertNotCalled(t, "CreateTransactionIfAbsent", mock.Anything, mock.Anything)
			mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
		})

		t.Run("LogCreate", func(t *testing.T) {
			ctx := context.Background()
			mockBalanceRepo := new(MockBalanceRepository)
			mockTransactionRepo := new(MockTransactionRepository)
			service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, nil, discardLogger())

			mockTransactionRepo.On("GetTransaction", ctx, "c1").Return(nil, false, nil).Once()
			mockBalanceRepo.On("GetBalance", ctx, userID).Return(balanceOf(userID, 0), true, nil).Once()
			mockBalanceRepo.On("ApplyDelta", ctx, userID, domain.Money(5000), "c1").
				Return(repository.ApplyResult{Outcome: repository.ApplyUpdated, Balance: balanceOf(userID, 5000)}, nil).Once()
			mockTransactionRepo.On("CreateTransactionIfAbsent", ctx, mock.AnythingOfType("*domain.TransactionRecord")).
				Return(repository.CreateResult{}, storeErr).Once()

			_, err := service.Process(ctx, credit)

			assert.ErrorIs(t, err, storeErr)
			assert.Contains(t, err.Error(), "failed to record transaction")
			mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
		})
	})
}

// TestProcessValidation checks that malformed requests never reach a store.
func TestProcessValidation(t *testing.T) {
	cases := []struct {
		name    string
		req     ProcessRequest
		wantErr error
	}{
		{"MissingKey", ProcessRequest{UserID: "u", Amount: "1", Type: "credit"}, util.ErrInvalidInput},
		{"MissingUser", ProcessRequest{IdempotentKey: "k", Amount: "1", Type: "credit"}, util.ErrInvalidInput},
		{"BlankAmount", ProcessRequest{IdempotentKey: "k", UserID: "u", Amount: "  ", Type: "credit"}, util.ErrInvalidInput},
		{"MissingType", ProcessRequest{IdempotentKey: "k", UserID: "u", Amount: "1"}, util.ErrInvalidInput},
		{"BadType", ProcessRequest{IdempotentKey: "k", UserID: "u", Amount: "1", Type: "refund"}, util.ErrInvalidInput},
		{"ZeroAmount", ProcessRequest{IdempotentKey: "k", UserID: "u", Amount: "0", Type: "credit"}, util.ErrInvalidAmount},
		{"NegativeAmount", ProcessRequest{IdempotentKey: "k", UserID: "u", Amount: "-5", Type: "debit"}, util.ErrInvalidAmount},
		{"ThreeDecimals", ProcessRequest{IdempotentKey: "k", UserID: "u", Amount: "1.005", Type: "credit"}, util.ErrInvalidAmount},
		{"NotANumber", ProcessRequest{IdempotentKey: "k", UserID: "u", Amount: "ten", Type: "credit"}, util.ErrInvalidAmount},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockBalanceRepo := new(MockBalanceRepository)
			mockTransactionRepo := new(MockTransactionRepository)
			service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, nil, discardLogger())

			res, err := service.Process(context.Background(), tc.req)

			assert.ErrorIs(t, err, tc.wantErr)
			assert.True(t, util.IsClientError(err))
			assert.Nil(t, res)
			mockBalanceRepo.AssertNotCalled(t, "GetBalance", mock.Anything, mock.Anything)
			mockTransactionRepo.AssertNotCalled(t, "GetTransaction", mock.Anything, mock.Anything)
		})
	}

	t.Run("MissingFieldsMessage", func(t *testing.T) {
		service := NewTransactionService(new(MockBalanceRepository), new(MockTransactionRepository), nil, discardLogger())
		_, err := service.Process(context.Background(), ProcessRequest{})
		assert.EqualError(t, err, "invalid input provided: missing required fields: idempotentKey, userId, amount, type")
	})
}

func TestGetTransaction(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		ctx := context.Background()
		mockTransactionRepo := new(MockTransactionRepository)
		service := NewTransactionService(new(MockBalanceRepository), mockTransactionRepo, nil, discardLogger())

		recorded := &domain.TransactionRecord{IdempotentKey: "c1", TransactionID: "tx-1"}
		mockTransactionRepo.On("GetTransaction", ctx, "c1").Return(recorded, true, nil).Once()

		got, err := service.GetTransaction(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, recorded, got)
		mockTransactionRepo.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		ctx := context.Background()
		mockTransactionRepo := new(MockTransactionRepository)
		service := NewTransactionService(new(MockBalanceRepository), mockTransactionRepo, nil, discardLogger())

		mockTransactionRepo.On("GetTransaction", ctx, "nope").Return(nil, false, nil).Once()

		_, err := service.GetTransaction(ctx, "nope")
		assert.ErrorIs(t, err, util.ErrNotFound)
	})

	t.Run("BlankKey", func(t *testing.T) {
		service := NewTransactionService(new(MockBalanceRepository), new(MockTransactionRepository), nil, discardLogger())
		_, err := service.GetTransaction(context.Background(), " ")
		assert.ErrorIs(t, err, util.ErrInvalidInput)
	})
}

// A balance already stamped with the request's key goes straight to ApplyDelta even when it looks drained.
func TestProcessStampedBalanceSkipsOverdraftCheck(t *testing.T) {
	ctx := context.Background()
	const userID = "user-1"
	mockBalanceRepo := new(MockBalanceRepository)
	mockTransactionRepo := new(MockTransactionRepository)
	m := metrics.New()
	service := NewTransactionService(mockBalanceRepo, mockTransactionRepo, m, discardLogger())

	stamped := balanceOf(userID, 0)
	token := "d1"
	stamped.LatestTransactionToken = &token

	mockTransactionRepo.On("GetTransaction", ctx, "d1").Return(nil, false, nil).Once()
	mockBalanceRepo.On("GetBalance", ctx, userID).Return(stamped, true, nil).Twice()
	mockBalanceRepo.On("ApplyDelta", ctx, userID, domain.Money(-2500), "d1").
		Return(repository.ApplyResult{Outcome: repository.ApplyDuplicate, Balance: stamped}, nil).Once()
	mockTransactionRepo.On("CreateTransactionIfAbsent", ctx, mock.AnythingOfType("*domain.TransactionRecord")).
		Return(repository.CreateResult{Outcome: repository.AlreadyExists, Record: &domain.TransactionRecord{TransactionID: "tx-winner"}}, nil).Once()

	res, err := service.Process(ctx, ProcessRequest{IdempotentKey: "d1", UserID: userID, Amount: "25", Type: "debit"})

	require.NoError(t, err)
	assert.Equal(t, "tx-winner", res.TransactionID)
	assert.Equal(t, domain.Money(0), res.NewBalance)
	assert.True(t, res.Replayed)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("debit", metrics.OutcomeInsufficientFunds)))
	mock.AssertExpectationsForObjects(t, mockBalanceRepo, mockTransactionRepo)
}
