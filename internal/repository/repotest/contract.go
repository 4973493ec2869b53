// internal/repository/repotest/contract.go

// Package repotest holds behaviour tests shared by every store backend.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/repository"
)

// RunBalanceRepository exercises the BalanceRepository contract against repo.
// User IDs are randomized so the suite can run against a shared database.
func RunBalanceRepository(t *testing.T, repo repository.BalanceRepository) {
	ctx := context.Background()

	t.Run("GetUnknownUser", func(t *testing.T) {
		b, found, err := repo.GetBalance(ctx, newID("unknown"))
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, b)
	})

	t.Run("CreateIfAbsentIsIdempotent", func(t *testing.T) {
		userID := newID("create")
		first, err := repo.CreateBalanceIfAbsent(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, userID, first.UserID)
		assert.Equal(t, domain.Money(0), first.Balance)

		_, err = repo.ApplyDelta(ctx, userID, 1000, "k1")
		require.NoError(t, err)

		second, err := repo.CreateBalanceIfAbsent(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, domain.Money(1000), second.Balance, "existing record must be returned untouched")

		got, found, err := repo.GetBalance(ctx, userID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, domain.Money(1000), got.Balance)
	})

	t.Run("ConcurrentCreateIfAbsent", func(t *testing.T) {
		userID := newID("race-create")
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.CreateBalanceIfAbsent(ctx, userID)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		got, found, err := repo.GetBalance(ctx, userID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, domain.Money(0), got.Balance)
	})

	t.Run("ApplyDeltaStampsToken", func(t *testing.T) {
		userID := newID("apply")
		_, err := repo.CreateBalanceIfAbsent(ctx, userID)
		require.NoError(t, err)

		res, err := repo.ApplyDelta(ctx, userID, 5000, "c1")
		require.NoError(t, err)
		assert.Equal(t, repository.ApplyUpdated, res.Outcome)
		require.NotNil(t, res.Balance)
		assert.Equal(t, domain.Money(5000), res.Balance.Balance)
		assert.True(t, res.Balance.AppliedToken("c1"))

		res, err = repo.ApplyDelta(ctx, userID, -2500, "d1")
		require.NoError(t, err)
		assert.Equal(t, repository.ApplyUpdated, res.Outcome)
		assert.Equal(t, domain.Money(2500), res.Balance.Balance)
	})

	t.Run("ApplyDeltaRejectsSameToken", func(t *testing.T) {
		userID := newID("dup")
		res, err := repo.ApplyDelta(ctx, userID, 700, "t1")
		require.NoError(t, err)
		require.Equal(t, repository.ApplyUpdated, res.Outcome, "absent balance counts as zero")

		res, err = repo.ApplyDelta(ctx, userID, 700, "t1")
		require.NoError(t, err)
		assert.Equal(t, repository.ApplyDuplicate, res.Outcome)

		got, _, err := repo.GetBalance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, domain.Money(700), got.Balance)
	})

	t.Run("ApplyDeltaRefusesOverdraft", func(t *testing.T) {
		userID := newID("overdraft")
		_, err := repo.ApplyDelta(ctx, userID, 1000, "c1")
		require.NoError(t, err)

		res, err := repo.ApplyDelta(ctx, userID, -1001, "d1")
		require.NoError(t, err)
		assert.Equal(t, repository.ApplyOverdrawn, res.Outcome)

		res, err = repo.ApplyDelta(ctx, userID, -1000, "d2")
		require.NoError(t, err)
		assert.Equal(t, repository.ApplyUpdated, res.Outcome)
		assert.Equal(t, domain.Money(0), res.Balance.Balance)
	})

	t.Run("ConcurrentSameToken", func(t *testing.T) {
		userID := newID("race-apply")
		_, err := repo.CreateBalanceIfAbsent(ctx, userID)
		require.NoError(t, err)

		const k = 10
		outcomes := make(chan repository.ApplyOutcome, k)
		var wg sync.WaitGroup
		for i := 0; i < k; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := repo.ApplyDelta(ctx, userID, 100, "same")
				if assert.NoError(t, err) {
					outcomes <- res.Outcome
				}
			}()
		}
		wg.Wait()
		close(outcomes)

		updated := 0
		for o := range outcomes {
			if o == repository.ApplyUpdated {
				updated++
			} else {
				assert.Equal(t, repository.ApplyDuplicate, o)
			}
		}
		assert.Equal(t, 1, updated)

		got, _, err := repo.GetBalance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, domain.Money(100), got.Balance)
	})
}

// RunTransactionRepository exercises the TransactionRepository contract against repo.
func RunTransactionRepository(t *testing.T, repo repository.TransactionRepository) {
	ctx := context.Background()

	t.Run("GetUnknownKey", func(t *testing.T) {
		rec, found, err := repo.GetTransaction(ctx, newID("missing"))
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, rec)
	})

	t.Run("FirstWriterWins", func(t *testing.T) {
		key := newID("key")
		first := domain.NewTransactionRecord(key, "u1", 5000, domain.TransactionTypeCredit)
		res, err := repo.CreateTransactionIfAbsent(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, repository.Created, res.Outcome)
		assert.Equal(t, first.TransactionID, res.Record.TransactionID)

		second := domain.NewTransactionRecord(key, "u1", 5000, domain.TransactionTypeCredit)
		res, err = repo.CreateTransactionIfAbsent(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, repository.AlreadyExists, res.Outcome)
		assert.Equal(t, first.TransactionID, res.Record.TransactionID)

		got, found, err := repo.GetTransaction(ctx, key)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, first.TransactionID, got.TransactionID)
		assert.Equal(t, domain.Money(5000), got.Amount)
		assert.Equal(t, domain.TransactionTypeCredit, got.Type)
		assert.Equal(t, domain.TransactionStatusCompleted, got.Status)
	})

	t.Run("ConcurrentCreate", func(t *testing.T) {
		key := newID("race")
		const k = 10
		ids := make(chan string, k)
		var wg sync.WaitGroup
		for i := 0; i < k; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := repo.CreateTransactionIfAbsent(ctx, domain.NewTransactionRecord(key, "u1", 100, domain.TransactionTypeDebit))
				if assert.NoError(t, err) {
					ids <- res.Record.TransactionID
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := map[string]struct{}{}
		for id := range ids {
			seen[id] = struct{}{}
		}
		assert.Len(t, seen, 1, "all callers must observe the winner's transaction ID")
	})
}

func newID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
