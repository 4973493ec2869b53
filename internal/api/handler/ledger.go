// internal/api/handler/ledger.go
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"balance-ledger/internal/service"
	"balance-ledger/internal/util"
)

// IdempotencyKeyHeader carries the key when the body omits idempotentKey.
const IdempotencyKeyHeader = "Idempotency-Key"

// LedgerHandler handles the balance and transaction endpoints.
type LedgerHandler struct {
	transactions service.TransactionService
	balances     service.BalanceService
	logger       *slog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(transactions service.TransactionService, balances service.BalanceService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		transactions: transactions,
		balances:     balances,
		logger:       logger,
	}
}

// GetBalance returns the user's current balance, materializing a zero balance for unseen users.
// GET /balance/{userId}
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userId"))

	balance, err := h.balances.GetCurrentBalance(r.Context(), userID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, BalanceResponse{Balance: balance})
}

// ProcessTransaction applies a credit or debit exactly once per idempotency key.
// POST /transaction
func (h *LedgerHandler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, fmt.Errorf("%w: malformed JSON body", util.ErrInvalidInput))
		return
	}
	if strings.TrimSpace(req.IdempotentKey) == "" {
		req.IdempotentKey = r.Header.Get(IdempotencyKeyHeader)
	}

	result, err := h.transactions.Process(r.Context(), service.ProcessRequest{
		IdempotentKey: req.IdempotentKey,
		UserID:        req.UserID,
		Amount:        amountText(req.Amount),
		Type:          req.Type,
	})
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, TransactionResponse{
		Success:       true,
		NewBalance:    result.NewBalance,
		TransactionID: result.TransactionID,
	})
}

// GetTransaction returns the record stored under an idempotency key.
// GET /transaction/{idempotentKey}
func (h *LedgerHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "idempotentKey")

	record, err := h.transactions.GetTransaction(r.Context(), key)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	respondWithJSON(h.logger, w, http.StatusOK, record)
}
