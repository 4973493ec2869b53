// internal/api/handler/ledger_test.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/service"
	"balance-ledger/internal/util"
)

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) Process(ctx context.Context, req service.ProcessRequest) (*service.ProcessResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ProcessResult), args.Error(1)
}

func (m *MockTransactionService) GetTransaction(ctx context.Context, idempotentKey string) (*domain.TransactionRecord, error) {
	args := m.Called(ctx, idempotentKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransactionRecord), args.Error(1)
}

type MockBalanceService struct {
	mock.Mock
}

func (m *MockBalanceService) GetCurrentBalance(ctx context.Context, userID string) (domain.Money, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Money), args.Error(1)
}

func newTestRouter(txSvc *MockTransactionService, balSvc *MockBalanceService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewLedgerHandler(txSvc, balSvc, logger)

	r := chi.NewRouter()
	r.Get("/health", Health("memory", logger))
	r.Get("/balance/{userId}", h.GetBalance)
	r.Post("/transaction", h.ProcessTransaction)
	r.Get("/transaction/{idempotentKey}", h.GetTransaction)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	}
	return rec, payload
}

func TestProcessTransaction(t *testing.T) {
	t.Run("success renders newBalance as a number", func(t *testing.T) {
		txSvc := new(MockTransactionService)
		txSvc.On("Process", mock.Anything, service.ProcessRequest{
			IdempotentKey: "k-1", UserID: "1", Amount: "50.5", Type: "credit",
		}).Return(&service.ProcessResult{NewBalance: 15050, TransactionID: "tx-1"}, nil)

		rec, body := doRequest(t, newTestRouter(txSvc, new(MockBalanceService)), http.MethodPost, "/transaction",
			`{"idempotentKey":"k-1","userId":"1","amount":50.5,"type":"credit"}`, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, 150.5, body["newBalance"])
		assert.Equal(t, "tx-1", body["transactionId"])
		txSvc.AssertExpectations(t)
	})

	t.Run("string amount and header key", func(t *testing.T) {
		txSvc := new(MockTransactionService)
		txSvc.On("Process", mock.Anything, service.ProcessRequest{
			IdempotentKey: "hdr-key", UserID: "2", Amount: "10", Type: "debit",
		}).Return(&service.ProcessResult{NewBalance: 4000, TransactionID: "tx-2"}, nil)

		rec, body := doRequest(t, newTestRouter(txSvc, new(MockBalanceService)), http.MethodPost, "/transaction",
			`{"userId":"2","amount":"10","type":"debit"}`, map[string]string{IdempotencyKeyHeader: "hdr-key"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 40.0, body["newBalance"])
		txSvc.AssertExpectations(t)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		txSvc := new(MockTransactionService)
		rec, body := doRequest(t, newTestRouter(txSvc, new(MockBalanceService)), http.MethodPost, "/transaction", `{"userId":`, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Malformed JSON body", body["error"])
		txSvc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
	})

	errorCases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing fields",
			err:        fmt.Errorf("%w: %w", util.ErrInvalidInput, errors.New("missing required fields: idempotentKey, userId, amount, type")),
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing required fields: idempotentKey, userId, amount, type",
		},
		{
			name:       "invalid amount",
			err:        fmt.Errorf("%w: %s", util.ErrInvalidAmount, "abc"),
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid amount: abc",
		},
		{
			name:       "insufficient funds",
			err:        fmt.Errorf("%w for user %s", util.ErrInsufficientFunds, "1"),
			wantStatus: http.StatusBadRequest,
			wantError:  "Insufficient funds for user 1",
		},
		{
			name:       "store failure is hidden",
			err:        errors.New("dynamodb: connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal server error",
		},
	}

	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			txSvc := new(MockTransactionService)
			txSvc.On("Process", mock.Anything, mock.Anything).Return(nil, tc.err)

			rec, body := doRequest(t, newTestRouter(txSvc, new(MockBalanceService)), http.MethodPost, "/transaction",
				`{"idempotentKey":"k","userId":"1","amount":"abc","type":"debit"}`, nil)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.wantError, body["error"])
		})
	}
}

func TestGetBalance(t *testing.T) {
	balSvc := new(MockBalanceService)
	balSvc.On("GetCurrentBalance", mock.Anything, "3").Return(domain.Money(20000), nil)
	balSvc.On("GetCurrentBalance", mock.Anything, "").Return(domain.Money(0), fmt.Errorf("%w: user id is required", util.ErrInvalidInput))
	router := newTestRouter(new(MockTransactionService), balSvc)

	rec, body := doRequest(t, router, http.MethodGet, "/balance/3", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200.0, body["balance"])

	rec, body = doRequest(t, router, http.MethodGet, "/balance/%20", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User id is required", body["error"])
}

func TestGetTransaction(t *testing.T) {
	record := domain.NewTransactionRecord("k-9", "1", 2500, domain.TransactionTypeDebit)
	txSvc := new(MockTransactionService)
	txSvc.On("GetTransaction", mock.Anything, "k-9").Return(record, nil)
	txSvc.On("GetTransaction", mock.Anything, "missing").Return(nil, util.ErrNotFound)
	router := newTestRouter(txSvc, new(MockBalanceService))

	rec, body := doRequest(t, router, http.MethodGet, "/transaction/k-9", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, record.TransactionID, body["transactionId"])
	assert.Equal(t, 25.0, body["amount"])
	assert.Equal(t, "debit", body["type"])

	rec, body = doRequest(t, router, http.MethodGet, "/transaction/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Resource not found", body["error"])
}

func TestHealth(t *testing.T) {
	rec, body := doRequest(t, newTestRouter(new(MockTransactionService), new(MockBalanceService)), http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, "memory", body["backend"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestAmountText(t *testing.T) {
	tests := map[string]string{
		``:         "",
		`null`:     "",
		`50`:       "50",
		`50.50`:    "50.50",
		`" 12.5 "`: "12.5",
		`-3`:       "-3",
	}
	for raw, want := range tests {
		assert.Equal(t, want, amountText(json.RawMessage(raw)), "raw %q", raw)
	}
}

func TestRespondWithErrorStatus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		err  error
		want int
	}{
		{util.ErrInvalidInput, http.StatusBadRequest},
		{util.ErrInvalidAmount, http.StatusBadRequest},
		{util.ErrInsufficientFunds, http.StatusBadRequest},
		{fmt.Errorf("%w for user 7", util.ErrInsufficientFunds), http.StatusBadRequest},
		{util.ErrNotFound, http.StatusNotFound},
		{errors.New("timeout talking to the store"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondWithError(logger, rec, tt.err)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, util.IsClientError(tt.err), rec.Code == http.StatusBadRequest)
		})
	}
}
