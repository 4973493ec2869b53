// internal/api/handler/response.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"balance-ledger/internal/domain"
	"balance-ledger/internal/util" // For custom errors
)

// TransactionRequest is the body of POST /transaction.
// Amount accepts a JSON number or a decimal string.
type TransactionRequest struct {
	IdempotentKey string          `json:"idempotentKey"`
	UserID        string          `json:"userId"`
	Amount        json.RawMessage `json:"amount"`
	Type          string          `json:"type"`
}

// TransactionResponse is returned for a successful (or replayed) transaction.
type TransactionResponse struct {
	Success       bool         `json:"success"`
	NewBalance    domain.Money `json:"newBalance"`
	TransactionID string       `json:"transactionId"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// BalanceResponse is the body of GET /balance/{userId}.
type BalanceResponse struct {
	Balance domain.Money `json:"balance"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Backend   string `json:"backend"`
}

func respondWithJSON(logger *slog.Logger, w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps service errors to a status code and a client-safe message.
func respondWithError(logger *slog.Logger, w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsClientError(err):
		statusCode = http.StatusBadRequest
		// The invalid-input sentinel only classifies; its own text adds nothing for the caller.
		message = clientMessage(strings.TrimPrefix(err.Error(), util.ErrInvalidInput.Error()+": "))
	case util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	default:
		logger.Error("Unhandled service error", "error", err)
	}

	respondWithJSON(logger, w, statusCode, ErrorResponse{Success: false, Error: message})
}

// clientMessage capitalizes the first letter: "insufficient funds for user 1" -> "Insufficient funds for user 1".
func clientMessage(msg string) string {
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}

// amountText turns the raw JSON amount into the text the service parses.
func amountText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
