package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"payalert/internal/domain/transaction"
	"payalert/internal/shared/logger"
	"payalert/internal/shared/middleware"
)

// TransactionService is the viewer-facing side of the transaction store.
type TransactionService interface {
	ListRecent(ctx context.Context, companyID string, window time.Duration) ([]*transaction.Transaction, error)
	Annotate(ctx context.Context, companyID, id, description string) (*transaction.Transaction, error)
}

type TransactionHandler struct {
	service TransactionService
}

func NewTransactionHandler(service TransactionService) *TransactionHandler {
	return &TransactionHandler{service: service}
}

type TransactionResponse struct {
	ID              string    `json:"id"`
	CompanyID       string    `json:"company_id"`
	Amount          float64   `json:"amount"`
	SenderName      string    `json:"sender_name"`
	BankSource      string    `json:"bank_source"`
	Status          string    `json:"status"`
	ItemDescription *string   `json:"item_description"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type AnnotateTransactionRequest struct {
	ItemDescription *string `json:"item_description"`
}

func toTransactionResponse(tx *transaction.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              tx.ID,
		CompanyID:       tx.CompanyID,
		Amount:          tx.Amount.InexactFloat64(),
		SenderName:      tx.SenderName,
		BankSource:      tx.BankSource,
		Status:          string(tx.Status),
		ItemDescription: tx.ItemDescription,
		CreatedAt:       tx.CreatedAt,
		UpdatedAt:       tx.UpdatedAt,
	}
}

// HandleListTransactions handles GET /api/transactions/
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	c, ok := middleware.CompanyFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var window time.Duration
	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		hours, err := strconv.Atoi(hoursStr)
		if err != nil || hours <= 0 {
			writeError(w, r, http.StatusBadRequest, "hours must be a positive integer")
			return
		}
		window = time.Duration(hours) * time.Hour
	}

	txs, err := h.service.ListRecent(r.Context(), c.ID, window)
	if err != nil {
		logger.FromContext(r.Context()).Error().Err(err).Msg("failed to list transactions")
		writeError(w, r, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	response := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		response = append(response, toTransactionResponse(tx))
	}
	writeJSON(w, r, http.StatusOK, response)
}

// HandleAnnotateTransaction handles PATCH /api/transactions/{id}
func (h *TransactionHandler) HandleAnnotateTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	c, ok := middleware.CompanyFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "transaction id is required")
		return
	}

	var req AnnotateTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// null clears the description
	var description string
	if req.ItemDescription != nil {
		description = *req.ItemDescription
	}

	tx, err := h.service.Annotate(r.Context(), c.ID, id, description)
	switch {
	case errors.Is(err, transaction.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "transaction not found")
		return
	case errors.Is(err, transaction.ErrDescriptionTooLong):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logger.FromContext(r.Context()).Error().Err(err).Str("transaction_id", id).Msg("failed to annotate transaction")
		writeError(w, r, http.StatusInternalServerError, "failed to update transaction")
		return
	}

	writeJSON(w, r, http.StatusOK, toTransactionResponse(tx))
}
