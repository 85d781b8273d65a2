package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/middleware"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

type moneyRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency model.Currency  `json:"currency"`
}

type withdrawalRequest struct {
	Amount             decimal.Decimal `json:"amount"`
	Currency           model.Currency  `json:"currency"`
	WithdrawalPassword string          `json:"withdrawal_password"`
}

// RequestDeposit создаёт заявку на пополнение счёта.
func (h *Handler) RequestDeposit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req moneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !req.Currency.IsValid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.RequestDeposit(r.Context(), accountID, req.Amount, req.Currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]int64{"transaction_id": id})
}

// RequestWithdrawal создаёт заявку на вывод средств.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !req.Currency.IsValid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.RequestWithdrawal(r.Context(), accountID, req.Amount, req.Currency, req.WithdrawalPassword)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]int64{"transaction_id": id})
}

type transactionResponse struct {
	ID          int64                   `json:"id"`
	Reference   string                  `json:"reference"`
	Kind        model.TransactionKind   `json:"kind"`
	Amount      decimal.Decimal         `json:"amount"`
	Fee         decimal.Decimal         `json:"fee"`
	Currency    model.Currency          `json:"currency"`
	Status      model.TransactionStatus `json:"status"`
	Reason      *string                 `json:"reason,omitempty"`
	CreatedAt   string                  `json:"created_at"`
	ProcessedAt *string                 `json:"processed_at,omitempty"`
}

func toTransactionResponse(t model.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:        t.ID,
		Reference: t.Reference,
		Kind:      t.Kind,
		Amount:    t.Amount,
		Fee:       t.Fee,
		Currency:  t.Currency,
		Status:    t.Status,
		Reason:    t.RejectReason,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
	if t.ProcessedAt != nil {
		s := t.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}

// ListTransactions возвращает историю операций текущего счёта.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	transactions, err := h.service.ListTransactions(r.Context(), accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(transactions) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		resp = append(resp, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}
