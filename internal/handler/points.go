package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/middleware"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

type pointsRequest struct {
	Points   decimal.Decimal `json:"points"`
	Currency model.Currency  `json:"currency"`
}

type pointsResponse struct {
	Points   decimal.Decimal `json:"points"`
	Amount   decimal.Decimal `json:"amount"`
	Currency model.Currency  `json:"currency"`
}

// ExchangePoints обменивает баллы на валюту по курсу статуса счёта.
func (h *Handler) ExchangePoints(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !req.Currency.IsValid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	amount, err := h.service.ExchangePoints(r.Context(), accountID, req.Points, req.Currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pointsResponse{
		Points:   req.Points,
		Amount:   amount,
		Currency: req.Currency,
	})
}

// PurchasePoints покупает баллы за валюту.
func (h *Handler) PurchasePoints(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !req.Currency.IsValid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	cost, err := h.service.PurchasePoints(r.Context(), accountID, req.Points, req.Currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pointsResponse{
		Points:   req.Points,
		Amount:   cost,
		Currency: req.Currency,
	})
}
