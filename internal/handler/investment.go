package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/middleware"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

type planResponse struct {
	ID                 int64             `json:"id"`
	Name               string            `json:"name"`
	MinAr              decimal.Decimal   `json:"min_ar"`
	MaxAr              decimal.Decimal   `json:"max_ar"`
	MinUsdt            decimal.Decimal   `json:"min_usdt"`
	MaxUsdt            decimal.Decimal   `json:"max_usdt"`
	MinAddition        decimal.Decimal   `json:"min_addition"`
	DailyReturn        decimal.Decimal   `json:"daily_return"`
	DurationDays       int               `json:"duration_days"`
	ReferralCommission []decimal.Decimal `json:"referral_commission"`
	TeamCommission     []decimal.Decimal `json:"team_commission"`
	ReturnPrincipal    bool              `json:"return_principal"`
	Active             bool              `json:"active"`
}

func toPlanResponse(p model.InvestmentPlan) planResponse {
	return planResponse{
		ID:                 p.ID,
		Name:               p.Name,
		MinAr:              p.MinAr,
		MaxAr:              p.MaxAr,
		MinUsdt:            p.MinUsdt,
		MaxUsdt:            p.MaxUsdt,
		MinAddition:        p.MinAddition,
		DailyReturn:        p.DailyReturn,
		DurationDays:       p.DurationDays,
		ReferralCommission: p.ReferralCommission[:],
		TeamCommission:     p.TeamCommission[:],
		ReturnPrincipal:    p.ReturnPrincipal,
		Active:             p.Active,
	}
}

// ListPlans возвращает каталог активных тарифных планов.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.ListPlans(r.Context(), true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		resp = append(resp, toPlanResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

type createInvestmentRequest struct {
	PlanID   int64           `json:"plan_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency model.Currency  `json:"currency"`
}

// CreateInvestment открывает вклад по выбранному плану.
func (h *Handler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !req.Currency.IsValid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateInvestment(r.Context(), accountID, req.PlanID, req.Amount, req.Currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"investment_id": id})
}

type topUpRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency model.Currency  `json:"currency"`
}

// TopUpInvestment пополняет действующий вклад.
func (h *Handler) TopUpInvestment(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	investmentID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !req.Currency.IsValid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.TopUpInvestment(r.Context(), accountID, investmentID, req.Amount, req.Currency); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type investmentResponse struct {
	ID         int64                  `json:"id"`
	PlanID     int64                  `json:"plan_id"`
	Amount     decimal.Decimal        `json:"amount"`
	Currency   model.Currency         `json:"currency"`
	Status     model.InvestmentStatus `json:"status"`
	Progress   float64                `json:"progress"`
	StartDate  string                 `json:"start_date"`
	EndDate    string                 `json:"end_date"`
	LastPayout *string                `json:"last_payout,omitempty"`
}

// ListInvestments возвращает вклады текущего счёта с процентом завершения.
func (h *Handler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	investments, err := h.service.ListInvestments(r.Context(), accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(investments) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	now := time.Now()
	resp := make([]investmentResponse, 0, len(investments))
	for _, inv := range investments {
		item := investmentResponse{
			ID:        inv.ID,
			PlanID:    inv.PlanID,
			Amount:    inv.Amount,
			Currency:  inv.Currency,
			Status:    inv.Status,
			Progress:  inv.Progress(now),
			StartDate: inv.StartDate.Format(time.RFC3339),
			EndDate:   inv.EndDate.Format(time.RFC3339),
		}
		if inv.LastPayout != nil {
			s := inv.LastPayout.Format(time.DateOnly)
			item.LastPayout = &s
		}
		resp = append(resp, item)
	}

	writeJSON(w, http.StatusOK, resp)
}
