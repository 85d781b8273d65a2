package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/commission"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/middleware"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

func adminID(r *http.Request) (int64, bool) {
	return middleware.GetAccountIDFromContext(r.Context())
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// ListPendingTransactions возвращает заявки, ожидающие решения администратора.
func (h *Handler) ListPendingTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.service.ListPendingTransactions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for _, t := range transactions {
		resp = append(resp, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ApproveTransaction подтверждает заявку на пополнение или вывод.
func (h *Handler) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := adminID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	txID, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tx, err := h.service.ApproveTransaction(r.Context(), txID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponse(*tx))
}

// RejectTransaction отклоняет заявку с указанием причины.
func (h *Handler) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := adminID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	txID, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tx, err := h.service.RejectTransaction(r.Context(), txID, id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTransactionResponse(*tx))
}

// ListPendingExecutions возвращает выполнения заданий, ожидающие проверки.
func (h *Handler) ListPendingExecutions(w http.ResponseWriter, r *http.Request) {
	executions, err := h.service.ListPendingExecutions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]executionResponse, 0, len(executions))
	for _, e := range executions {
		resp = append(resp, toExecutionResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ApproveExecution подтверждает выполнение задания и начисляет баллы.
func (h *Handler) ApproveExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := adminID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	executionID, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	exec, err := h.service.ApproveTaskExecution(r.Context(), executionID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toExecutionResponse(*exec))
}

// RejectExecution отклоняет выполнение задания.
func (h *Handler) RejectExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := adminID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	executionID, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	exec, err := h.service.RejectTaskExecution(r.Context(), executionID, id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toExecutionResponse(*exec))
}

// CreatePlan добавляет тарифный план в каталог.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, ok := planFromRequest(req)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreatePlan(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"plan_id": id})
}

// UpdatePlan изменяет параметры тарифного плана.
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req planResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, ok := planFromRequest(req)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p.ID = planID

	if err := h.service.UpdatePlan(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeactivatePlan выводит план из каталога. Действующие вклады продолжают
// обслуживаться до завершения срока.
func (h *Handler) DeactivatePlan(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeactivatePlan(r.Context(), planID); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// RunAccrual запускает ежедневное начисление вручную.
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	applied, err := h.service.RunDailyAccrual(r.Context(), time.Now().UTC())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"applied": applied})
}

func planFromRequest(req planResponse) (*model.InvestmentPlan, bool) {
	if req.Name == "" || req.DurationDays <= 0 {
		return nil, false
	}
	if len(req.ReferralCommission) > commission.MaxLevels || len(req.TeamCommission) > commission.MaxLevels {
		return nil, false
	}

	p := &model.InvestmentPlan{
		Name:            req.Name,
		MinAr:           req.MinAr,
		MaxAr:           req.MaxAr,
		MinUsdt:         req.MinUsdt,
		MaxUsdt:         req.MaxUsdt,
		MinAddition:     req.MinAddition,
		DailyReturn:     req.DailyReturn,
		DurationDays:    req.DurationDays,
		ReturnPrincipal: req.ReturnPrincipal,
		Active:          true,
	}
	copy(p.ReferralCommission[:], req.ReferralCommission)
	copy(p.TeamCommission[:], req.TeamCommission)
	return p, true
}
