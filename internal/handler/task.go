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

type createTaskRequest struct {
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	RewardPoints  decimal.Decimal      `json:"reward_points"`
	MaxExecutions int                  `json:"max_executions"`
	Validation    model.TaskValidation `json:"validation"`
}

// CreateTask публикует новое микрозадание.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Title == "" || req.MaxExecutions <= 0 || !req.RewardPoints.IsPositive() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Validation != model.TaskValidationAutomatic && req.Validation != model.TaskValidationManual {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateTask(r.Context(), accountID, req.Title, req.Description, req.RewardPoints, req.MaxExecutions, req.Validation)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"task_id": id})
}

type taskResponse struct {
	ID            int64                `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	RewardPoints  decimal.Decimal      `json:"reward_points"`
	MaxExecutions int                  `json:"max_executions"`
	Executions    int                  `json:"executions"`
	Validation    model.TaskValidation `json:"validation"`
	Active        bool                 `json:"active"`
}

// ListTasks возвращает доступные задания.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.ListTasks(r.Context(), true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, taskResponse{
			ID:            t.ID,
			Title:         t.Title,
			Description:   t.Description,
			RewardPoints:  t.RewardPoints,
			MaxExecutions: t.MaxExecutions,
			Executions:    t.Executions,
			Validation:    t.Validation,
			Active:        t.Active,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type submitExecutionRequest struct {
	Proof string `json:"proof"`
}

// SubmitExecution фиксирует выполнение задания пользователем.
func (h *Handler) SubmitExecution(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	taskID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req submitExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.SubmitExecution(r.Context(), taskID, accountID, req.Proof)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]int64{"execution_id": id})
}

type executionResponse struct {
	ID          int64                 `json:"id"`
	TaskID      int64                 `json:"task_id"`
	ExecutorID  int64                 `json:"executor_id"`
	Proof       string                `json:"proof,omitempty"`
	Status      model.ExecutionStatus `json:"status"`
	Reason      *string               `json:"reason,omitempty"`
	CreatedAt   string                `json:"created_at"`
	ProcessedAt *string               `json:"processed_at,omitempty"`
}

func toExecutionResponse(e model.TaskExecution) executionResponse {
	resp := executionResponse{
		ID:         e.ID,
		TaskID:     e.TaskID,
		ExecutorID: e.ExecutorID,
		Proof:      e.Proof,
		Status:     e.Status,
		Reason:     e.RejectReason,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
	if e.ProcessedAt != nil {
		s := e.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}
