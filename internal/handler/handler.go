// Package handler содержит HTTP-обработчики API инвестиционной платформы.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/exchange"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/middleware"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/plan"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/repository"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, login, password, withdrawalPassword, referralCode string) (int64, error)
	Authenticate(ctx context.Context, login, password string) (*model.Account, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	ListReferrals(ctx context.Context, accountID int64) ([]model.Account, error)

	ListPlans(ctx context.Context, activeOnly bool) ([]model.InvestmentPlan, error)
	GetPlan(ctx context.Context, id int64) (*model.InvestmentPlan, error)
	CreatePlan(ctx context.Context, p *model.InvestmentPlan) (int64, error)
	UpdatePlan(ctx context.Context, p *model.InvestmentPlan) error
	DeactivatePlan(ctx context.Context, id int64) error

	CreateInvestment(ctx context.Context, accountID, planID int64, amount decimal.Decimal, currency model.Currency) (int64, error)
	TopUpInvestment(ctx context.Context, accountID, investmentID int64, addition decimal.Decimal, currency model.Currency) error
	ListInvestments(ctx context.Context, accountID int64) ([]model.Investment, error)
	RunDailyAccrual(ctx context.Context, asOf time.Time) (int, error)

	RequestDeposit(ctx context.Context, accountID int64, amount decimal.Decimal, currency model.Currency) (int64, error)
	RequestWithdrawal(ctx context.Context, accountID int64, amount decimal.Decimal, currency model.Currency, withdrawalPassword string) (int64, error)
	ApproveTransaction(ctx context.Context, txID, adminID int64) (*model.Transaction, error)
	RejectTransaction(ctx context.Context, txID, adminID int64, reason string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, accountID int64) ([]model.Transaction, error)
	ListPendingTransactions(ctx context.Context) ([]model.Transaction, error)

	ExchangePoints(ctx context.Context, accountID int64, points decimal.Decimal, target model.Currency) (decimal.Decimal, error)
	PurchasePoints(ctx context.Context, accountID int64, points decimal.Decimal, currency model.Currency) (decimal.Decimal, error)

	CreateTask(ctx context.Context, creatorID int64, title, description string, rewardPoints decimal.Decimal, maxExecutions int, validationMode model.TaskValidation) (int64, error)
	ListTasks(ctx context.Context, activeOnly bool) ([]model.Task, error)
	SubmitExecution(ctx context.Context, taskID, executorID int64, proof string) (int64, error)
	ApproveTaskExecution(ctx context.Context, executionID, adminID int64) (*model.TaskExecution, error)
	RejectTaskExecution(ctx context.Context, executionID, adminID int64, reason string) (*model.TaskExecution, error)
	ListPendingExecutions(ctx context.Context) ([]model.TaskExecution, error)
}

// Handler реализует HTTP-обработчики API инвестиционной платформы.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит типизированные ошибки ядра в HTTP-статусы.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, exchange.ErrInvalidAmount),
		errors.Is(err, service.ErrBelowMinimum),
		errors.Is(err, service.ErrUnsupportedCurrency):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, plan.ErrAmountOutOfRange):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, repository.ErrInsufficientBalance):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, service.ErrInvalidWithdrawalPassword):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, repository.ErrAlreadyProcessed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrReferrerNotFound),
		errors.Is(err, repository.ErrPlanNotFound),
		errors.Is(err, plan.ErrPlanInactive),
		errors.Is(err, repository.ErrTaskLimitReached):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrInvestmentNotFound),
		errors.Is(err, repository.ErrTransactionNotFound),
		errors.Is(err, repository.ErrTaskNotFound),
		errors.Is(err, repository.ErrExecutionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.logger.Error("internal error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type registerRequest struct {
	Login              string `json:"login"`
	Password           string `json:"password"`
	WithdrawalPassword string `json:"withdrawal_password"`
	ReferralCode       string `json:"referral_code,omitempty"`
}

// Register обрабатывает регистрацию нового счёта.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	accountID, err := h.service.Register(r.Context(), req.Login, req.Password, req.WithdrawalPassword, req.ReferralCode)
	if err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.writeError(w, r, err)
		return
	}

	token, err := h.authMiddleware.IssueToken(accountID, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию и выдачу токена.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	acc, err := h.service.Authenticate(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.writeError(w, r, err)
		return
	}

	token, err := h.authMiddleware.IssueToken(acc.ID, acc.IsAdmin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type balanceResponse struct {
	Ar             decimal.Decimal `json:"ar"`
	Usdt           decimal.Decimal `json:"usdt"`
	Points         decimal.Decimal `json:"points"`
	IsInvestor     bool            `json:"is_investor"`
	TotalInvested  decimal.Decimal `json:"total_invested"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
}

// GetBalance возвращает балансы текущего счёта.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	acc, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Ar:             acc.BalanceAr,
		Usdt:           acc.BalanceUsdt,
		Points:         acc.Points,
		IsInvestor:     acc.IsInvestor,
		TotalInvested:  acc.TotalInvested,
		TotalEarned:    acc.TotalEarned,
		TotalWithdrawn: acc.TotalWithdrawn,
	})
}

type profileResponse struct {
	ID           int64  `json:"id"`
	Login        string `json:"login"`
	ReferralCode string `json:"referral_code"`
	IsInvestor   bool   `json:"is_investor"`
	CreatedAt    string `json:"created_at"`
}

// GetProfile возвращает профиль текущего счёта.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	acc, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:           acc.ID,
		Login:        acc.Login,
		ReferralCode: acc.ReferralCode,
		IsInvestor:   acc.IsInvestor,
		CreatedAt:    acc.CreatedAt.Format(time.RFC3339),
	})
}

type referralResponse struct {
	ID         int64  `json:"id"`
	Login      string `json:"login"`
	IsInvestor bool   `json:"is_investor"`
	CreatedAt  string `json:"created_at"`
}

// ListReferrals возвращает приглашённые счета первого уровня.
func (h *Handler) ListReferrals(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	referrals, err := h.service.ListReferrals(r.Context(), accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]referralResponse, 0, len(referrals))
	for _, a := range referrals {
		resp = append(resp, referralResponse{
			ID:         a.ID,
			Login:      a.Login,
			IsInvestor: a.IsInvestor,
			CreatedAt:  a.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
