package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/middleware"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/plan"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/repository"
)

type stubService struct {
	registerID  int64
	registerErr error

	authAccount *model.Account
	authErr     error

	account    *model.Account
	accountErr error

	plans    []model.InvestmentPlan
	plansErr error

	investmentID  int64
	investmentErr error
	investments   []model.Investment

	depositID     int64
	depositErr    error
	withdrawalID  int64
	withdrawalErr error
	transactions  []model.Transaction
	approveResult *model.Transaction
	approveErr    error

	exchangeAmount decimal.Decimal
	exchangeErr    error

	taskID       int64
	taskErr      error
	tasks        []model.Task
	executionID  int64
	executionErr error
	executions   []model.TaskExecution
	execResult   *model.TaskExecution
}

func (s *stubService) Register(ctx context.Context, login, password, withdrawalPassword, referralCode string) (int64, error) {
	return s.registerID, s.registerErr
}

func (s *stubService) Authenticate(ctx context.Context, login, password string) (*model.Account, error) {
	return s.authAccount, s.authErr
}

func (s *stubService) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return s.account, s.accountErr
}

func (s *stubService) ListReferrals(ctx context.Context, accountID int64) ([]model.Account, error) {
	return nil, nil
}

func (s *stubService) ListPlans(ctx context.Context, activeOnly bool) ([]model.InvestmentPlan, error) {
	return s.plans, s.plansErr
}

func (s *stubService) GetPlan(ctx context.Context, id int64) (*model.InvestmentPlan, error) {
	return nil, repository.ErrPlanNotFound
}

func (s *stubService) CreatePlan(ctx context.Context, p *model.InvestmentPlan) (int64, error) {
	return 1, nil
}

func (s *stubService) UpdatePlan(ctx context.Context, p *model.InvestmentPlan) error { return nil }

func (s *stubService) DeactivatePlan(ctx context.Context, id int64) error { return nil }

func (s *stubService) CreateInvestment(ctx context.Context, accountID, planID int64, amount decimal.Decimal, currency model.Currency) (int64, error) {
	return s.investmentID, s.investmentErr
}

func (s *stubService) TopUpInvestment(ctx context.Context, accountID, investmentID int64, addition decimal.Decimal, currency model.Currency) error {
	return s.investmentErr
}

func (s *stubService) ListInvestments(ctx context.Context, accountID int64) ([]model.Investment, error) {
	return s.investments, nil
}

func (s *stubService) RunDailyAccrual(ctx context.Context, asOf time.Time) (int, error) {
	return 0, nil
}

func (s *stubService) RequestDeposit(ctx context.Context, accountID int64, amount decimal.Decimal, currency model.Currency) (int64, error) {
	return s.depositID, s.depositErr
}

func (s *stubService) RequestWithdrawal(ctx context.Context, accountID int64, amount decimal.Decimal, currency model.Currency, withdrawalPassword string) (int64, error) {
	return s.withdrawalID, s.withdrawalErr
}

func (s *stubService) ApproveTransaction(ctx context.Context, txID, adminID int64) (*model.Transaction, error) {
	return s.approveResult, s.approveErr
}

func (s *stubService) RejectTransaction(ctx context.Context, txID, adminID int64, reason string) (*model.Transaction, error) {
	return s.approveResult, s.approveErr
}

func (s *stubService) ListTransactions(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	return s.transactions, nil
}

func (s *stubService) ListPendingTransactions(ctx context.Context) ([]model.Transaction, error) {
	return s.transactions, nil
}

func (s *stubService) ExchangePoints(ctx context.Context, accountID int64, points decimal.Decimal, target model.Currency) (decimal.Decimal, error) {
	return s.exchangeAmount, s.exchangeErr
}

func (s *stubService) PurchasePoints(ctx context.Context, accountID int64, points decimal.Decimal, currency model.Currency) (decimal.Decimal, error) {
	return s.exchangeAmount, s.exchangeErr
}

func (s *stubService) CreateTask(ctx context.Context, creatorID int64, title, description string, rewardPoints decimal.Decimal, maxExecutions int, validationMode model.TaskValidation) (int64, error) {
	return s.taskID, s.taskErr
}

func (s *stubService) ListTasks(ctx context.Context, activeOnly bool) ([]model.Task, error) {
	return s.tasks, nil
}

func (s *stubService) SubmitExecution(ctx context.Context, taskID, executorID int64, proof string) (int64, error) {
	return s.executionID, s.executionErr
}

func (s *stubService) ApproveTaskExecution(ctx context.Context, executionID, adminID int64) (*model.TaskExecution, error) {
	return s.execResult, s.executionErr
}

func (s *stubService) RejectTaskExecution(ctx context.Context, executionID, adminID int64, reason string) (*model.TaskExecution, error) {
	return s.execResult, s.executionErr
}

func (s *stubService) ListPendingExecutions(ctx context.Context) ([]model.TaskExecution, error) {
	return s.executions, nil
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func authorizedRequest(t *testing.T, h *Handler, method, target string, body []byte, accountID int64, admin bool) *http.Request {
	t.Helper()

	token, err := h.authMiddleware.IssueToken(accountID, admin)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRegister_ReturnsToken(t *testing.T) {
	svc := &stubService{registerID: 42}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		Login:              "user",
		Password:           "pass",
		WithdrawalPassword: "wpass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["token"] == "" {
		t.Fatalf("expected token in response")
	}
}

func TestRegister_ConflictOnDuplicate(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrAccountExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{Login: "user", Password: "pass"})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestCreateInvestment_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"out of range", plan.ErrAmountOutOfRange, http.StatusUnprocessableEntity},
		{"insufficient balance", repository.ErrInsufficientBalance, http.StatusPaymentRequired},
		{"inactive plan", plan.ErrPlanInactive, http.StatusUnprocessableEntity},
		{"unknown plan", repository.ErrPlanNotFound, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{investmentErr: tt.err}
			h := newTestHandler(t, svc)
			router := h.SetupRouter()

			body, _ := json.Marshal(createInvestmentRequest{
				PlanID:   1,
				Amount:   decimal.NewFromInt(9000),
				Currency: model.CurrencyAR,
			})

			req := authorizedRequest(t, h, http.MethodPost, "/api/user/investments", body, 1, false)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestListInvestments_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := authorizedRequest(t, h, http.MethodGet, "/api/user/investments", nil, 1, false)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestUserEndpoints_RequireAuth(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/user/balance", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAdminEndpoints_ForbiddenForUsers(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := authorizedRequest(t, h, http.MethodGet, "/api/admin/transactions", nil, 1, false)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestApproveTransaction_ConflictOnRepeat(t *testing.T) {
	svc := &stubService{approveErr: repository.ErrAlreadyProcessed}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := authorizedRequest(t, h, http.MethodPost, "/api/admin/transactions/5/approve", nil, 1, true)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestRequestWithdrawal_Accepted(t *testing.T) {
	svc := &stubService{withdrawalID: 7}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(withdrawalRequest{
		Amount:             decimal.NewFromInt(5000),
		Currency:           model.CurrencyAR,
		WithdrawalPassword: "secret",
	})

	req := authorizedRequest(t, h, http.MethodPost, "/api/user/withdrawals", body, 1, false)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	var resp map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["transaction_id"] != 7 {
		t.Fatalf("expected transaction id 7, got %d", resp["transaction_id"])
	}
}

func TestGetBalance_ReturnsAccountState(t *testing.T) {
	svc := &stubService{
		account: &model.Account{
			ID:         1,
			BalanceAr:  decimal.NewFromInt(15000),
			Points:     decimal.NewFromInt(200),
			IsInvestor: true,
		},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := authorizedRequest(t, h, http.MethodGet, "/api/user/balance", nil, 1, false)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp balanceResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Ar.Equal(decimal.NewFromInt(15000)) {
		t.Fatalf("expected 15000 AR, got %s", resp.Ar)
	}
	if !resp.IsInvestor {
		t.Fatalf("expected investor flag set")
	}
}
