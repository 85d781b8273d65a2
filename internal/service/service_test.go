package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/exchange"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/plan"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/repository"
)

type stubRepo struct {
	account    *model.Account
	accountErr error

	plan    *model.InvestmentPlan
	planErr error

	chain []int64
	team  []model.TeamMember

	createdInvestment  *model.Investment
	createdCommissions []model.Commission
	createInvestmentID int64

	accrualItems     []repository.AccrualItem
	accrualApplied   []decimal.Decimal
	accrualSkip      map[int64]bool
	completed        []int64
	completedReturns map[int64]bool

	createdTransaction *model.Transaction
	approveResult      *model.Transaction
	approveErr         error

	exchangeCredit decimal.Decimal

	task              *model.Task
	createdExecution  *model.TaskExecution
	executionAuto     bool
	executionReward   decimal.Decimal
	createExecutionID int64
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateAccount(ctx context.Context, acc *model.Account, signupBonus decimal.Decimal) (int64, error) {
	return 0, s.accountErr
}

func (s *stubRepo) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	if s.account == nil {
		return nil, repository.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *stubRepo) GetAccountByLogin(ctx context.Context, login string) (*model.Account, error) {
	if s.account == nil {
		return nil, repository.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *stubRepo) GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	if s.account == nil {
		return nil, repository.ErrAccountNotFound
	}
	return s.account, nil
}

func (s *stubRepo) GetReferralChain(ctx context.Context, accountID int64, maxLevels int) ([]int64, error) {
	return s.chain, nil
}

func (s *stubRepo) ListReferrals(ctx context.Context, accountID int64) ([]model.Account, error) {
	return nil, nil
}

func (s *stubRepo) GetTeamMembers(ctx context.Context, accountID int64) ([]model.TeamMember, error) {
	return s.team, nil
}

func (s *stubRepo) ExchangePoints(ctx context.Context, accountID int64, points decimal.Decimal, currency model.Currency, credit decimal.Decimal) error {
	s.exchangeCredit = credit
	return nil
}

func (s *stubRepo) PurchasePoints(ctx context.Context, accountID int64, points decimal.Decimal, currency model.Currency, cost decimal.Decimal) error {
	return nil
}

func (s *stubRepo) GetPlan(ctx context.Context, id int64) (*model.InvestmentPlan, error) {
	if s.plan == nil {
		return nil, repository.ErrPlanNotFound
	}
	return s.plan, s.planErr
}

func (s *stubRepo) ListPlans(ctx context.Context, activeOnly bool) ([]model.InvestmentPlan, error) {
	return nil, nil
}

func (s *stubRepo) CreatePlan(ctx context.Context, p *model.InvestmentPlan) (int64, error) {
	return 0, nil
}

func (s *stubRepo) UpdatePlan(ctx context.Context, p *model.InvestmentPlan) error { return nil }

func (s *stubRepo) DeactivatePlan(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) CreateInvestment(ctx context.Context, inv *model.Investment, commissions []model.Commission) (int64, error) {
	s.createdInvestment = inv
	s.createdCommissions = commissions
	return s.createInvestmentID, nil
}

func (s *stubRepo) TopUpInvestment(ctx context.Context, investmentID, accountID int64, addition decimal.Decimal, currency model.Currency) error {
	return nil
}

func (s *stubRepo) GetInvestment(ctx context.Context, id int64) (*model.Investment, error) {
	return nil, repository.ErrInvestmentNotFound
}

func (s *stubRepo) ListInvestmentsByAccount(ctx context.Context, accountID int64) ([]model.Investment, error) {
	return nil, nil
}

func (s *stubRepo) GetInvestmentsForAccrual(ctx context.Context, asOf time.Time) ([]repository.AccrualItem, error) {
	return s.accrualItems, nil
}

func (s *stubRepo) ApplyDailyAccrual(ctx context.Context, investmentID int64, asOf time.Time, pct, amount decimal.Decimal) (bool, error) {
	if s.accrualSkip[investmentID] {
		return false, nil
	}
	s.accrualApplied = append(s.accrualApplied, amount)
	return true, nil
}

func (s *stubRepo) CompleteInvestment(ctx context.Context, investmentID int64, returnPrincipal bool) (bool, error) {
	s.completed = append(s.completed, investmentID)
	if s.completedReturns == nil {
		s.completedReturns = map[int64]bool{}
	}
	s.completedReturns[investmentID] = returnPrincipal
	return true, nil
}

func (s *stubRepo) CreateTransaction(ctx context.Context, t *model.Transaction) (int64, error) {
	s.createdTransaction = t
	return 77, nil
}

func (s *stubRepo) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	return nil, repository.ErrTransactionNotFound
}

func (s *stubRepo) ListTransactionsByAccount(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	return nil, nil
}

func (s *stubRepo) ListPendingTransactions(ctx context.Context) ([]model.Transaction, error) {
	return nil, nil
}

func (s *stubRepo) ApproveTransaction(ctx context.Context, txID, adminID int64, feeRate decimal.Decimal) (*model.Transaction, error) {
	return s.approveResult, s.approveErr
}

func (s *stubRepo) RejectTransaction(ctx context.Context, txID, adminID int64, reason string) (*model.Transaction, error) {
	return s.approveResult, s.approveErr
}

func (s *stubRepo) CreateTask(ctx context.Context, t *model.Task) (int64, error) { return 0, nil }

func (s *stubRepo) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	if s.task == nil {
		return nil, repository.ErrTaskNotFound
	}
	return s.task, nil
}

func (s *stubRepo) ListTasks(ctx context.Context, activeOnly bool) ([]model.Task, error) {
	return nil, nil
}

func (s *stubRepo) CreateExecution(ctx context.Context, e *model.TaskExecution, rewardPoints decimal.Decimal, autoApprove bool) (int64, error) {
	s.createdExecution = e
	s.executionReward = rewardPoints
	s.executionAuto = autoApprove
	return s.createExecutionID, nil
}

func (s *stubRepo) GetExecution(ctx context.Context, id int64) (*model.TaskExecution, error) {
	return nil, repository.ErrExecutionNotFound
}

func (s *stubRepo) ListPendingExecutions(ctx context.Context) ([]model.TaskExecution, error) {
	return nil, nil
}

func (s *stubRepo) ApproveExecution(ctx context.Context, executionID, adminID int64) (*model.TaskExecution, error) {
	return nil, s.approveErr
}

func (s *stubRepo) RejectExecution(ctx context.Context, executionID, adminID int64, reason string) (*model.TaskExecution, error) {
	return nil, nil
}

func testSettings() Settings {
	return Settings{
		Rates:             exchange.DefaultRates(),
		WithdrawalFeeRate: decimal.RequireFromString("0.1"),
		MinDepositAr:      decimal.NewFromInt(1000),
		MinDepositUsdt:    decimal.NewFromInt(1),
		MinWithdrawalAr:   decimal.NewFromInt(5000),
		MinWithdrawalUsdt: decimal.NewFromInt(1),
		SignupBonusAr:     decimal.NewFromInt(1000),
	}
}

func testPlan() *model.InvestmentPlan {
	p := &model.InvestmentPlan{
		ID:           1,
		Name:         "Starter",
		MinAr:        decimal.NewFromInt(10000),
		MaxAr:        decimal.NewFromInt(1000000),
		MinUsdt:      decimal.NewFromInt(10),
		MaxUsdt:      decimal.NewFromInt(1000),
		MinAddition:  decimal.NewFromInt(1000),
		DailyReturn:  decimal.NewFromInt(2),
		DurationDays: 30,
		Active:       true,
	}
	p.ReferralCommission = [3]decimal.Decimal{
		decimal.NewFromInt(10), decimal.NewFromInt(6), decimal.NewFromInt(3),
	}
	p.TeamCommission = [3]decimal.Decimal{
		decimal.NewFromInt(5), decimal.NewFromInt(2), decimal.NewFromInt(1),
	}
	return p
}

func TestAuthenticate_InvalidPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	repo := &stubRepo{account: &model.Account{ID: 1, Login: "user", PasswordHash: hash}}
	svc := NewService(repo, nil, testSettings())

	if _, err := svc.Authenticate(context.Background(), "user", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), "user", "correct"); err != nil {
		t.Fatalf("expected successful authentication, got %v", err)
	}
}

func TestRegister_UnknownReferralCode(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, testSettings())

	_, err := svc.Register(context.Background(), "user", "pass", "wpass", "123456782")
	if !errors.Is(err, ErrReferrerNotFound) {
		t.Fatalf("expected ErrReferrerNotFound, got %v", err)
	}

	_, err = svc.Register(context.Background(), "user", "pass", "wpass", "not-a-code")
	if !errors.Is(err, ErrReferrerNotFound) {
		t.Fatalf("expected ErrReferrerNotFound for malformed code, got %v", err)
	}
}

func TestCreateInvestment_AmountOutOfRange(t *testing.T) {
	repo := &stubRepo{plan: testPlan()}
	svc := NewService(repo, nil, testSettings())

	_, err := svc.CreateInvestment(context.Background(), 1, 1, decimal.NewFromInt(9000), model.CurrencyAR)
	if !errors.Is(err, plan.ErrAmountOutOfRange) {
		t.Fatalf("expected ErrAmountOutOfRange, got %v", err)
	}
	if repo.createdInvestment != nil {
		t.Fatalf("investment must not be created for invalid amount")
	}
}

func TestCreateInvestment_PaysReferralCommissions(t *testing.T) {
	repo := &stubRepo{
		plan:               testPlan(),
		chain:              []int64{10, 20, 30},
		createInvestmentID: 5,
	}
	svc := NewService(repo, nil, testSettings())

	id, err := svc.CreateInvestment(context.Background(), 1, 1, decimal.NewFromInt(100000), model.CurrencyAR)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 5 {
		t.Fatalf("expected investment id 5, got %d", id)
	}

	if len(repo.createdCommissions) != 3 {
		t.Fatalf("expected 3 referral commissions, got %d", len(repo.createdCommissions))
	}

	want := []int64{10000, 6000, 3000}
	for i, c := range repo.createdCommissions {
		if c.Kind != model.CommissionKindReferral {
			t.Fatalf("commission %d: expected referral kind, got %s", i, c.Kind)
		}
		if c.Level != i+1 {
			t.Fatalf("commission %d: expected level %d, got %d", i, i+1, c.Level)
		}
		if !c.Amount.Equal(decimal.NewFromInt(want[i])) {
			t.Fatalf("commission %d: expected amount %d, got %s", i, want[i], c.Amount)
		}
	}

	if repo.createdInvestment.EndDate.Sub(repo.createdInvestment.StartDate) != 30*24*time.Hour {
		t.Fatalf("expected 30 day investment term")
	}
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	acc := &model.Account{
		ID:                 1,
		BalanceAr:          decimal.NewFromInt(6000),
		WithdrawalPassword: "secret",
	}
	repo := &stubRepo{account: acc}
	svc := NewService(repo, nil, testSettings())
	ctx := context.Background()

	_, err := svc.RequestWithdrawal(ctx, 1, decimal.NewFromInt(4000), model.CurrencyAR, "secret")
	if !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}

	_, err = svc.RequestWithdrawal(ctx, 1, decimal.NewFromInt(5000), model.CurrencyAR, "wrong")
	if !errors.Is(err, ErrInvalidWithdrawalPassword) {
		t.Fatalf("expected ErrInvalidWithdrawalPassword, got %v", err)
	}

	_, err = svc.RequestWithdrawal(ctx, 1, decimal.NewFromInt(7000), model.CurrencyAR, "secret")
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	id, err := svc.RequestWithdrawal(ctx, 1, decimal.NewFromInt(5000), model.CurrencyAR, "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 77 {
		t.Fatalf("expected transaction id 77, got %d", id)
	}
	if repo.createdTransaction.Status != model.TransactionStatusPending {
		t.Fatalf("withdrawal must be created pending, got %s", repo.createdTransaction.Status)
	}
	if repo.createdTransaction.Reference == "" {
		t.Fatalf("withdrawal must carry a reference")
	}
}

func TestRequestDeposit_BelowMinimum(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, testSettings())

	_, err := svc.RequestDeposit(context.Background(), 1, decimal.NewFromInt(500), model.CurrencyAR)
	if !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}
}

func TestRunDailyAccrual_SkipsAlreadyCredited(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	items := []repository.AccrualItem{
		{
			Investment: model.Investment{
				ID:        1,
				AccountID: 1,
				Amount:    decimal.NewFromInt(100000),
				Currency:  model.CurrencyAR,
				EndDate:   day.AddDate(0, 0, 10),
			},
			DailyReturn: decimal.NewFromInt(2),
		},
		{
			Investment: model.Investment{
				ID:        2,
				AccountID: 2,
				Amount:    decimal.NewFromInt(50000),
				Currency:  model.CurrencyAR,
				EndDate:   day.AddDate(0, 0, 10),
			},
			DailyReturn: decimal.NewFromInt(2),
		},
	}

	repo := &stubRepo{
		accrualItems: items,
		accrualSkip:  map[int64]bool{2: true},
	}
	svc := NewService(repo, nil, testSettings())

	credited, err := svc.RunDailyAccrual(context.Background(), day.Add(7*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credited != 1 {
		t.Fatalf("expected 1 credited investment, got %d", credited)
	}
	if len(repo.accrualApplied) != 1 || !repo.accrualApplied[0].Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected single accrual of 2000 AR, got %v", repo.accrualApplied)
	}
}

func TestRunDailyAccrual_MaturedInvestmentNotCredited(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	items := []repository.AccrualItem{
		// Срок истёк сегодня.
		{
			Investment: model.Investment{
				ID:        1,
				AccountID: 1,
				Amount:    decimal.NewFromInt(100000),
				Currency:  model.CurrencyAR,
				EndDate:   day,
			},
			DailyReturn: decimal.NewFromInt(2),
		},
		// Срок истёк пять дней назад, инвестиция попала в проход с опозданием.
		{
			Investment: model.Investment{
				ID:        2,
				AccountID: 2,
				Amount:    decimal.NewFromInt(50000),
				Currency:  model.CurrencyAR,
				EndDate:   day.AddDate(0, 0, -5),
			},
			DailyReturn:     decimal.NewFromInt(2),
			ReturnPrincipal: true,
		},
	}

	repo := &stubRepo{accrualItems: items}
	svc := NewService(repo, nil, testSettings())

	credited, err := svc.RunDailyAccrual(context.Background(), day.Add(7*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if credited != 0 {
		t.Fatalf("matured investments must not receive a payout, credited %d", credited)
	}
	if len(repo.accrualApplied) != 0 {
		t.Fatalf("expected no accruals, got %v", repo.accrualApplied)
	}

	if len(repo.completed) != 2 {
		t.Fatalf("expected both investments completed, got %v", repo.completed)
	}
	if repo.completedReturns[1] {
		t.Fatalf("plan without principal return must not flag it")
	}
	if !repo.completedReturns[2] {
		t.Fatalf("plan with principal return must flag it")
	}
}

func TestExchangePoints_InvestorRate(t *testing.T) {
	repo := &stubRepo{account: &model.Account{ID: 1, IsInvestor: true}}
	svc := NewService(repo, nil, testSettings())

	credit, err := svc.ExchangePoints(context.Background(), 1, decimal.NewFromInt(10), model.CurrencyAR)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !credit.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected 1000 AR at investor rate, got %s", credit)
	}

	repo.account.IsInvestor = false
	credit, err = svc.ExchangePoints(context.Background(), 1, decimal.NewFromInt(10), model.CurrencyAR)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !credit.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected 500 AR at standard rate, got %s", credit)
	}
}

func TestSubmitExecution_ValidationMode(t *testing.T) {
	repo := &stubRepo{
		task: &model.Task{
			ID:           1,
			RewardPoints: decimal.NewFromInt(50),
			Validation:   model.TaskValidationAutomatic,
		},
		createExecutionID: 9,
	}
	svc := NewService(repo, nil, testSettings())

	id, err := svc.SubmitExecution(context.Background(), 1, 2, "screenshot.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 9 {
		t.Fatalf("expected execution id 9, got %d", id)
	}
	if !repo.executionAuto {
		t.Fatalf("automatic task must approve execution synchronously")
	}
	if !repo.executionReward.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected reward 50, got %s", repo.executionReward)
	}

	repo.task.Validation = model.TaskValidationManual
	if _, err := svc.SubmitExecution(context.Background(), 1, 3, "proof"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.executionAuto {
		t.Fatalf("manual task must leave execution pending")
	}
}

func TestApproveTransaction_PropagatesAlreadyProcessed(t *testing.T) {
	repo := &stubRepo{approveErr: repository.ErrAlreadyProcessed}
	svc := NewService(repo, nil, testSettings())

	_, err := svc.ApproveTransaction(context.Background(), 1, 2)
	if !errors.Is(err, repository.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
}
