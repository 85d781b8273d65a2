// Package service реализует бизнес-логику инвестиционной платформы.
//
// Сервис — единая точка входа для всех событий, затрагивающих балансы:
// вложения, решения по депозитам и выводам, дневные начисления, обмен
// баллов и выполнение заданий. Каждая операция возвращает результат или
// типизированную ошибку; фатальных сбоев на уровне процесса нет.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/commission"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/exchange"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/notify"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/plan"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/repository"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/validation"
)

// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidWithdrawalPassword возвращается при несовпадении платёжного пароля.
	ErrInvalidWithdrawalPassword = errors.New("invalid withdrawal password")
	// ErrReferrerNotFound возвращается для неизвестного реферального кода.
	ErrReferrerNotFound = errors.New("referrer not found")
	// ErrBelowMinimum возвращается для суммы ниже порога депозита или вывода.
	ErrBelowMinimum = errors.New("amount below minimum")
	// ErrUnsupportedCurrency возвращается для неизвестной валюты.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateAccount(ctx context.Context, acc *model.Account, signupBonus decimal.Decimal) (int64, error)
	GetAccountByID(ctx context.Context, id int64) (*model.Account, error)
	GetAccountByLogin(ctx context.Context, login string) (*model.Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error)
	GetReferralChain(ctx context.Context, accountID int64, maxLevels int) ([]int64, error)
	ListReferrals(ctx context.Context, accountID int64) ([]model.Account, error)
	GetTeamMembers(ctx context.Context, accountID int64) ([]model.TeamMember, error)
	ExchangePoints(ctx context.Context, accountID int64, points decimal.Decimal, currency model.Currency, credit decimal.Decimal) error
	PurchasePoints(ctx context.Context, accountID int64, points decimal.Decimal, currency model.Currency, cost decimal.Decimal) error

	GetPlan(ctx context.Context, id int64) (*model.InvestmentPlan, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]model.InvestmentPlan, error)
	CreatePlan(ctx context.Context, p *model.InvestmentPlan) (int64, error)
	UpdatePlan(ctx context.Context, p *model.InvestmentPlan) error
	DeactivatePlan(ctx context.Context, id int64) error

	CreateInvestment(ctx context.Context, inv *model.Investment, commissions []model.Commission) (int64, error)
	TopUpInvestment(ctx context.Context, investmentID, accountID int64, addition decimal.Decimal, currency model.Currency) error
	GetInvestment(ctx context.Context, id int64) (*model.Investment, error)
	ListInvestmentsByAccount(ctx context.Context, accountID int64) ([]model.Investment, error)
	GetInvestmentsForAccrual(ctx context.Context, asOf time.Time) ([]repository.AccrualItem, error)
	ApplyDailyAccrual(ctx context.Context, investmentID int64, asOf time.Time, pct, amount decimal.Decimal) (bool, error)
	CompleteInvestment(ctx context.Context, investmentID int64, returnPrincipal bool) (bool, error)

	CreateTransaction(ctx context.Context, t *model.Transaction) (int64, error)
	GetTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	ListTransactionsByAccount(ctx context.Context, accountID int64) ([]model.Transaction, error)
	ListPendingTransactions(ctx context.Context) ([]model.Transaction, error)
	ApproveTransaction(ctx context.Context, txID, adminID int64, feeRate decimal.Decimal) (*model.Transaction, error)
	RejectTransaction(ctx context.Context, txID, adminID int64, reason string) (*model.Transaction, error)

	CreateTask(ctx context.Context, t *model.Task) (int64, error)
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	ListTasks(ctx context.Context, activeOnly bool) ([]model.Task, error)
	CreateExecution(ctx context.Context, e *model.TaskExecution, rewardPoints decimal.Decimal, autoApprove bool) (int64, error)
	GetExecution(ctx context.Context, id int64) (*model.TaskExecution, error)
	ListPendingExecutions(ctx context.Context) ([]model.TaskExecution, error)
	ApproveExecution(ctx context.Context, executionID, adminID int64) (*model.TaskExecution, error)
	RejectExecution(ctx context.Context, executionID, adminID int64, reason string) (*model.TaskExecution, error)
}

// Settings содержит параметры платформы, загружаемые из конфигурации.
// Сервис читает их, но не изменяет.
type Settings struct {
	Rates             exchange.Rates
	WithdrawalFeeRate decimal.Decimal
	MinDepositAr      decimal.Decimal
	MinDepositUsdt    decimal.Decimal
	MinWithdrawalAr   decimal.Decimal
	MinWithdrawalUsdt decimal.Decimal
	SignupBonusAr     decimal.Decimal
}

// Service содержит бизнес-логику инвестиционной платформы.
type Service struct {
	repo       Repository
	dispatcher *notify.Dispatcher
	settings   Settings
}

// NewService создаёт новый сервис с указанным репозиторием и диспетчером событий.
func NewService(repo Repository, dispatcher *notify.Dispatcher, settings Settings) *Service {
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		settings:   settings,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Register регистрирует новый счёт. Приветственный бонус зачисляется
// атомарно с созданием счёта. Реферальный код необязателен, но если
// указан, должен принадлежать существующему счёту.
func (s *Service) Register(ctx context.Context, login, password, withdrawalPassword, referralCode string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	var referrerID *int64
	if referralCode != "" {
		if !validation.IsValidReferralCode(referralCode) {
			return 0, ErrReferrerNotFound
		}
		referrer, err := s.repo.GetAccountByReferralCode(ctx, referralCode)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return 0, ErrReferrerNotFound
			}
			return 0, err
		}
		referrerID = &referrer.ID
	}

	ownCode, err := validation.NewReferralCode()
	if err != nil {
		return 0, fmt.Errorf("generate referral code: %w", err)
	}

	acc := &model.Account{
		Login:              login,
		PasswordHash:       hash,
		WithdrawalPassword: withdrawalPassword,
		ReferralCode:       ownCode,
		ReferrerID:         referrerID,
	}

	id, err := s.repo.CreateAccount(ctx, acc, s.settings.SignupBonusAr)
	if err != nil {
		return 0, err
	}

	if s.settings.SignupBonusAr.IsPositive() {
		s.dispatcher.BalanceChanged(id, model.CurrencyAR, s.settings.SignupBonusAr)
	}

	return id, nil
}

// Authenticate проверяет логин и пароль и возвращает счёт.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*model.Account, error) {
	acc, err := s.repo.GetAccountByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return acc, nil
}

// GetAccount возвращает счёт по идентификатору.
func (s *Service) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return s.repo.GetAccountByID(ctx, id)
}

// ListReferrals возвращает счета, приглашённые данным счётом напрямую.
func (s *Service) ListReferrals(ctx context.Context, accountID int64) ([]model.Account, error) {
	return s.repo.ListReferrals(ctx, accountID)
}

// CreateInvestment создаёт вложение: проверяет границы плана и баланс,
// списывает принципал и выплачивает реферальные и командные комиссии
// одной атомарной операцией.
func (s *Service) CreateInvestment(ctx context.Context, accountID, planID int64, amount decimal.Decimal, currency model.Currency) (int64, error) {
	if !currency.IsValid() {
		return 0, ErrUnsupportedCurrency
	}
	if !amount.IsPositive() {
		return 0, exchange.ErrInvalidAmount
	}

	p, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return 0, err
	}
	if err := plan.EnsureActive(p); err != nil {
		return 0, err
	}
	if err := plan.ValidateAmount(p, amount, currency); err != nil {
		return 0, err
	}

	chain, err := s.repo.GetReferralChain(ctx, accountID, commission.MaxLevels)
	if err != nil {
		return 0, err
	}
	team, err := s.repo.GetTeamMembers(ctx, accountID)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	inv := &model.Investment{
		AccountID: accountID,
		PlanID:    p.ID,
		Amount:    amount,
		Currency:  currency,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, p.DurationDays),
	}

	commissions := buildCommissions(accountID, amount, currency, p, chain, team)

	id, err := s.repo.CreateInvestment(ctx, inv, commissions)
	if err != nil {
		return 0, err
	}

	s.dispatcher.BalanceChanged(accountID, currency, amount.Neg())
	for _, c := range commissions {
		s.dispatcher.CommissionPaid(c.AccountID, c.SourceID, c.Level, c.Currency, c.Amount)
	}

	return id, nil
}

func buildCommissions(sourceID int64, principal decimal.Decimal, currency model.Currency, p *model.InvestmentPlan, chain []int64, team []model.TeamMember) []model.Commission {
	referral := commission.Referral(principal, currency, p, chain)
	teamRes := commission.Team(principal, currency, p, team)

	commissions := make([]model.Commission, 0, len(referral)+len(teamRes))
	for _, r := range referral {
		commissions = append(commissions, model.Commission{
			AccountID:  r.AccountID,
			SourceID:   sourceID,
			Kind:       model.CommissionKindReferral,
			Level:      r.Level,
			Percentage: r.Percentage,
			Amount:     r.Amount,
			Currency:   currency,
		})
	}
	for _, r := range teamRes {
		commissions = append(commissions, model.Commission{
			AccountID:  r.AccountID,
			SourceID:   sourceID,
			Kind:       model.CommissionKindTeam,
			Level:      r.Level,
			Percentage: r.Percentage,
			Amount:     r.Amount,
			Currency:   currency,
		})
	}

	return commissions
}

// TopUpInvestment пополняет действующую инвестицию с проверкой
// минимального шага и верхней границы плана.
func (s *Service) TopUpInvestment(ctx context.Context, accountID, investmentID int64, addition decimal.Decimal, currency model.Currency) error {
	if !addition.IsPositive() {
		return exchange.ErrInvalidAmount
	}

	inv, err := s.repo.GetInvestment(ctx, investmentID)
	if err != nil {
		return err
	}
	if inv.AccountID != accountID || inv.Status != model.InvestmentStatusActive {
		return repository.ErrInvestmentNotFound
	}
	if inv.Currency != currency {
		return ErrUnsupportedCurrency
	}

	p, err := s.repo.GetPlan(ctx, inv.PlanID)
	if err != nil {
		return err
	}
	if err := plan.ValidateTopUp(p, inv.Amount, addition, currency); err != nil {
		return err
	}

	if err := s.repo.TopUpInvestment(ctx, investmentID, accountID, addition, currency); err != nil {
		return err
	}

	s.dispatcher.BalanceChanged(accountID, currency, addition.Neg())
	return nil
}

// ListInvestments возвращает инвестиции счёта.
func (s *Service) ListInvestments(ctx context.Context, accountID int64) ([]model.Investment, error) {
	return s.repo.ListInvestmentsByAccount(ctx, accountID)
}

// ListPlans возвращает тарифные планы.
func (s *Service) ListPlans(ctx context.Context, activeOnly bool) ([]model.InvestmentPlan, error) {
	return s.repo.ListPlans(ctx, activeOnly)
}

// RunDailyAccrual выполняет дневное начисление доходности за дату asOf.
// Операция идемпотентна в пределах календарного дня и безопасна при
// повторном запуске после частичного сбоя. Часы принадлежат внешнему
// планировщику: дата всегда передаётся явно.
func (s *Service) RunDailyAccrual(ctx context.Context, asOf time.Time) (int, error) {
	day := asOf.UTC().Truncate(24 * time.Hour)

	items, err := s.repo.GetInvestmentsForAccrual(ctx, day)
	if err != nil {
		return 0, err
	}

	credited := 0
	for _, item := range items {
		inv := item.Investment

		// Срок истёк: инвестиция закрывается без начисления. Дневная
		// доходность за дни после endDate не выплачивается, сколько бы
		// их ни прошло до первого прохода.
		if !inv.EndDate.After(day) {
			completed, err := s.repo.CompleteInvestment(ctx, inv.ID, item.ReturnPrincipal)
			if err != nil {
				return credited, fmt.Errorf("complete investment %d: %w", inv.ID, err)
			}
			if completed && item.ReturnPrincipal {
				s.dispatcher.BalanceChanged(inv.AccountID, inv.Currency, inv.Amount)
			}
			continue
		}

		amount := exchange.RoundToCurrency(
			inv.Amount.Mul(item.DailyReturn).Div(decimal.NewFromInt(100)),
			inv.Currency,
		)

		applied, err := s.repo.ApplyDailyAccrual(ctx, inv.ID, day, item.DailyReturn, amount)
		if err != nil {
			return credited, fmt.Errorf("accrue investment %d: %w", inv.ID, err)
		}
		if !applied {
			continue
		}

		credited++
		s.dispatcher.BalanceChanged(inv.AccountID, inv.Currency, amount)
	}

	return credited, nil
}

// RequestDeposit создаёт заявку на пополнение счёта. Баланс изменится
// только после подтверждения администратором.
func (s *Service) RequestDeposit(ctx context.Context, accountID int64, amount decimal.Decimal, currency model.Currency) (int64, error) {
	if !currency.IsValid() {
		return 0, ErrUnsupportedCurrency
	}
	if !amount.IsPositive() {
		return 0, exchange.ErrInvalidAmount
	}
	if amount.LessThan(s.minDeposit(currency)) {
		return 0, ErrBelowMinimum
	}

	return s.repo.CreateTransaction(ctx, &model.Transaction{
		AccountID: accountID,
		Kind:      model.TransactionKindDeposit,
		Currency:  currency,
		Amount:    exchange.RoundToCurrency(amount, currency),
		Status:    model.TransactionStatusPending,
		Reference: uuid.NewString(),
	})
}

// RequestWithdrawal создаёт заявку на вывод средств. Платёжный пароль
// сверяется с сохранённым значением точно; баланс проверяется на момент
// заявки, но списывается только при подтверждении.
func (s *Service) RequestWithdrawal(ctx context.Context, accountID int64, amount decimal.Decimal, currency model.Currency, withdrawalPassword string) (int64, error) {
	if !currency.IsValid() {
		return 0, ErrUnsupportedCurrency
	}
	if !amount.IsPositive() {
		return 0, exchange.ErrInvalidAmount
	}
	if amount.LessThan(s.minWithdrawal(currency)) {
		return 0, ErrBelowMinimum
	}

	acc, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return 0, err
	}

	if acc.WithdrawalPassword == "" || acc.WithdrawalPassword != withdrawalPassword {
		return 0, ErrInvalidWithdrawalPassword
	}

	if acc.Balance(currency).LessThan(amount) {
		return 0, repository.ErrInsufficientBalance
	}

	return s.repo.CreateTransaction(ctx, &model.Transaction{
		AccountID: accountID,
		Kind:      model.TransactionKindWithdrawal,
		Currency:  currency,
		Amount:    exchange.RoundToCurrency(amount, currency),
		Status:    model.TransactionStatusPending,
		Reference: uuid.NewString(),
	})
}

// ApproveTransaction подтверждает операцию решением администратора.
// Повторное подтверждение возвращает ErrAlreadyProcessed, баланс
// изменяется ровно один раз.
func (s *Service) ApproveTransaction(ctx context.Context, txID, adminID int64) (*model.Transaction, error) {
	t, err := s.repo.ApproveTransaction(ctx, txID, adminID, s.settings.WithdrawalFeeRate)
	if err != nil {
		return nil, err
	}

	switch t.Kind {
	case model.TransactionKindDeposit:
		s.dispatcher.BalanceChanged(t.AccountID, t.Currency, t.Amount)
	case model.TransactionKindWithdrawal:
		s.dispatcher.BalanceChanged(t.AccountID, t.Currency, t.Amount.Sub(t.Fee).Neg())
	}

	return t, nil
}

// RejectTransaction отклоняет операцию с указанием причины.
func (s *Service) RejectTransaction(ctx context.Context, txID, adminID int64, reason string) (*model.Transaction, error) {
	return s.repo.RejectTransaction(ctx, txID, adminID, reason)
}

// ListTransactions возвращает историю операций счёта.
func (s *Service) ListTransactions(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	return s.repo.ListTransactionsByAccount(ctx, accountID)
}

// ListPendingTransactions возвращает операции, ожидающие решения.
func (s *Service) ListPendingTransactions(ctx context.Context) ([]model.Transaction, error) {
	return s.repo.ListPendingTransactions(ctx)
}

// ExchangePoints обменивает баллы на валюту по курсу, зависящему от
// инвесторского статуса счёта. Списание баллов и зачисление валюты
// выполняются одним атомарным шагом.
func (s *Service) ExchangePoints(ctx context.Context, accountID int64, points decimal.Decimal, target model.Currency) (decimal.Decimal, error) {
	if !target.IsValid() {
		return decimal.Zero, ErrUnsupportedCurrency
	}

	acc, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	credit, err := exchange.Convert(s.settings.Rates, points, target, acc.IsInvestor)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.repo.ExchangePoints(ctx, accountID, points, target, credit); err != nil {
		return decimal.Zero, err
	}

	s.dispatcher.BalanceChanged(accountID, target, credit)
	return credit, nil
}

// PurchasePoints покупает баллы за валюту по стандартному курсу.
func (s *Service) PurchasePoints(ctx context.Context, accountID int64, points decimal.Decimal, currency model.Currency) (decimal.Decimal, error) {
	if !currency.IsValid() {
		return decimal.Zero, ErrUnsupportedCurrency
	}

	cost, err := exchange.Convert(s.settings.Rates, points, currency, false)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.repo.PurchasePoints(ctx, accountID, points, currency, cost); err != nil {
		return decimal.Zero, err
	}

	s.dispatcher.BalanceChanged(accountID, currency, cost.Neg())
	return cost, nil
}

// CreateTask создаёт микрозадание.
func (s *Service) CreateTask(ctx context.Context, creatorID int64, title, description string, rewardPoints decimal.Decimal, maxExecutions int, validationMode model.TaskValidation) (int64, error) {
	if !rewardPoints.IsPositive() || maxExecutions <= 0 {
		return 0, exchange.ErrInvalidAmount
	}
	if validationMode != model.TaskValidationAutomatic && validationMode != model.TaskValidationManual {
		return 0, fmt.Errorf("unknown validation mode %q", validationMode)
	}

	return s.repo.CreateTask(ctx, &model.Task{
		CreatorID:     creatorID,
		Title:         title,
		Description:   description,
		RewardPoints:  rewardPoints,
		MaxExecutions: maxExecutions,
		Validation:    validationMode,
	})
}

// ListTasks возвращает доступные задания.
func (s *Service) ListTasks(ctx context.Context, activeOnly bool) ([]model.Task, error) {
	return s.repo.ListTasks(ctx, activeOnly)
}

// SubmitExecution регистрирует выполнение задания. Задание с
// автоматической валидацией зачисляет баллы синхронно; ручная
// валидация оставляет выполнение в pending до решения администратора.
func (s *Service) SubmitExecution(ctx context.Context, taskID, executorID int64, proof string) (int64, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return 0, err
	}

	auto := task.Validation == model.TaskValidationAutomatic
	return s.repo.CreateExecution(ctx, &model.TaskExecution{
		TaskID:     taskID,
		ExecutorID: executorID,
		Proof:      proof,
	}, task.RewardPoints, auto)
}

// ApproveTaskExecution подтверждает выполнение задания; баллы
// зачисляются исполнителю ровно один раз.
func (s *Service) ApproveTaskExecution(ctx context.Context, executionID, adminID int64) (*model.TaskExecution, error) {
	return s.repo.ApproveExecution(ctx, executionID, adminID)
}

// RejectTaskExecution отклоняет выполнение задания.
func (s *Service) RejectTaskExecution(ctx context.Context, executionID, adminID int64, reason string) (*model.TaskExecution, error) {
	return s.repo.RejectExecution(ctx, executionID, adminID, reason)
}

// ListPendingExecutions возвращает выполнения, ожидающие ручной проверки.
func (s *Service) ListPendingExecutions(ctx context.Context) ([]model.TaskExecution, error) {
	return s.repo.ListPendingExecutions(ctx)
}

// GetPlan возвращает тарифный план.
func (s *Service) GetPlan(ctx context.Context, id int64) (*model.InvestmentPlan, error) {
	return s.repo.GetPlan(ctx, id)
}

// CreatePlan создаёт тарифный план.
func (s *Service) CreatePlan(ctx context.Context, p *model.InvestmentPlan) (int64, error) {
	return s.repo.CreatePlan(ctx, p)
}

// UpdatePlan обновляет тарифный план для будущих вложений.
func (s *Service) UpdatePlan(ctx context.Context, p *model.InvestmentPlan) error {
	return s.repo.UpdatePlan(ctx, p)
}

// DeactivatePlan выводит план из продажи.
func (s *Service) DeactivatePlan(ctx context.Context, id int64) error {
	return s.repo.DeactivatePlan(ctx, id)
}

func (s *Service) minDeposit(c model.Currency) decimal.Decimal {
	if c == model.CurrencyUSDT {
		return s.settings.MinDepositUsdt
	}
	return s.settings.MinDepositAr
}

func (s *Service) minWithdrawal(c model.Currency) decimal.Decimal {
	if c == model.CurrencyUSDT {
		return s.settings.MinWithdrawalUsdt
	}
	return s.settings.MinWithdrawalAr
}
