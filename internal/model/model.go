// Package model содержит доменные сущности инвестиционной платформы.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency обозначает валюту счёта.
type Currency string

const (
	CurrencyAR   Currency = "AR"
	CurrencyUSDT Currency = "USDT"
)

// IsValid сообщает, поддерживается ли валюта платформой.
func (c Currency) IsValid() bool {
	return c == CurrencyAR || c == CurrencyUSDT
}

// Account представляет финансовый профиль зарегистрированного пользователя.
// Балансы изменяются только через операции леджера.
type Account struct {
	ID                 int64
	Login              string
	PasswordHash       []byte
	WithdrawalPassword string
	ReferralCode       string
	ReferrerID         *int64
	BalanceAr          decimal.Decimal
	BalanceUsdt        decimal.Decimal
	Points             decimal.Decimal
	IsInvestor         bool
	IsAdmin            bool
	TotalInvested      decimal.Decimal
	TotalEarned        decimal.Decimal
	TotalWithdrawn     decimal.Decimal
	TotalDeposited     decimal.Decimal
	CreatedAt          time.Time
}

// Balance возвращает баланс счёта в указанной валюте.
func (a *Account) Balance(c Currency) decimal.Decimal {
	if c == CurrencyUSDT {
		return a.BalanceUsdt
	}
	return a.BalanceAr
}

// InvestmentPlan описывает тарифный план инвестирования.
// Для уже созданных инвестиций план неизменяем: правки применяются
// только к будущим вложениям.
type InvestmentPlan struct {
	ID                 int64
	Name               string
	MinAr              decimal.Decimal
	MaxAr              decimal.Decimal
	MinUsdt            decimal.Decimal
	MaxUsdt            decimal.Decimal
	MinAddition        decimal.Decimal
	DailyReturn        decimal.Decimal
	ReferralCommission [3]decimal.Decimal
	TeamCommission     [3]decimal.Decimal
	DurationDays       int
	ReturnPrincipal    bool
	Active             bool
	CreatedAt          time.Time
}

// Min возвращает минимальную сумму вложения для валюты.
func (p *InvestmentPlan) Min(c Currency) decimal.Decimal {
	if c == CurrencyUSDT {
		return p.MinUsdt
	}
	return p.MinAr
}

// Max возвращает максимальную сумму вложения для валюты.
func (p *InvestmentPlan) Max(c Currency) decimal.Decimal {
	if c == CurrencyUSDT {
		return p.MaxUsdt
	}
	return p.MaxAr
}

// InvestmentStatus описывает состояние инвестиции.
type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusCompleted InvestmentStatus = "completed"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
)

// CanTransition проверяет допустимость перехода статуса инвестиции.
// Завершённые и отменённые инвестиции терминальны.
func (s InvestmentStatus) CanTransition(to InvestmentStatus) bool {
	return s == InvestmentStatusActive &&
		(to == InvestmentStatusCompleted || to == InvestmentStatusCancelled)
}

// Investment описывает вложение средств в тарифный план.
type Investment struct {
	ID            int64
	AccountID     int64
	PlanID        int64
	Amount        decimal.Decimal
	Currency      Currency
	StartDate     time.Time
	EndDate       time.Time
	LastPayout    *time.Time
	AccruedReturn decimal.Decimal
	Status        InvestmentStatus
	CreatedAt     time.Time
}

// Progress возвращает прогресс инвестиции в процентах от 0 до 100.
// Чистое вычисление по времени, без изменения состояния.
func (i *Investment) Progress(now time.Time) float64 {
	total := i.EndDate.Sub(i.StartDate)
	if total <= 0 {
		return 100
	}
	p := float64(now.Sub(i.StartDate)) / float64(total) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// TransactionKind описывает тип финансовой операции.
type TransactionKind string

const (
	TransactionKindDeposit        TransactionKind = "deposit"
	TransactionKindWithdrawal     TransactionKind = "withdrawal"
	TransactionKindInvestment     TransactionKind = "investment"
	TransactionKindCommission     TransactionKind = "commission"
	TransactionKindBonus          TransactionKind = "bonus"
	TransactionKindPointsExchange TransactionKind = "points_exchange"
	TransactionKindPointsPurchase TransactionKind = "points_purchase"
)

// TransactionStatus описывает состояние финансовой операции.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// transactionTransitions задаёт исчерпывающую таблицу переходов статусов.
// Депозиты и выводы создаются в pending и переводятся в конечный статус
// ровно один раз явным решением администратора: completed при
// подтверждении, failed при отклонении.
var transactionTransitions = map[TransactionStatus]map[TransactionStatus]bool{
	TransactionStatusPending: {
		TransactionStatusCompleted: true,
		TransactionStatusFailed:    true,
	},
}

// CanTransition проверяет допустимость перехода статуса операции.
func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	return transactionTransitions[s][to]
}

// Transaction описывает финансовую операцию по счёту.
type Transaction struct {
	ID           int64
	AccountID    int64
	Kind         TransactionKind
	Currency     Currency
	Amount       decimal.Decimal
	Fee          decimal.Decimal
	Status       TransactionStatus
	Reference    string
	ProcessedBy  *int64
	RejectReason *string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// CommissionKind описывает происхождение комиссионного начисления.
type CommissionKind string

const (
	CommissionKindReferral CommissionKind = "referral"
	CommissionKindTeam     CommissionKind = "team"
	CommissionKindDaily    CommissionKind = "daily"
)

// Commission описывает комиссионное начисление. Записи только добавляются
// и никогда не изменяются после создания.
type Commission struct {
	ID         int64
	AccountID  int64
	SourceID   int64
	Kind       CommissionKind
	Level      int
	Percentage decimal.Decimal
	Amount     decimal.Decimal
	Currency   Currency
	CreatedAt  time.Time
}

// TeamMember описывает участника командной структуры счёта.
// Уровень задаётся организационной иерархией и не обязан совпадать
// с глубиной реферальной цепочки.
type TeamMember struct {
	AccountID int64
	Level     int
}

// TaskValidation описывает способ подтверждения выполнения задания.
type TaskValidation string

const (
	TaskValidationAutomatic TaskValidation = "automatic"
	TaskValidationManual    TaskValidation = "manual"
)

// Task описывает микрозадание с вознаграждением в баллах.
type Task struct {
	ID            int64
	CreatorID     int64
	Title         string
	Description   string
	RewardPoints  decimal.Decimal
	MaxExecutions int
	Executions    int
	Validation    TaskValidation
	Active        bool
	CreatedAt     time.Time
}

// ExecutionStatus описывает состояние выполнения задания.
type ExecutionStatus string

const (
	ExecutionStatusPending  ExecutionStatus = "pending"
	ExecutionStatusApproved ExecutionStatus = "approved"
	ExecutionStatusRejected ExecutionStatus = "rejected"
)

// CanTransition проверяет допустимость перехода статуса выполнения.
// Выполнение может быть подтверждено или отклонено не более одного раза.
func (s ExecutionStatus) CanTransition(to ExecutionStatus) bool {
	return s == ExecutionStatusPending &&
		(to == ExecutionStatusApproved || to == ExecutionStatusRejected)
}

// TaskExecution описывает факт выполнения задания пользователем.
type TaskExecution struct {
	ID           int64
	TaskID       int64
	ExecutorID   int64
	Proof        string
	Status       ExecutionStatus
	ProcessedBy  *int64
	RejectReason *string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}
