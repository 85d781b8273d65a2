// Package commission вычисляет реферальные и командные комиссии по вложению.
package commission

import (
	"github.com/shopspring/decimal"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/exchange"
	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

// MaxLevels задаёт глубину начисления комиссий.
const MaxLevels = 3

var hundred = decimal.NewFromInt(100)

// Result описывает одно рассчитанное комиссионное начисление.
type Result struct {
	AccountID  int64
	Level      int
	Percentage decimal.Decimal
	Amount     decimal.Decimal
}

// Referral вычисляет реферальные комиссии по цепочке предков.
// Цепочка упорядочена от непосредственного реферера; записи глубже
// третьего уровня игнорируются. Пустая цепочка — не ошибка: реферер
// необязателен, результат просто пуст.
func Referral(principal decimal.Decimal, currency model.Currency, plan *model.InvestmentPlan, chain []int64) []Result {
	results := make([]Result, 0, MaxLevels)

	for i, accountID := range chain {
		if i >= MaxLevels {
			break
		}
		pct := plan.ReferralCommission[i]
		if !pct.IsPositive() {
			continue
		}
		results = append(results, Result{
			AccountID:  accountID,
			Level:      i + 1,
			Percentage: pct,
			Amount:     levelAmount(principal, pct, currency),
		})
	}

	return results
}

// Team вычисляет командные комиссии. Уровень участника задан его позицией
// в организационной иерархии; участники с уровнем вне 1..3 игнорируются.
func Team(principal decimal.Decimal, currency model.Currency, plan *model.InvestmentPlan, members []model.TeamMember) []Result {
	results := make([]Result, 0, len(members))

	for _, m := range members {
		if m.Level < 1 || m.Level > MaxLevels {
			continue
		}
		pct := plan.TeamCommission[m.Level-1]
		if !pct.IsPositive() {
			continue
		}
		results = append(results, Result{
			AccountID:  m.AccountID,
			Level:      m.Level,
			Percentage: pct,
			Amount:     levelAmount(principal, pct, currency),
		})
	}

	return results
}

// levelAmount округляет каждое начисление независимо до минимальной
// единицы валюты. Сумма уровней может отличаться от principal * total/100;
// этот дрейф принят и не корректируется.
func levelAmount(principal, pct decimal.Decimal, currency model.Currency) decimal.Decimal {
	return exchange.RoundToCurrency(principal.Mul(pct).Div(hundred), currency)
}
