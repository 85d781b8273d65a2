// Package plan содержит правила валидации тарифных планов инвестирования.
package plan

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

// ErrPlanInactive возвращается при попытке вложиться в деактивированный план.
var (
	ErrPlanInactive = errors.New("plan is inactive")
	// ErrAmountOutOfRange возвращается для суммы вне границ плана.
	ErrAmountOutOfRange = errors.New("amount out of plan range")
)

// EnsureActive проверяет, что план доступен для новых вложений.
func EnsureActive(p *model.InvestmentPlan) error {
	if !p.Active {
		return ErrPlanInactive
	}
	return nil
}

// ValidateAmount проверяет сумму вложения по границам плана включительно.
func ValidateAmount(p *model.InvestmentPlan, amount decimal.Decimal, currency model.Currency) error {
	if amount.LessThan(p.Min(currency)) || amount.GreaterThan(p.Max(currency)) {
		return ErrAmountOutOfRange
	}
	return nil
}

// ValidateTopUp проверяет сумму пополнения действующей инвестиции.
// Пополнение ограничено минимальным шагом и верхней границей плана
// с учётом уже вложенного принципала.
func ValidateTopUp(p *model.InvestmentPlan, invested, addition decimal.Decimal, currency model.Currency) error {
	if addition.LessThan(p.MinAddition) {
		return ErrAmountOutOfRange
	}
	if invested.Add(addition).GreaterThan(p.Max(currency)) {
		return ErrAmountOutOfRange
	}
	return nil
}
