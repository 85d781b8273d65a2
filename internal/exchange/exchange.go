// Package exchange содержит чистые функции конвертации валют и баллов.
package exchange

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

// ErrInvalidAmount возвращается для отрицательной или нулевой суммы конвертации.
var ErrInvalidAmount = errors.New("invalid amount")

// Rates содержит действующий набор обменных курсов. Набор передаётся
// в вычисление целиком, чтобы один расчёт всегда использовал
// согласованные значения курсов.
type Rates struct {
	ArToUsdt           decimal.Decimal
	UsdtToAr           decimal.Decimal
	PointsToArInvestor decimal.Decimal
	PointsToArStandard decimal.Decimal
}

// DefaultRates возвращает курсы платформы по умолчанию.
func DefaultRates() Rates {
	return Rates{
		ArToUsdt:           decimal.RequireFromString("0.0002"),
		UsdtToAr:           decimal.NewFromInt(5000),
		PointsToArInvestor: decimal.NewFromInt(100),
		PointsToArStandard: decimal.NewFromInt(50),
	}
}

// RoundToCurrency округляет сумму до минимальной единицы валюты:
// два знака для USDT, целое число для AR.
func RoundToCurrency(amount decimal.Decimal, c model.Currency) decimal.Decimal {
	if c == model.CurrencyUSDT {
		return amount.Round(2)
	}
	return amount.Round(0)
}

// WithdrawalFee вычисляет комиссию за вывод от запрошенной суммы и чистую
// сумму к списанию. Комиссия округляется до минимальной единицы валюты,
// поэтому fee + net всегда равно amount с точностью до этой единицы.
func WithdrawalFee(amount, feeRate decimal.Decimal, c model.Currency) (fee, net decimal.Decimal) {
	fee = RoundToCurrency(amount.Mul(feeRate), c)
	net = amount.Sub(fee)
	return fee, net
}

// ArToUsdt конвертирует ариари в USDT с округлением до двух знаков.
func ArToUsdt(r Rates, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount.Mul(r.ArToUsdt).Round(2), nil
}

// UsdtToAr конвертирует USDT в ариари с округлением до целого:
// дробных единиц AR не существует.
func UsdtToAr(r Rates, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount.Mul(r.UsdtToAr).Round(0), nil
}

// PointsToAr конвертирует баллы в ариари. Курс инвестора строго выше
// курса обычного пользователя.
func PointsToAr(r Rates, points decimal.Decimal, isInvestor bool) (decimal.Decimal, error) {
	if !points.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	rate := r.PointsToArStandard
	if isInvestor {
		rate = r.PointsToArInvestor
	}
	return points.Mul(rate).Round(0), nil
}

// PointsToUsdt конвертирует баллы в USDT как композицию
// PointsToAr и ArToUsdt.
func PointsToUsdt(r Rates, points decimal.Decimal, isInvestor bool) (decimal.Decimal, error) {
	ar, err := PointsToAr(r, points, isInvestor)
	if err != nil {
		return decimal.Zero, err
	}
	return ArToUsdt(r, ar)
}

// Convert возвращает эквивалент баллов в указанной валюте.
func Convert(r Rates, points decimal.Decimal, target model.Currency, isInvestor bool) (decimal.Decimal, error) {
	if target == model.CurrencyUSDT {
		return PointsToUsdt(r, points, isInvestor)
	}
	return PointsToAr(r, points, isInvestor)
}
