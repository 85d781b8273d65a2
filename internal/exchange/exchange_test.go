package exchange

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sanga-universeyes/cusinart-investment-sub001/internal/model"
)

func TestArToUsdt(t *testing.T) {
	r := DefaultRates()

	got, err := ArToUsdt(r, decimal.NewFromInt(50000))
	if err != nil {
		t.Fatalf("ArToUsdt error: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("ArToUsdt(50000) = %s, want 10", got)
	}
}

func TestUsdtToAr_RoundsToInteger(t *testing.T) {
	r := DefaultRates()

	got, err := UsdtToAr(r, decimal.RequireFromString("1.2345"))
	if err != nil {
		t.Fatalf("UsdtToAr error: %v", err)
	}
	if got.Exponent() < 0 {
		t.Fatalf("UsdtToAr result %s has fractional part", got)
	}
	if !got.Equal(decimal.NewFromInt(6173)) {
		t.Fatalf("UsdtToAr(1.2345) = %s, want 6173", got)
	}
}

func TestRoundTrip_WithinOneMinimalUnit(t *testing.T) {
	r := DefaultRates()

	amounts := []string{"1", "3.5", "10", "99.99", "250.17", "1000"}
	for _, s := range amounts {
		a := decimal.RequireFromString(s)

		ar, err := UsdtToAr(r, a)
		if err != nil {
			t.Fatalf("UsdtToAr(%s) error: %v", s, err)
		}
		back, err := ArToUsdt(r, ar)
		if err != nil {
			t.Fatalf("ArToUsdt(%s) error: %v", ar, err)
		}

		diff := back.Sub(a).Abs()
		if diff.GreaterThan(decimal.RequireFromString("0.01")) {
			t.Fatalf("round trip %s -> %s -> %s drifts by %s", s, ar, back, diff)
		}
	}
}

func TestPointsToAr_InvestorRateIsHigher(t *testing.T) {
	r := DefaultRates()
	points := decimal.NewFromInt(10)

	investor, err := PointsToAr(r, points, true)
	if err != nil {
		t.Fatalf("PointsToAr investor error: %v", err)
	}
	standard, err := PointsToAr(r, points, false)
	if err != nil {
		t.Fatalf("PointsToAr standard error: %v", err)
	}

	if !investor.GreaterThan(standard) {
		t.Fatalf("investor conversion %s must exceed standard %s", investor, standard)
	}
}

func TestPointsToUsdt_ComposesConversions(t *testing.T) {
	r := DefaultRates()

	got, err := PointsToUsdt(r, decimal.NewFromInt(100), false)
	if err != nil {
		t.Fatalf("PointsToUsdt error: %v", err)
	}
	// 100 баллов * 50 AR * 0.0002 = 1 USDT
	if !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("PointsToUsdt(100) = %s, want 1", got)
	}
}

func TestInvalidAmounts(t *testing.T) {
	r := DefaultRates()

	for _, a := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		if _, err := ArToUsdt(r, a); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ArToUsdt(%s): expected ErrInvalidAmount, got %v", a, err)
		}
		if _, err := UsdtToAr(r, a); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("UsdtToAr(%s): expected ErrInvalidAmount, got %v", a, err)
		}
		if _, err := PointsToAr(r, a, true); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("PointsToAr(%s): expected ErrInvalidAmount, got %v", a, err)
		}
	}
}

func TestRoundToCurrency(t *testing.T) {
	v := decimal.RequireFromString("12.345")

	if got := RoundToCurrency(v, model.CurrencyUSDT); !got.Equal(decimal.RequireFromString("12.35")) {
		t.Fatalf("RoundToCurrency(USDT) = %s, want 12.35", got)
	}
	if got := RoundToCurrency(v, model.CurrencyAR); !got.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("RoundToCurrency(AR) = %s, want 12", got)
	}
}

func TestWithdrawalFee(t *testing.T) {
	rate := decimal.RequireFromString("0.1")

	tests := []struct {
		name     string
		amount   string
		currency model.Currency
		fee      string
		net      string
	}{
		{"ar baseline", "5000", model.CurrencyAR, "500", "4500"},
		{"ar fee rounds to unit", "5001", model.CurrencyAR, "500", "4501"},
		{"ar fee rounds up", "5005", model.CurrencyAR, "501", "4504"},
		{"usdt two decimals", "33.33", model.CurrencyUSDT, "3.33", "30.00"},
		{"usdt fee rounds", "10.05", model.CurrencyUSDT, "1.01", "9.04"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tc.amount)
			fee, net := WithdrawalFee(amount, rate, tc.currency)

			if !fee.Equal(decimal.RequireFromString(tc.fee)) {
				t.Fatalf("WithdrawalFee(%s) fee = %s, want %s", tc.amount, fee, tc.fee)
			}
			if !net.Equal(decimal.RequireFromString(tc.net)) {
				t.Fatalf("WithdrawalFee(%s) net = %s, want %s", tc.amount, net, tc.net)
			}
			if !fee.Add(net).Equal(amount) {
				t.Fatalf("fee %s + net %s must equal amount %s", fee, net, tc.amount)
			}
		})
	}
}
