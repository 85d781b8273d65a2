// Package validation содержит функции валидации входных данных.
package validation

import (
	"crypto/rand"
	"math/big"
	"unicode"
)

const referralCodeDigits = 8

// NewReferralCode генерирует реферальный код: восемь случайных цифр
// и контрольная цифра по алгоритму Луна.
func NewReferralCode() (string, error) {
	buf := make([]byte, 0, referralCodeDigits+1)
	for i := 0; i < referralCodeDigits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		buf = append(buf, byte('0'+n.Int64()))
	}
	buf = append(buf, checkDigit(string(buf)))
	return string(buf), nil
}

// IsValidReferralCode проверяет формат и контрольную цифру реферального кода.
func IsValidReferralCode(code string) bool {
	if len(code) != referralCodeDigits+1 {
		return false
	}

	sum := 0
	double := false

	for i := len(code) - 1; i >= 0; i-- {
		ch := rune(code[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}

func checkDigit(digits string) byte {
	sum := 0
	double := true

	for i := len(digits) - 1; i >= 0; i-- {
		digit := int(digits[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return byte('0' + (10-sum%10)%10)
}
