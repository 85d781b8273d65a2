package validation

import "testing"

func TestNewReferralCode_ProducesValidCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := NewReferralCode()
		if err != nil {
			t.Fatalf("NewReferralCode error: %v", err)
		}
		if len(code) != referralCodeDigits+1 {
			t.Fatalf("code %q has length %d, want %d", code, len(code), referralCodeDigits+1)
		}
		if !IsValidReferralCode(code) {
			t.Fatalf("generated code %q fails validation", code)
		}
	}
}

func TestIsValidReferralCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"empty", "", false},
		{"too short", "1234", false},
		{"letters", "12345678a", false},
		{"bad check digit", "123456780", false},
		{"valid", "123456782", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidReferralCode(tt.code); got != tt.want {
				t.Fatalf("IsValidReferralCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}
