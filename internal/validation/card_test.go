package validation

import "testing"

func TestIsValidCardNumber(t *testing.T) {
	tests := []struct {
		name  string
		card  string
		valid bool
	}{
		{
			name:  "16 digits",
			card:  "8600123456789012",
			valid: true,
		},
		{
			name:  "19 digits",
			card:  "8600123456789012345",
			valid: true,
		},
		{
			name:  "spaces are ignored",
			card:  "8600 1234 5678 9012",
			valid: true,
		},
		{
			name:  "too short",
			card:  "860012345678901",
			valid: false,
		},
		{
			name:  "too long",
			card:  "86001234567890123456",
			valid: false,
		},
		{
			name:  "contains letters",
			card:  "8600a23456789012",
			valid: false,
		},
		{
			name:  "empty string",
			card:  "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidCardNumber(tt.card)
			if got != tt.valid {
				t.Fatalf("IsValidCardNumber(%q) = %v, want %v", tt.card, got, tt.valid)
			}
		})
	}
}

func TestNormalizeCardNumber(t *testing.T) {
	if got := NormalizeCardNumber("8600 1234-5678 9012"); got != "8600123456789012" {
		t.Fatalf("NormalizeCardNumber = %q", got)
	}
}

func TestIsDigits(t *testing.T) {
	if !IsDigits("0123") {
		t.Fatalf("expected digits")
	}
	if IsDigits("") || IsDigits("12a") || IsDigits("+12") {
		t.Fatalf("expected non-digits")
	}
}
