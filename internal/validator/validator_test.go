package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type sample struct {
	Type     string          `validate:"project_type"`
	Currency string          `validate:"iso4217"`
	Amount   decimal.Decimal `validate:"gt=0,money"`
}

func TestCustomValidators(t *testing.T) {
	v := validator.New()
	RegisterWith(v)

	tests := []struct {
		name    string
		in      sample
		wantErr bool
	}{
		{"valid", sample{"Trip/Vacation", "INR", decimal.RequireFromString("12.50")}, false},
		{"unknown type", sample{"Holiday", "INR", decimal.NewFromInt(1)}, true},
		{"unknown currency", sample{"Wedding", "XYZ", decimal.NewFromInt(1)}, true},
		{"zero amount", sample{"Wedding", "EUR", decimal.Zero}, true},
		{"negative amount", sample{"Wedding", "EUR", decimal.NewFromInt(-5)}, true},
		{"too many decimals", sample{"Wedding", "EUR", decimal.RequireFromString("1.005")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
