package validator

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"
)

type expenseInput struct {
	Amount decimal.Decimal  `binding:"money"`
	Update *decimal.Decimal `binding:"omitempty,money"`
	Color  string           `binding:"omitempty,hex_color"`
	Role   string           `binding:"omitempty,member_role"`
}

func TestRegister(t *testing.T) {
	Register()

	ptr := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	tests := []struct {
		name    string
		input   expenseInput
		wantErr bool
	}{
		{"valid_amount", expenseInput{Amount: decimal.RequireFromString("12.50")}, false},
		{"whole_amount", expenseInput{Amount: decimal.NewFromInt(30)}, false},
		{"zero_amount", expenseInput{Amount: decimal.Zero}, true},
		{"negative_amount", expenseInput{Amount: decimal.RequireFromString("-5")}, true},
		{"three_decimals", expenseInput{Amount: decimal.RequireFromString("10.005")}, true},
		{"too_large", expenseInput{Amount: decimal.RequireFromString("10000000000")}, true},
		{"nil_update_skipped", expenseInput{Amount: decimal.NewFromInt(1), Update: nil}, false},
		{"invalid_update", expenseInput{Amount: decimal.NewFromInt(1), Update: ptr("0")}, true},
		{"valid_update", expenseInput{Amount: decimal.NewFromInt(1), Update: ptr("7.25")}, false},
		{"short_hex_color", expenseInput{Amount: decimal.NewFromInt(1), Color: "#FFF"}, false},
		{"bad_hex_color", expenseInput{Amount: decimal.NewFromInt(1), Color: "red"}, true},
		{"admin_role", expenseInput{Amount: decimal.NewFromInt(1), Role: "admin"}, false},
		{"unknown_role", expenseInput{Amount: decimal.NewFromInt(1), Role: "owner"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
