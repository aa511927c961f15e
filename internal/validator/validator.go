// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"reflect"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"splitledger/internal/models"
)

var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// maxAmount is the largest amount a numeric(12,2) column can hold.
var maxAmount = decimal.New(1, 10)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		_ = v.RegisterValidation("hex_color", validateHexColor)
		_ = v.RegisterValidation("member_role", validateMemberRole)
		_ = v.RegisterValidation("money", validateMoney)
	}
}

// decimalValue lets numeric tags such as gt=0 apply to decimal fields.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func validateHexColor(fl validator.FieldLevel) bool {
	return hexColorRegex.MatchString(fl.Field().String())
}

func validateMemberRole(fl validator.FieldLevel) bool {
	return models.MemberRole(fl.Field().String()).Valid()
}

// validateMoney accepts positive amounts with at most two decimal places.
func validateMoney(fl validator.FieldLevel) bool {
	var d decimal.Decimal
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		d = decimal.NewFromFloat(fl.Field().Float())
	case reflect.String:
		parsed, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		d = parsed
	default:
		return false
	}
	return d.Sign() > 0 && d.Equal(d.Round(2)) && d.LessThan(maxAmount)
}
