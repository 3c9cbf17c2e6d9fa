// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"reflect"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// validCurrencies contains ISO 4217 currency codes.
var validCurrencies = map[string]bool{
	"AED": true, "AFN": true, "ALL": true, "AMD": true, "ARS": true,
	"AUD": true, "AZN": true, "BAM": true, "BDT": true, "BGN": true,
	"BHD": true, "BND": true, "BOB": true, "BRL": true, "BTN": true,
	"BWP": true, "CAD": true, "CHF": true, "CLP": true, "CNY": true,
	"COP": true, "CRC": true, "CZK": true, "DKK": true, "DOP": true,
	"DZD": true, "EGP": true, "ETB": true, "EUR": true, "FJD": true,
	"GBP": true, "GEL": true, "GHS": true, "GTQ": true, "HKD": true,
	"HNL": true, "HUF": true, "IDR": true, "ILS": true, "INR": true,
	"IQD": true, "ISK": true, "JMD": true, "JOD": true, "JPY": true,
	"KES": true, "KGS": true, "KHR": true, "KRW": true, "KWD": true,
	"KZT": true, "LAK": true, "LBP": true, "LKR": true, "MAD": true,
	"MDL": true, "MGA": true, "MKD": true, "MMK": true, "MNT": true,
	"MUR": true, "MVR": true, "MXN": true, "MYR": true, "MZN": true,
	"NAD": true, "NGN": true, "NOK": true, "NPR": true, "NZD": true,
	"OMR": true, "PEN": true, "PHP": true, "PKR": true, "PLN": true,
	"PYG": true, "QAR": true, "RON": true, "RSD": true, "RUB": true,
	"RWF": true, "SAR": true, "SEK": true, "SGD": true, "THB": true,
	"TND": true, "TRY": true, "TWD": true, "TZS": true, "UAH": true,
	"UGX": true, "USD": true, "UYU": true, "UZS": true, "VND": true,
	"XAF": true, "XOF": true, "ZAR": true, "ZMW": true,
}

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterWith(v)
	}
}

// RegisterWith installs the custom tags and type funcs on v.
func RegisterWith(v *validator.Validate) {
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = v.RegisterValidation("iso4217", validateISO4217)
	_ = v.RegisterValidation("project_type", validateProjectType)
	_ = v.RegisterValidation("money", validateMoney)
}

// decimalValue lets numeric tags such as gt=0 apply to decimal fields.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return nil
}

// IsCurrency reports whether code is a supported ISO 4217 currency.
func IsCurrency(code string) bool {
	return validCurrencies[code]
}

func validateISO4217(fl validator.FieldLevel) bool {
	return validCurrencies[fl.Field().String()]
}

func validateProjectType(fl validator.FieldLevel) bool {
	return models.IsValidProjectType(models.ProjectType(fl.Field().String()))
}

// validateMoney accepts non-negative amounts with at most two decimal places.
func validateMoney(fl validator.FieldLevel) bool {
	var f float64
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		f = fl.Field().Float()
	default:
		return false
	}
	d := decimal.NewFromFloat(f)
	return !d.IsNegative() && d.Round(2).Equal(d)
}
