package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/campuspay/campuspay-api/internal/pkg/money"
)

// Validator instance
var validate *validator.Validate

var (
	evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	txHashPattern     = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	nubanPattern      = regexp.MustCompile(`^[0-9]{10}$`)
	bankCodePattern   = regexp.MustCompile(`^[0-9]{3,6}$`)
)

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Amounts are validated through their string form
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Positive fiat amount, kobo precision
	validate.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && money.CheckAmount(d, money.NGN) == nil
	})

	// Positive token amount, 6 decimals
	validate.RegisterValidation("crypto_amount", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && money.CheckAmount(d, money.USDT) == nil
	})

	validate.RegisterValidation("crypto_type", func(fl validator.FieldLevel) bool {
		asset, err := money.ParseAsset(fl.Field().String())
		return err == nil && asset.IsCrypto()
	})

	validate.RegisterValidation("evm_address", func(fl validator.FieldLevel) bool {
		return evmAddressPattern.MatchString(fl.Field().String())
	})

	validate.RegisterValidation("tx_hash", func(fl validator.FieldLevel) bool {
		return txHashPattern.MatchString(fl.Field().String())
	})

	validate.RegisterValidation("nuban", func(fl validator.FieldLevel) bool {
		return nubanPattern.MatchString(fl.Field().String())
	})

	validate.RegisterValidation("bank_code", func(fl validator.FieldLevel) bool {
		return bankCodePattern.MatchString(fl.Field().String())
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"body": "Invalid request"}
	}

	out := make(map[string]string)
	for _, err := range errs {
		field := err.Field()
		switch err.Tag() {
		case "required":
			out[field] = "This field is required"
		case "email":
			out[field] = "Invalid email format"
		case "min":
			out[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			out[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			out[field] = "Value must be at least " + err.Param()
		case "lte":
			out[field] = "Value must be at most " + err.Param()
		case "url":
			out[field] = "Invalid URL format"
		case "oneof":
			out[field] = "Must be one of: " + err.Param()
		case "money":
			out[field] = "Amount must be positive with at most 2 decimal places"
		case "crypto_amount":
			out[field] = "Amount must be positive with at most 6 decimal places"
		case "crypto_type":
			out[field] = "Invalid crypto type. Must be: USDT or USDC"
		case "evm_address":
			out[field] = "Invalid wallet address"
		case "tx_hash":
			out[field] = "Invalid transaction hash"
		case "nuban":
			out[field] = "Account number must be 10 digits"
		case "bank_code":
			out[field] = "Invalid bank code"
		default:
			out[field] = "Invalid value"
		}
	}

	return out
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
