package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report json names so messages match what callers send
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	// Prices are validated as numbers
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// ValidateEntry checks the catalog entry invariants
func ValidateEntry(e Entry) error {
	if err := validate.Struct(e); err != nil {
		return FormatValidationErrors(err)
	}

	// The catalog file is comma separated and line oriented
	var errs ValidationErrors
	if strings.ContainsAny(e.Brand, ",\r\n") {
		errs = append(errs, ValidationError{Field: "brand", Value: e.Brand, Message: "must not contain commas or line breaks"})
	}
	if strings.ContainsAny(e.Model, ",\r\n") {
		errs = append(errs, ValidationError{Field: "model", Value: e.Model, Message: "must not contain commas or line breaks"})
	}
	if strings.ContainsAny(e.ImagePath, "\r\n") {
		errs = append(errs, ValidationError{Field: "image_path", Value: e.ImagePath, Message: "must not contain line breaks"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) ValidationErrors {
	var errs ValidationErrors

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			errs = append(errs, ValidationError{
				Field:   e.Field(),
				Value:   fmt.Sprint(e.Value()),
				Message: getErrorMessage(e),
			})
		}
		return errs
	}

	return ValidationErrors{{Field: "entry", Message: err.Error()}}
}

// getErrorMessage returns a user-friendly error message for a validation error
func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return "this field is required"
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	default:
		return "invalid value"
	}
}
