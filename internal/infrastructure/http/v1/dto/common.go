// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"bakery/internal/core/apperror"
	"bakery/internal/core/id"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
		// Decimals validate as numbers so gte/gt tags apply to prices.
		validate.RegisterCustomTypeFunc(func(v reflect.Value) any {
			d, ok := v.Interface().(decimal.Decimal)
			if !ok {
				return nil
			}
			return d.InexactFloat64()
		}, decimal.Decimal{})
	})
	return validate
}

// Validate checks the `validate` tags of req and reports every failing
// field as one ValidationError.
func Validate(req any) error {
	fe, err := FieldErrorsOf(req)
	if err != nil {
		return err
	}
	return fe.Err()
}

// FieldErrorsOf returns the failing `validate` tags of req by field path so
// callers can merge them with domain checks.
func FieldErrorsOf(req any) (apperror.FieldErrors, error) {
	fe := apperror.FieldErrors{}
	err := validatorInstance().Struct(req)
	if err == nil {
		return fe, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, apperror.NewValidation("invalid request").WithDetail("error", err.Error())
	}
	for _, v := range verrs {
		fe.Add(fieldPath(v.Namespace()), message(v))
	}
	return fe, nil
}

// fieldPath drops the root struct name: "CreateStockInRequest.items[0].qty" -> "items[0].qty".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(v validator.FieldError) string {
	switch v.Tag() {
	case "required":
		return "required"
	case "uuid":
		return "must be a UUID"
	case "gt":
		return "must be greater than " + v.Param()
	case "gte":
		return "must be greater than or equal to " + v.Param()
	case "min":
		return "must have at least " + v.Param() + " element(s)"
	case "max":
		return "must be at most " + v.Param() + " characters"
	case "oneof":
		return "must be one of: " + v.Param()
	}
	return "failed on " + v.Tag()
}

// ParseID parses a path or body identifier, naming the field on failure.
func ParseID(field, raw string) (id.ID, error) {
	parsed, err := id.Parse(strings.TrimSpace(raw))
	if err != nil || id.IsNil(parsed) {
		return id.ID{}, apperror.NewValidationFields(apperror.FieldErrors{field: "must be a UUID"})
	}
	return parsed, nil
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}
