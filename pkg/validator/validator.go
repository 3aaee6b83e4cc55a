package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// RequestValidator plugs go-playground/validator into echo's Validator hook
type RequestValidator struct {
	validate *validator.Validate
}

// New returns a validator that understands decimal.Decimal fields
func New() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// decimal amounts are validated with the numeric tags (gt, gte) on their float value
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return &RequestValidator{validate: v}
}

// Validate implements echo.Validator
func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.validate.Struct(i); err != nil {
		return humanize(err)
	}
	return nil
}

// humanize flattens validator errors into one message naming each failing field
func humanize(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", field, fe.Param()))
		case "gte":
			if fe.Param() == "0" {
				msgs = append(msgs, field+" must not be negative")
			} else {
				msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
			}
		case "len":
			msgs = append(msgs, fmt.Sprintf("%s must be %s characters", field, fe.Param()))
		case "uuid":
			msgs = append(msgs, field+" must be a valid UUID")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, fe.Param()))
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
