package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// requestValidator подключает validator/v10 к echo через e.Validator
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// В сообщениях используются имена полей из JSON
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("strong_password", strongPassword); err != nil {
		panic(err)
	}

	return &requestValidator{validate: v}
}

// Validate реализует echo.Validator
func (rv *requestValidator) Validate(i interface{}) error {
	return rv.validate.Struct(i)
}

// strongPassword требует не меньше 6 символов, заглавную и строчную буквы и цифру
func strongPassword(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if len(p) < 6 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// validationMessage превращает ошибки validator в сообщение для клиента
func validationMessage(err error) string {
	var verr validator.ValidationErrors
	if !errors.As(err, &verr) {
		return "invalid request body"
	}

	msgs := make([]string, 0, len(verr))
	for _, fe := range verr {
		field := fe.Field()

		var msg string
		switch fe.Tag() {
		case "required":
			msg = fmt.Sprintf("%s is required", field)
		case "min":
			msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		case "max":
			msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		case "email":
			msg = "valid email is required"
		case "strong_password":
			msg = "password must be at least 6 characters with uppercase, lowercase, and number"
		default:
			msg = fmt.Sprintf("%s is invalid", field)
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}
