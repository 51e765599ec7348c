package httpx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// TagStrongPassword requires an upper-case letter, a lower-case letter, a digit and one of @$!%*?&,
// with no characters outside that alphabet.
const TagStrongPassword = "strongpassword"

const passwordSpecials = "@$!%*?&"

// NewValidator returns a validator that reports fields by their json name and knows TagStrongPassword.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation(TagStrongPassword, strongPassword)
	return v
}

func strongPassword(fl validator.FieldLevel) bool {
	var upper, lower, digit, special bool
	for _, r := range fl.Field().String() {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return upper && lower && digit && special
}

// ValidationDetail renders validator errors as one human-readable line, fields in struct order.
func ValidationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters", fe.Field(), fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must be numeric", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case TagStrongPassword:
		return fmt.Sprintf("%s must contain at least one uppercase letter, one lowercase letter, one number, and one special character", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
