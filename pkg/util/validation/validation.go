// Package validation wraps go-playground/validator so every layer reports
// invalid input as a VALIDATION_FAILED DomainError.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/ticket-upgrade-agent/pkg/util/errorutil"
)

var (
	once     sync.Once
	validate *validator.Validate

	phonePattern = regexp.MustCompile(`^\+?[0-9()\- ]{10,20}$`)
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		// report json names, not Go field names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("ticketref", func(fl validator.FieldLevel) bool {
			return ValidTicketRef(fl.Field().String())
		})
		_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Struct validates v and returns a *errorutil.DomainError listing failing fields.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errorutil.NewValidationError(err.Error(), nil)
	}
	fields := make(map[string]any, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := describe(fe)
		fields[fe.Field()] = msg
		msgs = append(msgs, msg)
	}
	return errorutil.NewValidationError(strings.Join(msgs, "; "), map[string]any{"fields": fields})
}

// Decode converts a loosely typed argument map into T and validates it.
func Decode[T any](args map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(args)
	if err != nil {
		return out, errorutil.NewValidationError("arguments are not valid JSON", nil)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errorutil.NewValidationError(fmt.Sprintf("invalid arguments: %v", err), nil)
	}
	if err := Struct(out); err != nil {
		return out, err
	}
	return out, nil
}

// ValidTicketRef accepts ticket UUIDs, ticket numbers like TKT-20240101 and bare numeric ids.
func ValidTicketRef(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-':
		default:
			return false
		}
	}
	return true
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "ticketref":
		return fmt.Sprintf("%s %q is not a valid ticket id", fe.Field(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "phone":
		return fmt.Sprintf("%s is not a valid phone number", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a UUID", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
