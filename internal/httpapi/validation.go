package httpapi

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"accountservice/internal/domain"
)

const (
	passwordMinLen = 8
	passwordMaxLen = 64
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// strongPassword requires 8-64 characters with at least one lower-case
// letter, upper-case letter, digit and special character.
func strongPassword(s string) bool {
	n := len([]rune(s))
	if n < passwordMinLen || n > passwordMaxLen {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsSpace(r):
		default:
			special = true
		}
	}
	return lower && upper && digit && special
}

// validateRequest runs struct tag validation and reports failures as a
// domain validation error keyed by JSON field name.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return domain.NewValidationError(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "required"
	case "email":
		return "must be a valid email"
	case "password":
		return "must be 8-64 characters with lower, upper, digit and special character"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "invalid"
	}
}

// canonicalAccountID folds a UUID path id to its lower-case hyphenated
// form. ok is false when the id is not a UUID.
func canonicalAccountID(raw string) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return raw, false
	}
	return id.String(), true
}

// accountIDParam returns the {id} path value in canonical form and records
// it for the access log. Ids that are not UUIDs pass through unchanged and
// fail the store lookup.
func accountIDParam(r *http.Request) string {
	id, _ := canonicalAccountID(r.PathValue("id"))
	noteAccount(r.Context(), id)
	return id
}
