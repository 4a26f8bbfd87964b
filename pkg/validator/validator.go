package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	phoneDigits = regexp.MustCompile(`\d`)
	phoneShape  = regexp.MustCompile(`^\+?[\d\s().\-]+$`)
	dosageRegex = regexp.MustCompile(`(?i)^\d+(\.\d+)?\s*(mg|mcg|µg|g|kg|ml|l|units?|iu|meq|tablets?|tabs?|capsules?|caps?|drops?|puffs?|sprays?|patch(es)?)(\s*/\s*(day|dose|kg|hr|h|ml))?$`)
)

// Validator wraps go-playground's validator with the custom tags used
// across the service.
type Validator struct {
	v *validator.Validate
}

var (
	defaultOnce sync.Once
	defaultV    *Validator
)

// New returns a validator with phone and dosage tags registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("dosage", func(fl validator.FieldLevel) bool {
		return IsDosage(fl.Field().String())
	})
	return &Validator{v: v}
}

// jsonName reports fields by their JSON key so errors match request bodies.
func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// Default returns a shared instance; validator.Validate caches struct
// metadata and is safe for concurrent use.
func Default() *Validator {
	defaultOnce.Do(func() { defaultV = New() })
	return defaultV
}

// Engine exposes the underlying validator, e.g. for gin's binding engine.
func (v *Validator) Engine() *validator.Validate {
	return v.v
}

// Struct validates a struct and flattens failures into one error.
func (v *Validator) Struct(s interface{}) error {
	if err := v.v.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return FieldErrors(verrs)
		}
		return err
	}
	return nil
}

// Var validates a single value against a tag, e.g. Var(s, "email").
func (v *Validator) Var(value interface{}, tag string) error {
	return v.v.Var(value, tag)
}

// IsEmail uses go-playground's RFC 5322 email rule.
func (v *Validator) IsEmail(s string) bool {
	return v.v.Var(s, "required,email") == nil
}

// IsPhone accepts 10 to 15 digits with common formatting characters and an
// optional leading plus.
func IsPhone(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || !phoneShape.MatchString(s) {
		return false
	}
	if strings.Count(s, "+") > 1 || (strings.Contains(s, "+") && !strings.HasPrefix(s, "+")) {
		return false
	}
	n := len(phoneDigits.FindAllString(s, -1))
	return n >= 10 && n <= 15
}

// IsDosage matches an amount followed by a unit, e.g. "500 mg", "2 tablets",
// "10 mg/kg".
func IsDosage(s string) bool {
	return dosageRegex.MatchString(strings.TrimSpace(s))
}

// FieldError is a single struct validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field failures.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldErrors converts go-playground errors into ValidationError.
func FieldErrors(verrs validator.ValidationErrors) *ValidationError {
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "phone":
		return "must be a valid phone number"
	case "dosage":
		return "must be a dosage such as 500 mg"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
