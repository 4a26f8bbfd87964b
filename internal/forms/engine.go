package forms

import (
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jwalitptl/telehealth-admin/pkg/validator"
	"github.com/jwalitptl/telehealth-admin/pkg/values"
)

// Severity of a validation finding. Only errors make a submission invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ErrorType classifies a validation finding.
type ErrorType string

const (
	ErrTypeRequired  ErrorType = "required"
	ErrTypeEmail     ErrorType = "email"
	ErrTypePhone     ErrorType = "phone"
	ErrTypeURL       ErrorType = "url"
	ErrTypeNumber    ErrorType = "number"
	ErrTypeRange     ErrorType = "range"
	ErrTypeLength    ErrorType = "length"
	ErrTypePattern   ErrorType = "pattern"
	ErrTypeDate      ErrorType = "date"
	ErrTypeOption    ErrorType = "option"
	ErrTypeVitalSign ErrorType = "vital_sign"
	ErrTypeDosage    ErrorType = "dosage"
	ErrTypeFile      ErrorType = "file"
	ErrTypeCompare   ErrorType = "compare"
)

// ValidationError is an advisory finding about one field.
type ValidationError struct {
	FieldID    string    `json:"fieldId"`
	FieldLabel string    `json:"fieldLabel"`
	Message    string    `json:"message"`
	Severity   Severity  `json:"severity"`
	Type       ErrorType `json:"type"`
}

// Result is the outcome of validating a full submission.
type Result struct {
	Valid      bool                  `json:"isValid"`
	Errors     []ValidationError     `json:"errors"`
	Warnings   []ValidationError     `json:"warnings"`
	States     map[string]FieldState `json:"states"`
	Completion int                   `json:"completion"`
}

var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"}

// Engine validates answers against form elements. It is safe for concurrent
// use. Each distinct pattern is compiled once and reused.
type Engine struct {
	v        *validator.Validator
	patterns sync.Map // pattern -> *regexp.Regexp, nil when it does not compile
}

// NewEngine returns an engine backed by the shared validator.
func NewEngine() *Engine {
	return &Engine{v: validator.Default()}
}

// Validate runs every visible input element against data. data is not
// modified.
func (e *Engine) Validate(elements []Element, data map[string]interface{}) Result {
	res := Result{
		Errors:     []ValidationError{},
		Warnings:   []ValidationError{},
		States:     States(elements, data),
		Completion: Completion(elements, data),
	}
	for _, el := range elements {
		for _, finding := range e.ValidateField(el, data) {
			if finding.Severity == SeverityWarning {
				res.Warnings = append(res.Warnings, finding)
			} else {
				res.Errors = append(res.Errors, finding)
			}
		}
	}
	res.Valid = len(res.Errors) == 0
	return res
}

// ValidateSchema validates data against every element of a schema.
func (e *Engine) ValidateSchema(s *Schema, data map[string]interface{}) Result {
	return e.Validate(s.Elements(), data)
}

// ValidateField checks one element. Hidden elements yield nothing; an empty
// required element yields only the required error.
func (e *Engine) ValidateField(el Element, data map[string]interface{}) []ValidationError {
	if !el.IsInput() {
		return nil
	}
	state := EvaluateState(el, data)
	if !state.Visible {
		return nil
	}

	value := data[el.ID]
	if values.IsEmpty(value) {
		if state.Required {
			return []ValidationError{newError(el, ErrTypeRequired, "%s is required", el.Label)}
		}
		return nil
	}

	var out []ValidationError
	switch f := el.Field().(type) {
	case TextField:
		out = e.checkText(f, value)
	case NumberField:
		out = checkNumber(f, value)
	case ChoiceField:
		out = checkChoice(f, value)
	case DateField:
		out = checkDate(f, value)
	case VitalSignField:
		out = checkVitalSign(f, value)
	case DosageField:
		out = checkDosage(f.Element(), value)
	case FileField:
		out = checkFile(f, value)
	}
	out = append(out, checkCompare(el, value, data)...)

	if el.Validation != nil && el.Validation.Message != "" {
		for i := range out {
			if out[i].Severity == SeverityError && out[i].Type != ErrTypeCompare {
				out[i].Message = el.Validation.Message
			}
		}
	}
	return out
}

func (e *Engine) checkText(f TextField, value interface{}) []ValidationError {
	el := f.Element()
	s, ok := value.(string)
	if !ok {
		return []ValidationError{newError(el, ErrTypePattern, "%s must be text", el.Label)}
	}

	var out []ValidationError
	switch el.Type {
	case TypeEmail:
		if !e.v.IsEmail(strings.TrimSpace(s)) {
			out = append(out, newError(el, ErrTypeEmail, "%s must be a valid email address", el.Label))
		}
	case TypePhone:
		if !validator.IsPhone(s) {
			out = append(out, newError(el, ErrTypePhone, "%s must be a valid phone number", el.Label))
		}
	case TypeURL:
		if e.v.Var(s, "url") != nil {
			out = append(out, newError(el, ErrTypeURL, "%s must be a valid URL", el.Label))
		}
	}

	n := utf8.RuneCountInString(s)
	if f.MinLength != nil && n < *f.MinLength {
		out = append(out, newError(el, ErrTypeLength, "%s must be at least %d characters", el.Label, *f.MinLength))
	}
	if f.MaxLength != nil && n > *f.MaxLength {
		out = append(out, newError(el, ErrTypeLength, "%s must be at most %d characters", el.Label, *f.MaxLength))
	}
	if f.Pattern != "" {
		if re := e.pattern(f.Pattern); re != nil && !re.MatchString(s) {
			out = append(out, newError(el, ErrTypePattern, "%s has an invalid format", el.Label))
		}
	}
	return out
}

func (e *Engine) pattern(p string) *regexp.Regexp {
	if cached, ok := e.patterns.Load(p); ok {
		return cached.(*regexp.Regexp)
	}
	re, err := regexp.Compile(p)
	if err != nil {
		re = nil
	}
	e.patterns.Store(p, re)
	return re
}

func checkNumber(f NumberField, value interface{}) []ValidationError {
	el := f.Element()
	n, ok := values.ToFloat(value)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return []ValidationError{newError(el, ErrTypeNumber, "%s must be a valid number", el.Label)}
	}
	if f.Min != nil && n < *f.Min {
		return []ValidationError{newError(el, ErrTypeRange, "%s must be at least %s", el.Label, fmtNum(*f.Min))}
	}
	if f.Max != nil && n > *f.Max {
		return []ValidationError{newError(el, ErrTypeRange, "%s must be at most %s", el.Label, fmtNum(*f.Max))}
	}
	return nil
}

func checkChoice(f ChoiceField, value interface{}) []ValidationError {
	el := f.Element()
	allowed := make([]interface{}, len(f.Options))
	for i, o := range f.Options {
		allowed[i] = o.Value
	}

	if f.Multi {
		selected, ok := values.ToSlice(value)
		if !ok {
			selected = []interface{}{value}
		}
		for _, v := range selected {
			if !values.In(v, allowed) {
				return []ValidationError{newError(el, ErrTypeOption, "%s contains an invalid selection", el.Label)}
			}
		}
		return nil
	}
	if !values.In(value, allowed) {
		return []ValidationError{newError(el, ErrTypeOption, "%s must be one of the listed options", el.Label)}
	}
	return nil
}

func checkDate(f DateField, value interface{}) []ValidationError {
	el := f.Element()
	if el.Type == TypeTime {
		s, _ := value.(string)
		for _, layout := range timeLayouts {
			if _, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return nil
			}
		}
		return []ValidationError{newError(el, ErrTypeDate, "%s must be a valid time", el.Label)}
	}

	t, ok := values.ToTime(value)
	if !ok {
		return []ValidationError{newError(el, ErrTypeDate, "%s must be a valid date", el.Label)}
	}
	if lo, ok := values.ToTime(f.MinDate); ok && f.MinDate != "" && t.Before(lo) {
		return []ValidationError{newError(el, ErrTypeDate, "%s must be on or after %s", el.Label, f.MinDate)}
	}
	if hi, ok := values.ToTime(f.MaxDate); ok && f.MaxDate != "" && t.After(hi) {
		return []ValidationError{newError(el, ErrTypeDate, "%s must be on or before %s", el.Label, f.MaxDate)}
	}
	return nil
}

func checkFile(f FileField, value interface{}) []ValidationError {
	el := f.Element()
	if len(f.Accept) == 0 {
		return nil
	}
	names, ok := values.ToSlice(value)
	if !ok {
		names = []interface{}{value}
	}
	for _, n := range names {
		name, ok := n.(string)
		if !ok {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		accepted := false
		for _, a := range f.Accept {
			if strings.ToLower(a) == ext {
				accepted = true
				break
			}
		}
		if !accepted {
			return []ValidationError{newError(el, ErrTypeFile, "%s must be one of %s", el.Label, strings.Join(f.Accept, ", "))}
		}
	}
	return nil
}

func checkCompare(el Element, value interface{}, data map[string]interface{}) []ValidationError {
	if el.Validation == nil {
		return nil
	}
	var out []ValidationError
	for _, rule := range el.Validation.Compare {
		other := data[rule.Field]
		if values.IsEmpty(other) {
			continue
		}
		if Holds(rule.Operator, value, other) {
			continue
		}
		msg := rule.Message
		if msg == "" {
			msg = el.Label + " does not match " + rule.Field
		}
		out = append(out, ValidationError{
			FieldID:    el.ID,
			FieldLabel: el.Label,
			Message:    msg,
			Severity:   SeverityError,
			Type:       ErrTypeCompare,
		})
	}
	return out
}

// Completion is the rounded percentage of visible input elements that hold a
// non-empty value. With no visible input elements the form is complete.
func Completion(elements []Element, data map[string]interface{}) int {
	visible, filled := 0, 0
	for _, el := range elements {
		if !el.IsInput() || !EvaluateState(el, data).Visible {
			continue
		}
		visible++
		if !values.IsEmpty(data[el.ID]) {
			filled++
		}
	}
	if visible == 0 {
		return 100
	}
	return int(math.Round(float64(filled) * 100 / float64(visible)))
}
