// Package forms validates admin-authored intake form schemas and evaluates
// submissions against them: conditional visibility, required-ness,
// field and cross-field validation, and completion percentage.
package forms

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ElementType is the "type" discriminator of a form element.
type ElementType string

const (
	TypeText        ElementType = "text"
	TypeTextarea    ElementType = "textarea"
	TypeEmail       ElementType = "email"
	TypePhone       ElementType = "phone"
	TypeURL         ElementType = "url"
	TypeNumber      ElementType = "number"
	TypeSelect      ElementType = "select"
	TypeRadio       ElementType = "radio"
	TypeCheckbox    ElementType = "checkbox"
	TypeMultiSelect ElementType = "multiselect"
	TypeDate        ElementType = "date"
	TypeDateTime    ElementType = "datetime"
	TypeTime        ElementType = "time"
	TypeVitalSign   ElementType = "vital_sign"
	TypeDosage      ElementType = "dosage"
	TypeFile        ElementType = "file"
	TypeSignature   ElementType = "signature"
	TypeHeading     ElementType = "heading"
	TypeParagraph   ElementType = "paragraph"
	TypeDivider     ElementType = "divider"
)

var knownTypes = map[ElementType]bool{
	TypeText: true, TypeTextarea: true, TypeEmail: true, TypePhone: true, TypeURL: true,
	TypeNumber: true,
	TypeSelect: true, TypeRadio: true, TypeCheckbox: true, TypeMultiSelect: true,
	TypeDate: true, TypeDateTime: true, TypeTime: true,
	TypeVitalSign: true, TypeDosage: true,
	TypeFile: true, TypeSignature: true,
	TypeHeading: true, TypeParagraph: true, TypeDivider: true,
}

// IsChoice reports whether the type needs an options list.
func (t ElementType) IsChoice() bool {
	switch t {
	case TypeSelect, TypeRadio, TypeCheckbox, TypeMultiSelect:
		return true
	}
	return false
}

// IsMulti reports whether the element holds an array of selections.
func (t ElementType) IsMulti() bool {
	return t == TypeCheckbox || t == TypeMultiSelect
}

// IsStatic reports display-only content that never carries a value.
func (t ElementType) IsStatic() bool {
	switch t {
	case TypeHeading, TypeParagraph, TypeDivider:
		return true
	}
	return false
}

// VitalType selects the range table for a vital_sign element.
type VitalType string

const (
	VitalBloodPressure    VitalType = "blood_pressure"
	VitalHeartRate        VitalType = "heart_rate"
	VitalTemperature      VitalType = "temperature"
	VitalRespiratoryRate  VitalType = "respiratory_rate"
	VitalOxygenSaturation VitalType = "oxygen_saturation"
	VitalWeight           VitalType = "weight"
	VitalHeight           VitalType = "height"
)

var knownVitals = map[VitalType]bool{
	VitalBloodPressure: true, VitalHeartRate: true, VitalTemperature: true,
	VitalRespiratoryRate: true, VitalOxygenSaturation: true, VitalWeight: true, VitalHeight: true,
}

// Schema is a validated form definition. A decoded Schema re-encodes to
// exactly the document it was decoded from, including keys the typed view
// does not model and explicit empty values. Treat it as read-only.
type Schema struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Pages       []Page `json:"pages"`

	raw map[string]interface{}
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	type plain Schema
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Schema(p)
	s.raw = raw
	return nil
}

func (s Schema) MarshalJSON() ([]byte, error) {
	if s.raw != nil {
		return json.Marshal(s.raw)
	}
	type plain Schema
	return json.Marshal(plain(s))
}

// Page groups elements on one screen of the form.
type Page struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Elements    []Element `json:"elements"`
}

// Element holds the keys shared by every element type. Field() narrows it to
// the type-specific variant.
type Element struct {
	ID               string           `json:"id"`
	Type             ElementType      `json:"type"`
	Label            string           `json:"label"`
	Description      string           `json:"description,omitempty"`
	Placeholder      string           `json:"placeholder,omitempty"`
	Required         bool             `json:"required,omitempty"`
	DefaultValue     interface{}      `json:"defaultValue,omitempty"`
	Options          []Option         `json:"options,omitempty"`
	Validation       *ValidationRules `json:"validation,omitempty"`
	ConditionalLogic *Logic           `json:"conditionalLogic,omitempty"`
	VitalType        VitalType        `json:"vitalType,omitempty"`
	Unit             string           `json:"unit,omitempty"`
	Accept           []string         `json:"accept,omitempty"`
}

// ValidationRules are the per-element constraints.
type ValidationRules struct {
	Min       *float64      `json:"min,omitempty"`
	Max       *float64      `json:"max,omitempty"`
	MinLength *int          `json:"minLength,omitempty"`
	MaxLength *int          `json:"maxLength,omitempty"`
	Pattern   string        `json:"pattern,omitempty"`
	MinDate   string        `json:"minDate,omitempty"`
	MaxDate   string        `json:"maxDate,omitempty"`
	Message   string        `json:"message,omitempty"`
	Compare   []CompareRule `json:"compare,omitempty"`
}

// CompareRule relates an element's value to another element's value,
// e.g. a confirmation email equal to the email field.
type CompareRule struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Message  string   `json:"message,omitempty"`
}

// Option is a choice entry. Authors may write a bare string, which is kept
// as a string on re-encoding.
type Option struct {
	Label string      `json:"label"`
	Value interface{} `json:"value"`
	bare  bool
}

// NewOption builds a bare string option.
func NewOption(s string) Option {
	return Option{Label: s, Value: s, bare: true}
}

func (o *Option) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*o = NewOption(s)
		return nil
	}
	type plain Option
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("option must be a string or an object: %w", err)
	}
	*o = Option(p)
	return nil
}

func (o Option) MarshalJSON() ([]byte, error) {
	if o.bare {
		return json.Marshal(o.Label)
	}
	type plain Option
	return json.Marshal(plain(o))
}

// Operator compares a field value with a rule value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIsEmpty     Operator = "is_empty"
	OpIsNotEmpty  Operator = "is_not_empty"
)

var knownOperators = map[Operator]bool{
	OpEquals: true, OpNotEquals: true, OpContains: true, OpNotContains: true,
	OpGreaterThan: true, OpLessThan: true, OpIsEmpty: true, OpIsNotEmpty: true,
}

// NeedsValue reports whether a rule with this operator must carry a value.
func (o Operator) NeedsValue() bool {
	return o != OpIsEmpty && o != OpIsNotEmpty
}

// Action is what a satisfied rule does to its element.
type Action string

const (
	ActionShow    Action = "show"
	ActionHide    Action = "hide"
	ActionRequire Action = "require"
	ActionDisable Action = "disable"
	ActionEnable  Action = "enable"
)

var knownActions = map[Action]bool{
	ActionShow: true, ActionHide: true, ActionRequire: true, ActionDisable: true, ActionEnable: true,
}

// Rule is one conditional-logic rule.
type Rule struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
	Action   Action      `json:"action"`
}

// Logic is the conditionalLogic of an element. Authors may write a single
// rule object or an array; the original shape is kept on re-encoding.
type Logic struct {
	Rules  []Rule
	single bool
}

// NewLogic builds logic from an array of rules.
func NewLogic(rules ...Rule) *Logic {
	return &Logic{Rules: rules}
}

func (l *Logic) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var r Rule
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		*l = Logic{Rules: []Rule{r}, single: true}
		return nil
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return err
	}
	*l = Logic{Rules: rules}
	return nil
}

func (l Logic) MarshalJSON() ([]byte, error) {
	if l.single && len(l.Rules) == 1 {
		return json.Marshal(l.Rules[0])
	}
	if l.Rules == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.Rules)
}

// Elements flattens every page's elements in order.
func (s *Schema) Elements() []Element {
	var out []Element
	for _, p := range s.Pages {
		out = append(out, p.Elements...)
	}
	return out
}

// Element looks up an element by id.
func (s *Schema) Element(id string) (Element, bool) {
	for _, p := range s.Pages {
		for _, el := range p.Elements {
			if el.ID == id {
				return el, true
			}
		}
	}
	return Element{}, false
}
