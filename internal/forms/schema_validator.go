package forms

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/jwalitptl/telehealth-admin/pkg/values"
)

// SchemaError is one structural problem, located by a path such as
// "pages[0].elements[2].options".
type SchemaError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e SchemaError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// SchemaResult is the outcome of ValidateSchema. Schema is set only when
// Valid is true.
type SchemaResult struct {
	Valid  bool          `json:"isValid"`
	Schema *Schema       `json:"schema,omitempty"`
	Errors []SchemaError `json:"errors"`
}

// ParseSchema decodes JSON and validates the result.
func ParseSchema(data []byte) SchemaResult {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return SchemaResult{Errors: []SchemaError{{Message: fmt.Sprintf("invalid JSON: %v", err)}}}
	}
	return ValidateSchema(raw)
}

// ValidateSchema checks an untyped form definition (as produced by a JSON or
// YAML decoder) and, when it is well-formed, decodes it into a Schema. The
// input is never modified.
func ValidateSchema(raw interface{}) SchemaResult {
	c := &schemaChecker{
		ids:      make(map[string]bool),
		reported: make(map[string]bool),
	}
	c.checkRoot(raw)
	c.checkReferences()

	if len(c.errs) > 0 {
		return SchemaResult{Errors: c.errs}
	}

	schema, err := decodeSchema(raw)
	if err != nil {
		return SchemaResult{Errors: []SchemaError{{Message: err.Error()}}}
	}
	return SchemaResult{Valid: true, Schema: schema, Errors: []SchemaError{}}
}

func decodeSchema(raw interface{}) (*Schema, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return &s, nil
}

type reference struct {
	path  string
	field string
	owner string
}

type schemaChecker struct {
	errs     []SchemaError
	ids      map[string]bool
	reported map[string]bool
	refs     []reference
}

func (c *schemaChecker) add(path, format string, args ...interface{}) {
	c.errs = append(c.errs, SchemaError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (c *schemaChecker) checkRoot(raw interface{}) {
	root, ok := raw.(map[string]interface{})
	if !ok {
		c.add("", "form schema must be an object")
		return
	}

	c.requiredString(root, "title", "title", "form title is required")
	c.optionalString(root, "description", "description")

	pages, exists := root["pages"]
	if !exists || pages == nil {
		c.add("pages", "pages are required")
		return
	}
	list, ok := values.ToSlice(pages)
	if !ok {
		c.add("pages", "pages must be an array")
		return
	}
	if len(list) == 0 {
		c.add("pages", "at least one page is required")
		return
	}
	for i, p := range list {
		c.checkPage(fmt.Sprintf("pages[%d]", i), p)
	}
}

func (c *schemaChecker) checkPage(path string, raw interface{}) {
	page, ok := raw.(map[string]interface{})
	if !ok {
		c.add(path, "page must be an object")
		return
	}
	c.requiredString(page, "id", path+".id", "page id is required")
	c.requiredString(page, "title", path+".title", "page title is required")
	c.optionalString(page, "description", path+".description")

	elements, exists := page["elements"]
	if !exists || elements == nil {
		c.add(path+".elements", "elements are required")
		return
	}
	list, ok := values.ToSlice(elements)
	if !ok {
		c.add(path+".elements", "elements must be an array")
		return
	}
	for j, el := range list {
		c.checkElement(fmt.Sprintf("%s.elements[%d]", path, j), el)
	}
}

func (c *schemaChecker) checkElement(path string, raw interface{}) {
	el, ok := raw.(map[string]interface{})
	if !ok {
		c.add(path, "element must be an object")
		return
	}

	id, _ := el["id"].(string)
	if c.requiredString(el, "id", path+".id", "element id is required") {
		if c.ids[id] {
			if !c.reported[id] {
				c.add(path+".id", "duplicate element id %q", id)
				c.reported[id] = true
			}
		} else {
			c.ids[id] = true
		}
	}

	typ := ElementType("")
	if c.requiredString(el, "type", path+".type", "element type is required") {
		typ = ElementType(el["type"].(string))
		if !knownTypes[typ] {
			c.add(path+".type", "unknown element type %q", typ)
			typ = ""
		}
	}

	if typ != TypeDivider {
		c.requiredString(el, "label", path+".label", "element label is required")
	} else {
		c.optionalString(el, "label", path+".label")
	}
	c.optionalString(el, "description", path+".description")
	c.optionalString(el, "placeholder", path+".placeholder")
	c.optionalString(el, "unit", path+".unit")
	if v, exists := el["required"]; exists {
		if _, ok := v.(bool); !ok {
			c.add(path+".required", "required must be a boolean")
		}
	}

	if typ.IsChoice() {
		c.checkOptions(path+".options", el["options"], typ)
	}
	if typ == TypeVitalSign {
		vt, _ := el["vitalType"].(string)
		if !knownVitals[VitalType(vt)] {
			c.add(path+".vitalType", "vital_sign elements need a known vitalType")
		}
	}
	if v, exists := el["validation"]; exists && v != nil {
		c.checkValidation(path+".validation", v, id)
	}
	if v, exists := el["conditionalLogic"]; exists && v != nil {
		c.checkLogic(path+".conditionalLogic", v, id)
	}
}

func (c *schemaChecker) checkOptions(path string, raw interface{}, typ ElementType) {
	list, ok := values.ToSlice(raw)
	if !ok || len(list) == 0 {
		c.add(path, "%s elements need a non-empty options array", typ)
		return
	}
	for k, opt := range list {
		optPath := fmt.Sprintf("%s[%d]", path, k)
		switch o := opt.(type) {
		case string:
			if strings.TrimSpace(o) == "" {
				c.add(optPath, "option must not be blank")
			}
		case map[string]interface{}:
			c.requiredString(o, "label", optPath+".label", "option label is required")
			if _, exists := o["value"]; !exists {
				c.add(optPath+".value", "option value is required")
			}
		default:
			c.add(optPath, "option must be a string or an object")
		}
	}
}

func (c *schemaChecker) checkValidation(path string, raw interface{}, owner string) {
	rules, ok := raw.(map[string]interface{})
	if !ok {
		c.add(path, "validation must be an object")
		return
	}

	min, hasMin := c.number(rules, "min", path+".min", false)
	max, hasMax := c.number(rules, "max", path+".max", false)
	if hasMin && hasMax && min > max {
		c.add(path, "min must not exceed max")
	}
	minLen, hasMinLen := c.number(rules, "minLength", path+".minLength", true)
	maxLen, hasMaxLen := c.number(rules, "maxLength", path+".maxLength", true)
	if hasMinLen && hasMaxLen && minLen > maxLen {
		c.add(path, "minLength must not exceed maxLength")
	}

	if c.optionalString(rules, "pattern", path+".pattern") {
		if p, _ := rules["pattern"].(string); p != "" {
			if _, err := regexp.Compile(p); err != nil {
				c.add(path+".pattern", "pattern does not compile: %v", err)
			}
		}
	}
	for _, key := range []string{"minDate", "maxDate"} {
		if c.optionalString(rules, key, path+"."+key) {
			if s, _ := rules[key].(string); s != "" {
				if _, ok := values.ToTime(s); !ok {
					c.add(path+"."+key, "%s must be a date (YYYY-MM-DD)", key)
				}
			}
		}
	}
	c.optionalString(rules, "message", path+".message")

	compare, exists := rules["compare"]
	if !exists || compare == nil {
		return
	}
	list, ok := values.ToSlice(compare)
	if !ok {
		c.add(path+".compare", "compare must be an array")
		return
	}
	for k, r := range list {
		rulePath := fmt.Sprintf("%s.compare[%d]", path, k)
		rule, ok := r.(map[string]interface{})
		if !ok {
			c.add(rulePath, "compare rule must be an object")
			continue
		}
		if c.requiredString(rule, "field", rulePath+".field", "compare rule field is required") {
			c.refs = append(c.refs, reference{path: rulePath + ".field", field: rule["field"].(string), owner: owner})
		}
		c.operator(rule, rulePath+".operator")
		c.optionalString(rule, "message", rulePath+".message")
	}
}

func (c *schemaChecker) checkLogic(path string, raw interface{}, owner string) {
	if rule, ok := raw.(map[string]interface{}); ok {
		c.checkRule(path, rule, owner)
		return
	}
	list, ok := values.ToSlice(raw)
	if !ok {
		c.add(path, "conditionalLogic must be a rule object or an array of rules")
		return
	}
	for k, r := range list {
		rulePath := fmt.Sprintf("%s[%d]", path, k)
		rule, ok := r.(map[string]interface{})
		if !ok {
			c.add(rulePath, "rule must be an object")
			continue
		}
		c.checkRule(rulePath, rule, owner)
	}
}

func (c *schemaChecker) checkRule(path string, rule map[string]interface{}, owner string) {
	if c.requiredString(rule, "field", path+".field", "rule field is required") {
		c.refs = append(c.refs, reference{path: path + ".field", field: rule["field"].(string), owner: owner})
	}
	op, ok := c.operator(rule, path+".operator")
	if ok && op.NeedsValue() {
		if _, exists := rule["value"]; !exists {
			c.add(path+".value", "rule value is required for operator %q", op)
		}
	}
	if c.requiredString(rule, "action", path+".action", "rule action is required") {
		if a := Action(rule["action"].(string)); !knownActions[a] {
			c.add(path+".action", "unknown action %q", a)
		}
	}
}

func (c *schemaChecker) checkReferences() {
	for _, ref := range c.refs {
		switch {
		case ref.field == ref.owner:
			c.add(ref.path, "element cannot reference itself")
		case !c.ids[ref.field]:
			c.add(ref.path, "references unknown field %q", ref.field)
		}
	}
}

func (c *schemaChecker) operator(obj map[string]interface{}, path string) (Operator, bool) {
	if !c.requiredString(obj, "operator", path, "operator is required") {
		return "", false
	}
	op := Operator(obj["operator"].(string))
	if !knownOperators[op] {
		c.add(path, "unknown operator %q", op)
		return "", false
	}
	return op, true
}

// requiredString records an error unless obj[key] is a non-blank string.
func (c *schemaChecker) requiredString(obj map[string]interface{}, key, path, msg string) bool {
	v, exists := obj[key]
	if !exists || v == nil {
		c.add(path, msg)
		return false
	}
	s, ok := v.(string)
	if !ok {
		c.add(path, "%s must be a string", key)
		return false
	}
	if strings.TrimSpace(s) == "" {
		c.add(path, msg)
		return false
	}
	return true
}

// optionalString records an error if obj[key] is present but not a string.
func (c *schemaChecker) optionalString(obj map[string]interface{}, key, path string) bool {
	v, exists := obj[key]
	if !exists || v == nil {
		return false
	}
	if _, ok := v.(string); !ok {
		c.add(path, "%s must be a string", key)
		return false
	}
	return true
}

func (c *schemaChecker) number(obj map[string]interface{}, key, path string, nonNegativeInt bool) (float64, bool) {
	v, exists := obj[key]
	if !exists || v == nil {
		return 0, false
	}
	if !values.IsNumber(v) {
		c.add(path, "%s must be a number", key)
		return 0, false
	}
	f, _ := values.ToFloat(v)
	if nonNegativeInt && (f < 0 || f != math.Trunc(f)) {
		c.add(path, "%s must be a non-negative integer", key)
		return 0, false
	}
	return f, true
}
