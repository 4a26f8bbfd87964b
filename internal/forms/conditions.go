package forms

import "github.com/jwalitptl/telehealth-admin/pkg/values"

// FieldState is the runtime state of an element for a given set of answers.
type FieldState struct {
	Visible  bool `json:"visible"`
	Required bool `json:"required"`
	Disabled bool `json:"disabled"`
}

// Holds evaluates op against a field value and a rule value.
func Holds(op Operator, fieldValue, ruleValue interface{}) bool {
	switch op {
	case OpEquals:
		return values.Equal(fieldValue, ruleValue)
	case OpNotEquals:
		return !values.Equal(fieldValue, ruleValue)
	case OpContains:
		return values.Contains(fieldValue, ruleValue)
	case OpNotContains:
		return !values.Contains(fieldValue, ruleValue)
	case OpGreaterThan:
		c, ok := values.Compare(fieldValue, ruleValue)
		return ok && c > 0
	case OpLessThan:
		c, ok := values.Compare(fieldValue, ruleValue)
		return ok && c < 0
	case OpIsEmpty:
		return values.IsEmpty(fieldValue)
	case OpIsNotEmpty:
		return !values.IsEmpty(fieldValue)
	default:
		return false
	}
}

// Evaluate reports whether the rule's condition holds for data.
func (r Rule) Evaluate(data map[string]interface{}) bool {
	return Holds(r.Operator, data[r.Field], r.Value)
}

// EvaluateState applies the element's conditional rules to data.
//
// show: visible only when some show rule holds. hide: hidden when any hide
// rule holds, and hide beats show. require: required when the element is
// required or any require rule holds. disable/enable: disabled when any
// disable rule holds, or when enable rules exist and none holds.
func EvaluateState(el Element, data map[string]interface{}) FieldState {
	state := FieldState{Visible: true, Required: el.Required}
	if el.ConditionalLogic == nil || len(el.ConditionalLogic.Rules) == 0 {
		return state
	}

	var hasShow, showMet, hideMet, hasEnable, enableMet, disableMet bool
	for _, r := range el.ConditionalLogic.Rules {
		met := r.Evaluate(data)
		switch r.Action {
		case ActionShow:
			hasShow = true
			showMet = showMet || met
		case ActionHide:
			hideMet = hideMet || met
		case ActionRequire:
			state.Required = state.Required || met
		case ActionDisable:
			disableMet = disableMet || met
		case ActionEnable:
			hasEnable = true
			enableMet = enableMet || met
		}
	}

	if hasShow && !showMet {
		state.Visible = false
	}
	if hideMet {
		state.Visible = false
	}
	state.Disabled = disableMet || (hasEnable && !enableMet)
	return state
}

// States evaluates every input element of the schema.
func States(elements []Element, data map[string]interface{}) map[string]FieldState {
	out := make(map[string]FieldState, len(elements))
	for _, el := range elements {
		if !el.IsInput() {
			continue
		}
		out[el.ID] = EvaluateState(el, data)
	}
	return out
}
