package forms

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func paths(errs []SchemaError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Path)
	}
	return out
}

func TestValidateSchema_MinimalValid(t *testing.T) {
	in := `{"title":"T","pages":[{"id":"p1","title":"P1","elements":[{"id":"e1","type":"text","label":"L"}]}]}`

	res := ValidateSchema(decode(t, in))

	require.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	require.NotNil(t, res.Schema)
	assert.Equal(t, "T", res.Schema.Title)
	require.Len(t, res.Schema.Pages, 1)
	assert.Equal(t, TypeText, res.Schema.Pages[0].Elements[0].Type)
}

func TestValidateSchema_EmptyTitleAndPages(t *testing.T) {
	res := ValidateSchema(decode(t, `{"title":"","pages":[]}`))

	assert.False(t, res.Valid)
	assert.Nil(t, res.Schema)
	require.Len(t, res.Errors, 2)
	assert.ElementsMatch(t, []string{"title", "pages"}, paths(res.Errors))
}

func TestValidateSchema_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		in   string
		path string
	}{
		{"missing title", `{"pages":[{"id":"p","title":"P","elements":[]}]}`, "title"},
		{"blank title", `{"title":"  ","pages":[{"id":"p","title":"P","elements":[]}]}`, "title"},
		{"missing pages", `{"title":"T"}`, "pages"},
		{"pages not array", `{"title":"T","pages":{}}`, "pages"},
		{"zero pages", `{"title":"T","pages":[]}`, "pages"},
		{"page without id", `{"title":"T","pages":[{"title":"P","elements":[]}]}`, "pages[0].id"},
		{"page without title", `{"title":"T","pages":[{"id":"p","elements":[]}]}`, "pages[0].title"},
		{"page without elements", `{"title":"T","pages":[{"id":"p","title":"P"}]}`, "pages[0].elements"},
		{"element without label", `{"title":"T","pages":[{"id":"p","title":"P","elements":[{"id":"a","type":"text"}]}]}`, "pages[0].elements[0].label"},
		{"unknown type", `{"title":"T","pages":[{"id":"p","title":"P","elements":[{"id":"a","type":"slider","label":"A"}]}]}`, "pages[0].elements[0].type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateSchema(decode(t, tt.in))
			assert.False(t, res.Valid)
			assert.Contains(t, paths(res.Errors), tt.path)
		})
	}
}

func TestValidateSchema_NotAnObject(t *testing.T) {
	res := ValidateSchema([]interface{}{"x"})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "", res.Errors[0].Path)
}

func TestValidateSchema_ChoiceNeedsOptions(t *testing.T) {
	for _, typ := range []string{"radio", "checkbox", "select", "multiselect"} {
		t.Run(typ, func(t *testing.T) {
			in := `{"title":"T","pages":[{"id":"p","title":"P","elements":[
				{"id":"ok","type":"text","label":"OK"},
				{"id":"c","type":"` + typ + `","label":"C"}]}]}`
			res := ValidateSchema(decode(t, in))
			assert.False(t, res.Valid)
			assert.Equal(t, []string{"pages[0].elements[1].options"}, paths(res.Errors))

			in = `{"title":"T","pages":[{"id":"p","title":"P","elements":[
				{"id":"c","type":"` + typ + `","label":"C","options":[]}]}]}`
			res = ValidateSchema(decode(t, in))
			assert.Equal(t, []string{"pages[0].elements[0].options"}, paths(res.Errors))
		})
	}
}

func TestValidateSchema_DuplicateIDs(t *testing.T) {
	in := `{"title":"T","pages":[
		{"id":"p1","title":"P1","elements":[
			{"id":"a","type":"text","label":"A"},
			{"id":"b","type":"text","label":"B"},
			{"id":"a","type":"text","label":"A again"}]},
		{"id":"p2","title":"P2","elements":[
			{"id":"a","type":"text","label":"A thrice"},
			{"id":"b","type":"text","label":"B again"},
			{"id":"c","type":"text","label":"C"}]}]}`

	res := ValidateSchema(decode(t, in))

	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "pages[0].elements[2].id", res.Errors[0].Path)
	assert.Contains(t, res.Errors[0].Message, `"a"`)
	assert.Equal(t, "pages[1].elements[1].id", res.Errors[1].Path)
	assert.Contains(t, res.Errors[1].Message, `"b"`)
}

func TestValidateSchema_ConditionalLogic(t *testing.T) {
	base := func(logic string) string {
		return `{"title":"T","pages":[{"id":"p","title":"P","elements":[
			{"id":"hasAllergy","type":"radio","label":"Allergies?","options":[{"label":"Yes","value":true},{"label":"No","value":false}]},
			{"id":"allergyDetails","type":"textarea","label":"Details","conditionalLogic":` + logic + `}]}]}`
	}

	res := ValidateSchema(decode(t, base(`{"field":"hasAllergy","operator":"equals","value":true,"action":"require"}`)))
	require.True(t, res.Valid, res.Errors)
	rules := res.Schema.Pages[0].Elements[1].ConditionalLogic.Rules
	require.Len(t, rules, 1)
	assert.Equal(t, ActionRequire, rules[0].Action)

	res = ValidateSchema(decode(t, base(`[{"field":"hasAllergy","operator":"is_not_empty","action":"show"}]`)))
	assert.True(t, res.Valid, res.Errors)

	tests := []struct {
		name  string
		logic string
		path  string
	}{
		{"unknown field", `{"field":"nope","operator":"equals","value":1,"action":"show"}`, "pages[0].elements[1].conditionalLogic.field"},
		{"self reference", `{"field":"allergyDetails","operator":"is_empty","action":"hide"}`, "pages[0].elements[1].conditionalLogic.field"},
		{"unknown operator", `{"field":"hasAllergy","operator":"matches","value":1,"action":"show"}`, "pages[0].elements[1].conditionalLogic.operator"},
		{"unknown action", `[{"field":"hasAllergy","operator":"equals","value":true,"action":"explode"}]`, "pages[0].elements[1].conditionalLogic[0].action"},
		{"missing value", `{"field":"hasAllergy","operator":"equals","action":"show"}`, "pages[0].elements[1].conditionalLogic.value"},
		{"wrong shape", `"show"`, "pages[0].elements[1].conditionalLogic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateSchema(decode(t, base(tt.logic)))
			assert.False(t, res.Valid)
			assert.Contains(t, paths(res.Errors), tt.path)
		})
	}
}

func TestValidateSchema_ValidationRules(t *testing.T) {
	el := func(rules string) string {
		return `{"title":"T","pages":[{"id":"p","title":"P","elements":[
			{"id":"email","type":"email","label":"Email"},
			{"id":"x","type":"text","label":"X","validation":` + rules + `}]}]}`
	}

	res := ValidateSchema(decode(t, el(`{"minLength":2,"maxLength":10,"pattern":"^[a-z]+$","compare":[{"field":"email","operator":"not_equals"}]}`)))
	assert.True(t, res.Valid, res.Errors)

	tests := []struct {
		name  string
		rules string
		path  string
	}{
		{"bad pattern", `{"pattern":"(["}`, "pages[0].elements[1].validation.pattern"},
		{"min over max", `{"min":5,"max":1}`, "pages[0].elements[1].validation"},
		{"fractional length", `{"minLength":1.5}`, "pages[0].elements[1].validation.minLength"},
		{"string min", `{"min":"3"}`, "pages[0].elements[1].validation.min"},
		{"bad date", `{"minDate":"yesterday"}`, "pages[0].elements[1].validation.minDate"},
		{"compare unknown", `{"compare":[{"field":"ghost","operator":"equals"}]}`, "pages[0].elements[1].validation.compare[0].field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateSchema(decode(t, el(tt.rules)))
			assert.False(t, res.Valid)
			assert.Contains(t, paths(res.Errors), tt.path)
		})
	}
}

func TestValidateSchema_VitalType(t *testing.T) {
	in := `{"title":"T","pages":[{"id":"p","title":"P","elements":[{"id":"bp","type":"vital_sign","label":"BP"}]}]}`
	res := ValidateSchema(decode(t, in))
	assert.Equal(t, []string{"pages[0].elements[0].vitalType"}, paths(res.Errors))
}

func TestValidateSchema_RoundTripAndNoMutation(t *testing.T) {
	in := `{"title":"Intake","description":"New patient intake","pages":[
		{"id":"p1","title":"About you","elements":[
			{"id":"name","type":"text","label":"Name","required":true,"validation":{"minLength":2}},
			{"id":"color","type":"select","label":"Color","options":["red","blue"]},
			{"id":"hasAllergy","type":"radio","label":"Allergies?","options":[{"label":"Yes","value":true},{"label":"No","value":false}]},
			{"id":"allergyDetails","type":"textarea","label":"Details","conditionalLogic":{"field":"hasAllergy","operator":"equals","value":true,"action":"require"}},
			{"id":"intro","type":"heading","label":"Vitals"},
			{"id":"bp","type":"vital_sign","label":"Blood pressure","vitalType":"blood_pressure","unit":"mmHg"},
			{"id":"nickname","type":"text","label":"Nickname","required":false,"description":"","helpText":"optional",
				"conditionalLogic":[{"field":"name","operator":"equals","value":null,"action":"hide"}]}]}]}`

	raw := decode(t, in)
	snapshot := decode(t, in)

	first := ValidateSchema(raw)
	second := ValidateSchema(raw)

	require.True(t, first.Valid, first.Errors)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, raw)

	out, err := json.Marshal(first.Schema)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
	assert.Equal(t, snapshot, decode(t, string(out)))

	// a stored schema decodes and re-encodes unchanged as well
	var stored Schema
	require.NoError(t, json.Unmarshal(out, &stored))
	again, err := json.Marshal(stored)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(again))
	assert.Equal(t, "nickname", stored.Pages[0].Elements[6].ID)
	assert.False(t, stored.Pages[0].Elements[6].Required)
}

func TestValidateSchema_KeepsExplicitFalseRequired(t *testing.T) {
	in := `{"title":"T","pages":[{"id":"p1","title":"P1","elements":[{"id":"e1","type":"text","label":"L","required":false}]}]}`

	res := ValidateSchema(decode(t, in))
	require.True(t, res.Valid, res.Errors)

	out, err := json.Marshal(res.Schema)
	require.NoError(t, err)
	assert.Equal(t, decode(t, in), decode(t, string(out)))
}

func TestParseSchema_InvalidJSON(t *testing.T) {
	res := ParseSchema([]byte(`{"title":`))
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "invalid JSON")
}

func TestElementField_Variants(t *testing.T) {
	min := 1.0
	tests := []struct {
		el   Element
		want Field
	}{
		{Element{ID: "a", Type: TypeEmail}, TextField{}},
		{Element{ID: "b", Type: TypeNumber, Validation: &ValidationRules{Min: &min}}, NumberField{}},
		{Element{ID: "c", Type: TypeCheckbox}, ChoiceField{}},
		{Element{ID: "d", Type: TypeDate}, DateField{}},
		{Element{ID: "e", Type: TypeVitalSign}, VitalSignField{}},
		{Element{ID: "f", Type: TypeDosage}, DosageField{}},
		{Element{ID: "g", Type: TypeSignature}, FileField{}},
		{Element{ID: "h", Type: TypeDivider}, StaticContent{}},
	}
	for _, tt := range tests {
		got := tt.el.Field()
		assert.IsType(t, tt.want, got)
		assert.Equal(t, tt.el.ID, got.Element().ID)
	}

	nf := Element{Type: TypeNumber, Validation: &ValidationRules{Min: &min}}.Field().(NumberField)
	require.NotNil(t, nf.Min)
	assert.Equal(t, 1.0, *nf.Min)
	assert.True(t, Element{Type: TypeCheckbox}.Field().(ChoiceField).Multi)
}
