package forms

// Field is the type-specific view of an element. Exactly one variant exists
// per element type; Element.Field performs the narrowing.
type Field interface {
	Element() Element
	isField()
}

type TextField struct {
	el        Element
	MinLength *int
	MaxLength *int
	Pattern   string
}

type NumberField struct {
	el  Element
	Min *float64
	Max *float64
}

type ChoiceField struct {
	el      Element
	Options []Option
	Multi   bool
}

type DateField struct {
	el      Element
	MinDate string
	MaxDate string
}

type VitalSignField struct {
	el   Element
	Kind VitalType
	Unit string
}

type DosageField struct {
	el Element
}

type FileField struct {
	el     Element
	Accept []string
}

// StaticContent is display-only and never holds a value.
type StaticContent struct {
	el Element
}

func (f TextField) Element() Element      { return f.el }
func (f NumberField) Element() Element    { return f.el }
func (f ChoiceField) Element() Element    { return f.el }
func (f DateField) Element() Element      { return f.el }
func (f VitalSignField) Element() Element { return f.el }
func (f DosageField) Element() Element    { return f.el }
func (f FileField) Element() Element      { return f.el }
func (f StaticContent) Element() Element  { return f.el }

func (TextField) isField()      {}
func (NumberField) isField()    {}
func (ChoiceField) isField()    {}
func (DateField) isField()      {}
func (VitalSignField) isField() {}
func (DosageField) isField()    {}
func (FileField) isField()      {}
func (StaticContent) isField()  {}

// Field narrows the element to its variant. Unknown types never reach here
// because ValidateSchema rejects them; they fall back to TextField.
func (e Element) Field() Field {
	rules := e.Validation
	if rules == nil {
		rules = &ValidationRules{}
	}
	switch {
	case e.Type.IsStatic():
		return StaticContent{el: e}
	case e.Type.IsChoice():
		return ChoiceField{el: e, Options: e.Options, Multi: e.Type.IsMulti()}
	}
	switch e.Type {
	case TypeNumber:
		return NumberField{el: e, Min: rules.Min, Max: rules.Max}
	case TypeDate, TypeDateTime, TypeTime:
		return DateField{el: e, MinDate: rules.MinDate, MaxDate: rules.MaxDate}
	case TypeVitalSign:
		return VitalSignField{el: e, Kind: e.VitalType, Unit: e.Unit}
	case TypeDosage:
		return DosageField{el: e}
	case TypeFile, TypeSignature:
		return FileField{el: e, Accept: e.Accept}
	default:
		return TextField{el: e, MinLength: rules.MinLength, MaxLength: rules.MaxLength, Pattern: rules.Pattern}
	}
}

// IsInput reports whether the element collects a value.
func (e Element) IsInput() bool {
	return !e.Type.IsStatic()
}
