package forms

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jwalitptl/telehealth-admin/pkg/validator"
	"github.com/jwalitptl/telehealth-admin/pkg/values"
)

var bloodPressureRegex = regexp.MustCompile(`^\s*(\d{2,3})\s*/\s*(\d{2,3})\s*$`)

type vitalRange struct {
	unit                     string
	plausibleLo, plausibleHi float64
	normalLo, normalHi       float64
}

// Ranges per vital and unit. Values outside the plausible range are errors;
// values outside the normal range only warn. A zero normal range disables
// warnings.
var vitalRanges = map[VitalType]map[string]vitalRange{
	VitalHeartRate: {
		"bpm": {unit: "bpm", plausibleLo: 30, plausibleHi: 220, normalLo: 60, normalHi: 100},
	},
	VitalTemperature: {
		"f": {unit: "°F", plausibleLo: 90, plausibleHi: 110, normalLo: 97, normalHi: 99.5},
		"c": {unit: "°C", plausibleLo: 32, plausibleHi: 43, normalLo: 36.1, normalHi: 37.5},
	},
	VitalRespiratoryRate: {
		"breaths/min": {unit: "breaths/min", plausibleLo: 4, plausibleHi: 60, normalLo: 12, normalHi: 20},
	},
	VitalOxygenSaturation: {
		"%": {unit: "%", plausibleLo: 50, plausibleHi: 100, normalLo: 95, normalHi: 100},
	},
	VitalWeight: {
		"lb": {unit: "lb", plausibleLo: 1, plausibleHi: 1000},
		"kg": {unit: "kg", plausibleLo: 0.5, plausibleHi: 450},
	},
	VitalHeight: {
		"in": {unit: "in", plausibleLo: 12, plausibleHi: 108},
		"cm": {unit: "cm", plausibleLo: 30, plausibleHi: 275},
	},
}

var defaultUnits = map[VitalType]string{
	VitalHeartRate:        "bpm",
	VitalTemperature:      "f",
	VitalRespiratoryRate:  "breaths/min",
	VitalOxygenSaturation: "%",
	VitalWeight:           "lb",
	VitalHeight:           "in",
}

var unitAliases = map[string]string{
	"°f": "f", "fahrenheit": "f", "°c": "c", "celsius": "c",
	"lbs": "lb", "pounds": "lb", "kilograms": "kg",
	"inches": "in", "centimeters": "cm",
}

func normalizeUnit(kind VitalType, unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if alias, ok := unitAliases[u]; ok {
		u = alias
	}
	if _, ok := vitalRanges[kind][u]; ok {
		return u
	}
	return defaultUnits[kind]
}

func checkVitalSign(f VitalSignField, value interface{}) []ValidationError {
	el := f.Element()
	if f.Kind == VitalBloodPressure {
		return checkBloodPressure(el, value)
	}

	n, ok := values.ToFloat(value)
	if !ok {
		return []ValidationError{newError(el, ErrTypeVitalSign, "%s must be a number", el.Label)}
	}
	r, ok := vitalRanges[f.Kind][normalizeUnit(f.Kind, f.Unit)]
	if !ok {
		return nil
	}
	if n < r.plausibleLo || n > r.plausibleHi {
		return []ValidationError{newError(el, ErrTypeVitalSign,
			"%s must be between %s and %s %s", el.Label, fmtNum(r.plausibleLo), fmtNum(r.plausibleHi), r.unit)}
	}
	if r.normalHi > 0 && (n < r.normalLo || n > r.normalHi) {
		return []ValidationError{newWarning(el, ErrTypeVitalSign,
			"%s of %s %s is outside the normal range (%s-%s)", el.Label, fmtNum(n), r.unit, fmtNum(r.normalLo), fmtNum(r.normalHi))}
	}
	return nil
}

func checkBloodPressure(el Element, value interface{}) []ValidationError {
	s, _ := value.(string)
	m := bloodPressureRegex.FindStringSubmatch(s)
	if m == nil {
		return []ValidationError{newError(el, ErrTypeVitalSign, "%s must be formatted as systolic/diastolic, e.g. 120/80", el.Label)}
	}
	sys, _ := strconv.Atoi(m[1])
	dia, _ := strconv.Atoi(m[2])

	switch {
	case sys < 70 || sys > 250:
		return []ValidationError{newError(el, ErrTypeVitalSign, "%s systolic value must be between 70 and 250 mmHg", el.Label)}
	case dia < 40 || dia > 150:
		return []ValidationError{newError(el, ErrTypeVitalSign, "%s diastolic value must be between 40 and 150 mmHg", el.Label)}
	case sys <= dia:
		return []ValidationError{newError(el, ErrTypeVitalSign, "%s systolic value must be greater than diastolic", el.Label)}
	case sys >= 140 || dia >= 90:
		return []ValidationError{newWarning(el, ErrTypeVitalSign, "%s of %d/%d mmHg is elevated", el.Label, sys, dia)}
	case sys < 90 || dia < 60:
		return []ValidationError{newWarning(el, ErrTypeVitalSign, "%s of %d/%d mmHg is low", el.Label, sys, dia)}
	}
	return nil
}

func checkDosage(el Element, value interface{}) []ValidationError {
	s, ok := value.(string)
	if !ok || !validator.IsDosage(s) {
		return []ValidationError{newError(el, ErrTypeDosage, "%s must be a dose with a unit, e.g. 500 mg", el.Label)}
	}
	return nil
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func newWarning(el Element, typ ErrorType, format string, args ...interface{}) ValidationError {
	e := newError(el, typ, format, args...)
	e.Severity = SeverityWarning
	return e
}

func newError(el Element, typ ErrorType, format string, args ...interface{}) ValidationError {
	return ValidationError{
		FieldID:    el.ID,
		FieldLabel: el.Label,
		Message:    fmt.Sprintf(format, args...),
		Severity:   SeverityError,
		Type:       typ,
	}
}
