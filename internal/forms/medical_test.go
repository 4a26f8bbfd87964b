package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVitalSigns(t *testing.T) {
	e := NewEngine()
	tests := []struct {
		name     string
		vital    VitalType
		unit     string
		value    interface{}
		severity Severity
	}{
		{"bp normal", VitalBloodPressure, "", "118/76", ""},
		{"bp spaced", VitalBloodPressure, "", " 120 / 80 ", ""},
		{"bp elevated", VitalBloodPressure, "", "150/95", SeverityWarning},
		{"bp low", VitalBloodPressure, "", "85/55", SeverityWarning},
		{"bp format", VitalBloodPressure, "", "120-80", SeverityError},
		{"bp inverted", VitalBloodPressure, "", "80/120", SeverityError},
		{"bp implausible", VitalBloodPressure, "", "300/80", SeverityError},
		{"hr normal", VitalHeartRate, "", 72.0, ""},
		{"hr string", VitalHeartRate, "", "72", ""},
		{"hr implausible", VitalHeartRate, "bpm", 400.0, SeverityError},
		{"hr not a number", VitalHeartRate, "", "fast", SeverityError},
		{"temp F", VitalTemperature, "F", 98.6, ""},
		{"temp F fever", VitalTemperature, "°F", 101.2, SeverityWarning},
		{"temp C", VitalTemperature, "celsius", 37.0, ""},
		{"temp C implausible", VitalTemperature, "C", 98.6, SeverityError},
		{"spo2 low", VitalOxygenSaturation, "%", 91.0, SeverityWarning},
		{"spo2 over 100", VitalOxygenSaturation, "", 101.0, SeverityError},
		{"weight kg", VitalWeight, "kg", 80.0, ""},
		{"weight implausible", VitalWeight, "lbs", 2000.0, SeverityError},
		{"height cm", VitalHeight, "cm", 180.0, ""},
		{"resp rate", VitalRespiratoryRate, "", 16.0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el := Element{ID: "v", Type: TypeVitalSign, Label: "Vital", VitalType: tt.vital, Unit: tt.unit}
			errs := e.ValidateField(el, map[string]interface{}{"v": tt.value})
			if tt.severity == "" {
				assert.Empty(t, errs)
				return
			}
			if assert.Len(t, errs, 1) {
				assert.Equal(t, tt.severity, errs[0].Severity)
				assert.Equal(t, ErrTypeVitalSign, errs[0].Type)
			}
		})
	}
}
