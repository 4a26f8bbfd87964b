package model

// AvailabilityWindow is a weekly recurring slot; Weekday 0 is Sunday.
type AvailabilityWindow struct {
	Weekday int    `json:"weekday" validate:"min=0,max=6"`
	Start   string `json:"start" validate:"required,datetime=15:04"`
	End     string `json:"end" validate:"required,datetime=15:04"`
}

type Provider struct {
	Base
	FirstName         string               `json:"first_name" validate:"required"`
	LastName          string               `json:"last_name" validate:"required"`
	Email             string               `json:"email" validate:"required,email"`
	Phone             string               `json:"phone,omitempty" validate:"omitempty,phone"`
	Credentials       []string             `json:"credentials,omitempty"`
	LicenseNumber     string               `json:"license_number,omitempty"`
	LicenseState      string               `json:"license_state,omitempty"`
	Specialty         string               `json:"specialty,omitempty"`
	Availability      []AvailabilityWindow `json:"availability,omitempty" validate:"dive"`
	AcceptingPatients bool                 `json:"accepting_patients"`
}
