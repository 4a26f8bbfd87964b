package model

type PatientStatus string

const (
	PatientStatusPending   PatientStatus = "pending"
	PatientStatusActive    PatientStatus = "active"
	PatientStatusInactive  PatientStatus = "inactive"
	PatientStatusSuspended PatientStatus = "suspended"
)

func (s PatientStatus) Valid() bool {
	switch s {
	case PatientStatusPending, PatientStatusActive, PatientStatusInactive, PatientStatusSuspended:
		return true
	}
	return false
}

type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type Insurance struct {
	Provider     string `json:"provider,omitempty"`
	MemberID     string `json:"member_id,omitempty"`
	GroupNumber  string `json:"group_number,omitempty"`
	PolicyHolder string `json:"policy_holder,omitempty"`
}

type Patient struct {
	Base
	FirstName          string        `json:"first_name" validate:"required"`
	LastName           string        `json:"last_name" validate:"required"`
	Email              string        `json:"email" validate:"required,email"`
	Phone              string        `json:"phone,omitempty" validate:"omitempty,phone"`
	DateOfBirth        string        `json:"date_of_birth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Gender             string        `json:"gender,omitempty"`
	Address            *Address      `json:"address,omitempty"`
	Insurance          *Insurance    `json:"insurance,omitempty"`
	Tags               []string      `json:"tags,omitempty"`
	SubscriptionPlanID string        `json:"subscription_plan_id,omitempty"`
	Status             PatientStatus `json:"status"`
}
