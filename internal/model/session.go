package model

import "time"

type SessionType string

const (
	SessionTypeVideo SessionType = "video"
	SessionTypePhone SessionType = "phone"
	SessionTypeChat  SessionType = "chat"
)

type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
	SessionStatusNoShow     SessionStatus = "no_show"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusInProgress, SessionStatusCompleted,
		SessionStatusCancelled, SessionStatusNoShow:
		return true
	}
	return false
}

// Terminal sessions can't change status again.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled || s == SessionStatusNoShow
}

// Session is a scheduled telehealth consultation.
type Session struct {
	Base
	PatientID       string        `json:"patient_id" validate:"required"`
	ProviderID      string        `json:"provider_id" validate:"required"`
	Type            SessionType   `json:"type" validate:"required,oneof=video phone chat"`
	ScheduledAt     time.Time     `json:"scheduled_at" validate:"required"`
	DurationMinutes int           `json:"duration_minutes" validate:"gt=0,lte=480"`
	Status          SessionStatus `json:"status"`
	Notes           string        `json:"notes,omitempty"`
	JoinURL         string        `json:"join_url,omitempty" validate:"omitempty,url"`
}
