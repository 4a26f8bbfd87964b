package model

import "github.com/jwalitptl/telehealth-admin/internal/forms"

type FormStatus string

const (
	FormStatusDraft     FormStatus = "draft"
	FormStatusPublished FormStatus = "published"
	FormStatusArchived  FormStatus = "archived"
)

func (s FormStatus) Valid() bool {
	return s == FormStatusDraft || s == FormStatusPublished || s == FormStatusArchived
}

// Form is a persisted form schema.
type Form struct {
	Base
	forms.Schema
	Status  FormStatus `json:"status"`
	Version int        `json:"version"`
}

type SubmissionStatus string

const (
	SubmissionStatusDraft     SubmissionStatus = "draft"
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
)

type SubmissionMetadata struct {
	UserAgent string `json:"user_agent,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}

// FormSubmission holds a patient's answers keyed by element id.
type FormSubmission struct {
	Base
	FormID      string                  `json:"form_id"`
	FormVersion int                     `json:"form_version"`
	Data        map[string]interface{}  `json:"data"`
	Completion  int                     `json:"completion"`
	Status      SubmissionStatus        `json:"status"`
	Errors      []forms.ValidationError `json:"errors,omitempty"`
	Warnings    []forms.ValidationError `json:"warnings,omitempty"`
	SubmittedBy string                  `json:"submitted_by,omitempty"`
	Metadata    SubmissionMetadata      `json:"metadata"`
}
