package model

import "time"

type Conversation struct {
	Base
	Subject        string     `json:"subject,omitempty"`
	PatientID      string     `json:"patient_id,omitempty"`
	ParticipantIDs []string   `json:"participant_ids" validate:"required,min=1"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
}

type Message struct {
	Base
	ConversationID string   `json:"conversation_id" validate:"required"`
	SenderID       string   `json:"sender_id"`
	Body           string   `json:"body" validate:"required,max=10000"`
	ReadBy         []string `json:"read_by,omitempty"`
}
