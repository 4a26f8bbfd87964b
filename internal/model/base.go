package model

import (
	"time"
)

// Base contains common fields for all models. The repository layer assigns
// and stamps them; callers never set them directly.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is a schemaless JSON object as held by the document store.
type Document = map[string]interface{}

// Collection names used by the document store.
const (
	CollectionPatients           = "patients"
	CollectionProviders          = "providers"
	CollectionOrders             = "orders"
	CollectionSessions           = "sessions"
	CollectionForms              = "forms"
	CollectionSubmissions        = "form_submissions"
	CollectionConversations      = "conversations"
	CollectionMessages           = "messages"
	CollectionAuditLogs          = "audit_logs"
	CollectionMonitoringEvents   = "monitoring_events"
	CollectionPerformanceMetrics = "performance_metrics"
)
