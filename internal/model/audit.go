package model

// AuditLog is an append-only record of a mutation. Once written it is never
// updated or deleted.
type AuditLog struct {
	Base
	Action     string                 `json:"action"`
	ActorID    string                 `json:"actor_id"`
	ActorRole  string                 `json:"actor_role,omitempty"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Before     map[string]interface{} `json:"before,omitempty"`
	After      map[string]interface{} `json:"after,omitempty"`
	IPAddress  string                 `json:"ip_address,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
}

const (
	// Action types
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
)
