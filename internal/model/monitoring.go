package model

import "time"

// MonitoringEvent is a captured client or server error, warning or info.
type MonitoringEvent struct {
	Base
	Level      string                 `json:"level"`
	Name       string                 `json:"name"`
	Message    string                 `json:"message"`
	Stack      string                 `json:"stack,omitempty"`
	Category   string                 `json:"category"`
	Severity   string                 `json:"severity"`
	Source     string                 `json:"source"`
	URL        string                 `json:"url,omitempty"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	SessionID  string                 `json:"session_id,omitempty"`
	UserID     string                 `json:"user_id,omitempty"`
	Context    map[string]interface{} `json:"context,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// PerformanceMetric is a named measurement such as a page load time.
type PerformanceMetric struct {
	Base
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
}
