package monitoring

import "strings"

type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

func (l Level) Valid() bool {
	return l == LevelError || l == LevelWarning || l == LevelInfo
}

type Category string

const (
	CategoryNetwork        Category = "network"
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryValidation     Category = "validation"
	CategoryDatabase       Category = "database"
	CategoryAPI            Category = "api"
	CategoryComponent      Category = "component"
	CategoryUnknown        Category = "unknown"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Urgent severities bypass batching.
func (s Severity) Urgent() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// CriticalKeywords force an immediate flush when they appear in an error.
var CriticalKeywords = []string{"authentication", "authorization", "payment", "security"}

// categoryRules are checked in order; the first match wins.
var categoryRules = []struct {
	category Category
	keywords []string
}{
	{CategoryNetwork, []string{"network", "fetch", "timeout", "timed out", "econnrefused", "connection", "offline", "cors"}},
	{CategoryAuthentication, []string{"authentication", "unauthenticated", "login", "token", "credential", "401"}},
	{CategoryAuthorization, []string{"authorization", "unauthorized", "forbidden", "permission", "access denied", "403"}},
	{CategoryValidation, []string{"validation", "invalid", "required", "format"}},
	{CategoryDatabase, []string{"database", "firestore", "sql", "postgres", "mongo", "query", "document"}},
	{CategoryAPI, []string{"api", "endpoint", "status code", "500", "502", "503"}},
	{CategoryComponent, []string{"component", "render", "hook", "cannot read propert", "undefined is not"}},
}

// IsCritical reports whether message mentions a critical keyword.
func IsCritical(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range CriticalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Classify derives category and severity from an event's text. Warnings are
// capped at medium severity and info events are always low.
func Classify(level Level, name, message, stack string) (Category, Severity) {
	text := strings.ToLower(name + " " + message + " " + stack)

	category := CategoryUnknown
	for _, rule := range categoryRules {
		if containsAny(text, rule.keywords) {
			category = rule.category
			break
		}
	}

	severity := categorySeverity(category)
	if containsAny(text, CriticalKeywords) {
		severity = SeverityCritical
	}

	switch level {
	case LevelInfo:
		severity = SeverityLow
	case LevelWarning:
		if severity.Urgent() {
			severity = SeverityMedium
		}
	}
	return category, severity
}

func categorySeverity(c Category) Severity {
	switch c {
	case CategoryAuthentication, CategoryAuthorization, CategoryDatabase:
		return SeverityHigh
	case CategoryValidation:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
