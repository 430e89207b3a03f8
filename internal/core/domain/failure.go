package domain

import "time"

// Category labels the origin of a failure.
type Category string

const (
	CategoryNetwork    Category = "network"
	CategoryValidation Category = "validation"
	CategoryBackend    Category = "backend"
	CategoryRuntime    Category = "runtime"
	CategoryUI         Category = "ui"
	CategoryCheckout   Category = "checkout"
)

// Categories lists every known category.
var Categories = []Category{
	CategoryNetwork,
	CategoryValidation,
	CategoryBackend,
	CategoryRuntime,
	CategoryUI,
	CategoryCheckout,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Severity ranks how urgent a failure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Classification is the (category, severity) pair assigned to a failure.
type Classification struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
}

// ReportContext describes where and when a failure was captured.
type ReportContext struct {
	SessionID    string         `json:"sessionId"`
	Route        string         `json:"route"`
	UserAgent    string         `json:"userAgent"`
	Timestamp    string         `json:"timestamp"` // ISO-8601
	BuildVersion string         `json:"buildVersion"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// FailureReport is one captured failure instance.
type FailureReport struct {
	ErrorID    string        `json:"errorId"`
	Message    string        `json:"message"`
	StackTrace string        `json:"stackTrace,omitempty"`
	Category   Category      `json:"category"`
	Severity   Severity      `json:"severity"`
	Context    ReportContext `json:"context"`
}

// StoredReport is a FailureReport accepted by the intake endpoint.
type StoredReport struct {
	FailureReport
	ClientIP   string
	ReceivedAt time.Time
}
