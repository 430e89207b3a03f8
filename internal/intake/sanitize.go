package intake

import (
	"strings"
	"time"

	"github.com/vietddude/rrol/internal/core/domain"
)

// Field limits applied before a report is stored.
const (
	MaxMessage      = 500
	MaxStack        = 2000
	MaxRoute        = 200
	MaxUserAgent    = 500
	MaxSessionID    = 100
	MaxBuildVersion = 50
	MaxErrorID      = 100
)

// Sanitize truncates free-text fields and replaces unknown enums with
// defaults: runtime for the category and medium for the severity.
func Sanitize(r domain.FailureReport, now time.Time) domain.FailureReport {
	out := domain.FailureReport{
		ErrorID:    truncate(strings.TrimSpace(r.ErrorID), MaxErrorID),
		Message:    truncate(strings.TrimSpace(r.Message), MaxMessage),
		StackTrace: truncate(r.StackTrace, MaxStack),
		Category:   category(r.Category),
		Severity:   r.Severity,
		Context: domain.ReportContext{
			SessionID:    truncate(r.Context.SessionID, MaxSessionID),
			Route:        truncate(r.Context.Route, MaxRoute),
			UserAgent:    truncate(r.Context.UserAgent, MaxUserAgent),
			Timestamp:    r.Context.Timestamp,
			BuildVersion: truncate(r.Context.BuildVersion, MaxBuildVersion),
			Metadata:     r.Context.Metadata,
		},
	}
	if !out.Severity.Valid() {
		out.Severity = domain.SeverityMedium
	}
	if out.Context.Timestamp == "" {
		out.Context.Timestamp = now.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func category(c domain.Category) domain.Category {
	// Older clients report backend failures under the platform name.
	if c == "shopify" {
		return domain.CategoryBackend
	}
	if c.Valid() {
		return c
	}
	return domain.CategoryRuntime
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
