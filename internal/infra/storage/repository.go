// Package storage persists failure reports accepted by the intake server.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/rrol/internal/core/domain"
)

var (
	// ErrDuplicateReport is returned when a report id was already stored
	ErrDuplicateReport = errors.New("duplicate report")
)

// ReportFilter narrows List and Count. Zero fields match everything.
type ReportFilter struct {
	Category  domain.Category
	Severity  domain.Severity
	SessionID string
	Since     time.Time
	Limit     int
}

// ReportRepository handles failure report storage
type ReportRepository interface {
	// Save stores a report, ErrDuplicateReport if its id exists
	Save(ctx context.Context, report *domain.StoredReport) error

	// List returns matching reports, newest first
	List(ctx context.Context, filter ReportFilter) ([]*domain.StoredReport, error)

	// Count returns the number of matching reports
	Count(ctx context.Context, filter ReportFilter) (int, error)

	// DeleteOlderThan removes reports received before t
	DeleteOlderThan(ctx context.Context, t time.Time) (int64, error)
}
