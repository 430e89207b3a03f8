package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/infra/storage"
)

const uniqueViolation = "23505"

// ReportRepo implements storage.ReportRepository using PostgreSQL.
type ReportRepo struct {
	db *DB
}

// NewReportRepo creates a new PostgreSQL report repository.
func NewReportRepo(db *DB) *ReportRepo {
	return &ReportRepo{db: db}
}

type reportRow struct {
	ErrorID         string    `db:"error_id"`
	Message         string    `db:"message"`
	StackTrace      string    `db:"stack_trace"`
	Category        string    `db:"category"`
	Severity        string    `db:"severity"`
	SessionID       string    `db:"session_id"`
	Route           string    `db:"route"`
	UserAgent       string    `db:"user_agent"`
	BuildVersion    string    `db:"build_version"`
	ClientTimestamp string    `db:"client_timestamp"`
	Metadata        []byte    `db:"metadata"`
	ClientIP        string    `db:"client_ip"`
	ReceivedAt      time.Time `db:"received_at"`
}

const reportColumns = `error_id, message, stack_trace, category, severity, session_id, route,
	user_agent, build_version, client_timestamp, metadata, client_ip, received_at`

// Save stores a report.
func (r *ReportRepo) Save(ctx context.Context, report *domain.StoredReport) error {
	var meta *string
	if len(report.Context.Metadata) > 0 {
		raw, err := json.Marshal(report.Context.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		s := string(raw)
		meta = &s
	}

	query := `
		INSERT INTO failure_reports (` + reportColumns + `)
		VALUES (:error_id, :message, :stack_trace, :category, :severity, :session_id, :route,
			:user_agent, :build_version, :client_timestamp, CAST(:metadata AS JSONB), :client_ip, :received_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, map[string]any{
		"error_id":         report.ErrorID,
		"message":          report.Message,
		"stack_trace":      report.StackTrace,
		"category":         string(report.Category),
		"severity":         string(report.Severity),
		"session_id":       report.Context.SessionID,
		"route":            report.Context.Route,
		"user_agent":       report.Context.UserAgent,
		"build_version":    report.Context.BuildVersion,
		"client_timestamp": report.Context.Timestamp,
		"metadata":         meta,
		"client_ip":        report.ClientIP,
		"received_at":      report.ReceivedAt,
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("save report %s: %w", report.ErrorID, storage.ErrDuplicateReport)
	}
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// List returns matching reports, newest first.
func (r *ReportRepo) List(ctx context.Context, filter storage.ReportFilter) ([]*domain.StoredReport, error) {
	where, args := whereClause(filter)
	query := `SELECT ` + reportColumns + ` FROM failure_reports` + where +
		` ORDER BY received_at DESC, error_id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	out := make([]*domain.StoredReport, 0, len(rows))
	for _, row := range rows {
		rep, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

// Count returns the number of matching reports.
func (r *ReportRepo) Count(ctx context.Context, filter storage.ReportFilter) (int, error) {
	where, args := whereClause(filter)
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM failure_reports`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return n, nil
}

// DeleteOlderThan removes reports received before t.
func (r *ReportRepo) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM failure_reports WHERE received_at < $1`, t)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reports: %w", err)
	}
	return res.RowsAffected()
}

func whereClause(f storage.ReportFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.Severity != "" {
		add("severity = $%d", string(f.Severity))
	}
	if f.SessionID != "" {
		add("session_id = $%d", f.SessionID)
	}
	if !f.Since.IsZero() {
		add("received_at >= $%d", f.Since)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (row reportRow) toDomain() (*domain.StoredReport, error) {
	rep := &domain.StoredReport{
		FailureReport: domain.FailureReport{
			ErrorID:    row.ErrorID,
			Message:    row.Message,
			StackTrace: row.StackTrace,
			Category:   domain.Category(row.Category),
			Severity:   domain.Severity(row.Severity),
			Context: domain.ReportContext{
				SessionID:    row.SessionID,
				Route:        row.Route,
				UserAgent:    row.UserAgent,
				Timestamp:    row.ClientTimestamp,
				BuildVersion: row.BuildVersion,
			},
		},
		ClientIP:   row.ClientIP,
		ReceivedAt: row.ReceivedAt,
	}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &rep.Context.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", row.ErrorID, err)
		}
	}
	return rep, nil
}

// isUniqueViolation recognises duplicate-key errors from either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
