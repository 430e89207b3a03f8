package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/infra/storage"
)

func TestWhereClause(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	where, args := whereClause(storage.ReportFilter{})
	if where != "" || len(args) != 0 {
		t.Errorf("empty filter produced %q %v", where, args)
	}

	where, args = whereClause(storage.ReportFilter{
		Category:  domain.CategoryCheckout,
		SessionID: "session_1",
		Since:     since,
	})
	want := " WHERE category = $1 AND session_id = $2 AND received_at >= $3"
	if where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
	if diff := cmp.Diff([]any{"checkout", "session_1", since}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pgx", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}), true},
		{"pgx other", &pgconn.PgError{Code: "23503"}, false},
		{"pq", &pq.Error{Code: "23505"}, true},
		{"plain", errors.New("duplicate"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Live Database Tests
// =============================================================================

func TestReportRepo_Live(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping live database test. Set DATABASE_URL to run.")
	}
	ctx := context.Background()

	for _, driver := range []string{DriverPgx, DriverPq} {
		t.Run(driver, func(t *testing.T) {
			db, err := NewDB(ctx, Config{Driver: driver, URL: dsn})
			if err != nil {
				t.Fatalf("NewDB: %v", err)
			}
			defer db.Close()
			if err := db.Migrate(ctx); err != nil {
				t.Fatalf("Migrate: %v", err)
			}

			repo := NewReportRepo(db)
			id := fmt.Sprintf("err_live_%s_%d", driver, time.Now().UnixNano())
			rep := &domain.StoredReport{
				FailureReport: domain.FailureReport{
					ErrorID:  id,
					Message:  "live",
					Category: domain.CategoryNetwork,
					Severity: domain.SeverityMedium,
					Context: domain.ReportContext{
						SessionID: id,
						Metadata:  map[string]any{"attempt": float64(2)},
					},
				},
				ClientIP:   "127.0.0.1",
				ReceivedAt: time.Now().UTC().Truncate(time.Microsecond),
			}
			if err := repo.Save(ctx, rep); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := repo.Save(ctx, rep); !errors.Is(err, storage.ErrDuplicateReport) {
				t.Fatalf("expected duplicate, got %v", err)
			}

			list, err := repo.List(ctx, storage.ReportFilter{SessionID: id})
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != 1 || list[0].Context.Metadata["attempt"] != float64(2) {
				t.Errorf("unexpected list %+v", list)
			}
		})
	}
}
