package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/infra/storage"
)

func report(id string, cat domain.Category, sev domain.Severity, at time.Time) *domain.StoredReport {
	return &domain.StoredReport{
		FailureReport: domain.FailureReport{
			ErrorID:  id,
			Message:  "boom",
			Category: cat,
			Severity: sev,
			Context:  domain.ReportContext{SessionID: "session_a"},
		},
		ReceivedAt: at,
	}
}

func TestReportRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewReportRepo()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, r := range []*domain.StoredReport{
		report("err_1", domain.CategoryNetwork, domain.SeverityMedium, base),
		report("err_2", domain.CategoryCheckout, domain.SeverityCritical, base.Add(time.Minute)),
		report("err_3", domain.CategoryNetwork, domain.SeverityMedium, base.Add(2*time.Minute)),
	} {
		if err := repo.Save(ctx, r); err != nil {
			t.Fatalf("Save #%d: %v", i, err)
		}
	}

	if err := repo.Save(ctx, report("err_1", domain.CategoryUI, domain.SeverityLow, base)); !errors.Is(err, storage.ErrDuplicateReport) {
		t.Fatalf("expected ErrDuplicateReport, got %v", err)
	}

	list, err := repo.List(ctx, storage.ReportFilter{Category: domain.CategoryNetwork})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ErrorID != "err_3" || list[1].ErrorID != "err_1" {
		t.Errorf("expected newest network reports first, got %v", ids(list))
	}

	list, _ = repo.List(ctx, storage.ReportFilter{Limit: 1})
	if len(list) != 1 || list[0].ErrorID != "err_3" {
		t.Errorf("limit not applied: %v", ids(list))
	}

	n, _ := repo.Count(ctx, storage.ReportFilter{Severity: domain.SeverityCritical})
	if n != 1 {
		t.Errorf("Count(critical) = %d, want 1", n)
	}
	n, _ = repo.Count(ctx, storage.ReportFilter{Since: base.Add(time.Minute)})
	if n != 2 {
		t.Errorf("Count(since) = %d, want 2", n)
	}

	deleted, _ := repo.DeleteOlderThan(ctx, base.Add(90*time.Second))
	if deleted != 2 {
		t.Errorf("DeleteOlderThan removed %d, want 2", deleted)
	}
	n, _ = repo.Count(ctx, storage.ReportFilter{})
	if n != 1 {
		t.Errorf("remaining = %d, want 1", n)
	}
}

func ids(rs []*domain.StoredReport) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ErrorID
	}
	return out
}
