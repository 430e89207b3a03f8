package worker

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/infra/storage"
	"github.com/vietddude/rrol/internal/infra/storage/memory"
)

func TestPruner_DeletesExpiredReports(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewReportRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for id, age := range map[string]time.Duration{
		"err_old":   48 * time.Hour,
		"err_fresh": time.Hour,
	} {
		_ = repo.Save(ctx, &domain.StoredReport{
			FailureReport: domain.FailureReport{ErrorID: id, Message: "x"},
			ReceivedAt:    now.Add(-age),
		})
	}

	p := NewPruner(24*time.Hour, repo, nil)
	p.now = func() time.Time { return now }
	p.prune(ctx)

	list, _ := repo.List(ctx, storage.ReportFilter{})
	if len(list) != 1 || list[0].ErrorID != "err_fresh" {
		t.Fatalf("expected only err_fresh to remain, got %d reports", len(list))
	}
}

func TestPruner_DisabledReturnsImmediately(t *testing.T) {
	done := make(chan struct{})
	go func() {
		NewPruner(0, memory.NewReportRepo(), nil).Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return when retention is disabled")
	}
}
