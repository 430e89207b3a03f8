package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/infra/storage"
)

// ReportRepo keeps reports in process memory.
type ReportRepo struct {
	mu      sync.RWMutex
	reports map[string]*domain.StoredReport
}

func NewReportRepo() *ReportRepo {
	return &ReportRepo{reports: make(map[string]*domain.StoredReport)}
}

func (r *ReportRepo) Save(ctx context.Context, report *domain.StoredReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[report.ErrorID]; ok {
		return fmt.Errorf("save report %s: %w", report.ErrorID, storage.ErrDuplicateReport)
	}
	cp := *report
	r.reports[report.ErrorID] = &cp
	return nil
}

func (r *ReportRepo) List(ctx context.Context, filter storage.ReportFilter) ([]*domain.StoredReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.StoredReport, 0)
	for _, rep := range r.reports {
		if matches(rep, filter) {
			cp := *rep
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ErrorID > out[j].ErrorID
		}
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *ReportRepo) Count(ctx context.Context, filter storage.ReportFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rep := range r.reports {
		if matches(rep, filter) {
			n++
		}
	}
	return n, nil
}

func (r *ReportRepo) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rep := range r.reports {
		if rep.ReceivedAt.Before(t) {
			delete(r.reports, id)
			n++
		}
	}
	return n, nil
}

func matches(r *domain.StoredReport, f storage.ReportFilter) bool {
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.Severity != "" && r.Severity != f.Severity {
		return false
	}
	if f.SessionID != "" && r.Context.SessionID != f.SessionID {
		return false
	}
	if !f.Since.IsZero() && r.ReceivedAt.Before(f.Since) {
		return false
	}
	return true
}
