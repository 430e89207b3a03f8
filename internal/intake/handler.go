// Package intake receives failure reports over HTTP, sanitises and
// rate-limits them, and stores them for later analysis.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/infra/storage"
	"github.com/vietddude/rrol/internal/metrics"
	"github.com/vietddude/rrol/internal/telemetry"
)

// DefaultMaxBody caps the size of a report request body.
const DefaultMaxBody = 64 << 10

// Intake status labels.
const (
	statusAccepted    = "accepted"
	statusDuplicate   = "duplicate"
	statusStoreFailed = "store_failed"
	statusRejected    = "rejected"
	statusLimited     = "rate_limited"
)

// Response is the JSON body returned by the report endpoint.
type Response struct {
	Success bool   `json:"success"`
	ErrorID string `json:"errorId,omitempty"`
	Message string `json:"message,omitempty"`
}

// Handler serves POST /api/errors.
type Handler struct {
	repo           storage.ReportRepository
	limiter        Limiter
	forwarder      telemetry.Sender
	forwardTimeout time.Duration
	maxBody        int64
	logger         *slog.Logger
	now            func() time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLimiter sets the per-client limiter. Default: 10 reports per minute
// held in memory.
func WithLimiter(l Limiter) HandlerOption {
	return func(h *Handler) { h.limiter = l }
}

// WithForwarder relays every accepted report, e.g. to an analytics webhook.
func WithForwarder(s telemetry.Sender, timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		h.forwarder = s
		h.forwardTimeout = timeout
	}
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithMaxBody caps the request body size.
func WithMaxBody(n int64) HandlerOption {
	return func(h *Handler) { h.maxBody = n }
}

// NewHandler creates a report handler storing into repo.
func NewHandler(repo storage.ReportRepository, opts ...HandlerOption) *Handler {
	h := &Handler{
		repo:           repo,
		forwardTimeout: telemetry.DefaultDeliveryTimeout,
		maxBody:        DefaultMaxBody,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.limiter == nil {
		h.limiter = NewMemoryLimiter(DefaultRateLimit, DefaultRateWindow)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Report handler panicked", "panic", rec)
			writeJSON(w, http.StatusInternalServerError, Response{Message: "Internal server error"})
		}
	}()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, Response{Message: "Method not allowed"})
		return
	}

	ip := ClientIP(r)
	allowed, err := h.limiter.Allow(r.Context(), ip)
	if err != nil {
		// Fail open: losing reports is worse than a burst.
		h.logger.Warn("Rate limiter unavailable", "client_ip", ip, "error", err)
		allowed = true
	}
	if !allowed {
		metrics.IntakeReportsTotal.WithLabelValues("", "", statusLimited).Inc()
		writeJSON(w, http.StatusTooManyRequests, Response{Message: "Rate limit exceeded"})
		return
	}

	var in domain.FailureReport
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err := dec.Decode(&in); err != nil {
		metrics.IntakeReportsTotal.WithLabelValues("", "", statusRejected).Inc()
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body"})
		return
	}

	now := h.now()
	report := Sanitize(in, now)
	if report.Message == "" {
		metrics.IntakeReportsTotal.WithLabelValues(string(report.Category), string(report.Severity), statusRejected).Inc()
		writeJSON(w, http.StatusBadRequest, Response{Message: "Error message is required"})
		return
	}
	if report.ErrorID == "" {
		report.ErrorID = "api_" + uuid.NewString()
	}

	status := h.store(r.Context(), &domain.StoredReport{
		FailureReport: report,
		ClientIP:      ip,
		ReceivedAt:    now,
	})
	h.forward(r.Context(), report)

	metrics.IntakeReportsTotal.WithLabelValues(string(report.Category), string(report.Severity), status).Inc()
	h.logger.Info("Failure report received",
		"error_id", report.ErrorID,
		"category", report.Category,
		"severity", report.Severity,
		"route", report.Context.Route,
		"status", status,
	)

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		ErrorID: report.ErrorID,
		Message: "Error reported successfully",
	})
}

// store persists the report. Storage failures are logged and the id is
// still returned to the client.
func (h *Handler) store(ctx context.Context, rep *domain.StoredReport) string {
	err := h.repo.Save(ctx, rep)
	switch {
	case err == nil:
		return statusAccepted
	case errors.Is(err, storage.ErrDuplicateReport):
		return statusDuplicate
	default:
		h.logger.Warn("Failed to store failure report", "error_id", rep.ErrorID, "error", err)
		return statusStoreFailed
	}
}

func (h *Handler) forward(ctx context.Context, r domain.FailureReport) {
	if h.forwarder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.forwardTimeout)
	defer cancel()
	if err := h.forwarder.Send(ctx, r); err != nil {
		h.logger.Warn("Failed to forward failure report", "error_id", r.ErrorID, "error", err)
	}
}

// ClientIP returns the first X-Forwarded-For entry, falling back to the
// connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
