package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/rrol/internal/core/domain"
)

// DefaultDeliveryTimeout bounds a single report delivery.
const DefaultDeliveryTimeout = 5 * time.Second

// Sender delivers one report to the telemetry endpoint.
type Sender interface {
	Send(ctx context.Context, r domain.FailureReport) error
}

// HTTPSender POSTs reports as JSON.
type HTTPSender struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSender creates a sender for endpoint, e.g. "https://shop/api/errors".
func NewHTTPSender(endpoint string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSender{endpoint: endpoint, client: client}
}

func (s *HTTPSender) Send(ctx context.Context, r domain.FailureReport) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes reports to a logger instead of a remote endpoint. It is
// used in development builds.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, r domain.FailureReport) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Info("Failure report",
		"error_id", r.ErrorID,
		"category", r.Category,
		"severity", r.Severity,
		"message", r.Message,
		"route", r.Context.Route,
	)
	return nil
}
