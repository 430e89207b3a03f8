package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// AccessTokenHeader carries the storefront access token.
const AccessTokenHeader = "X-Shopify-Storefront-Access-Token"

const pingQuery = `query Ping { shop { name } }`

// HTTPCaller sends GraphQL queries over HTTP.
type HTTPCaller struct {
	endpoint   string
	token      string
	httpClient *http.Client

	Monitor *Monitor
}

// NewHTTPCaller creates a caller for a GraphQL endpoint.
func NewHTTPCaller(endpoint, token string, timeout time.Duration) *HTTPCaller {
	return &HTTPCaller{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Monitor: NewMonitor("http"),
	}
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Call runs a single query.
func (c *HTTPCaller) Call(ctx context.Context, r Request) (Response, error) {
	start := time.Now()

	jsonData, err := json.Marshal(map[string]any{
		"query":     r.Query,
		"variables": r.Variables,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(AccessTokenHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.Monitor.RecordFailure()
		return Response{}, fetchError(r.Operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.Monitor.RecordFailure()
		return Response{}, fetchError(r.Operation, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.Monitor.RecordThrottle()
		return Response{}, &Error{
			Transport:  "http",
			Operation:  r.Operation,
			StatusCode: resp.StatusCode,
			Message:    statusMessage(resp.StatusCode),
			Delay:      parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if resp.StatusCode != http.StatusOK {
		c.Monitor.RecordFailure()
		e := &Error{
			Transport:  "http",
			Operation:  r.Operation,
			StatusCode: resp.StatusCode,
			Message:    statusMessage(resp.StatusCode),
		}
		if resp.StatusCode == http.StatusNotFound {
			e.Err = ErrNotFound
		}
		return Response{}, e
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		c.Monitor.RecordFailure()
		return Response{}, &Error{Transport: "http", Operation: r.Operation, Message: "graphql: malformed response", Err: err}
	}

	if len(gqlResp.Errors) > 0 {
		return Response{}, c.graphQLFailure(r.Operation, gqlResp.Errors)
	}

	c.Monitor.RecordSuccess(r.Operation, time.Since(start))
	return Response{Data: gqlResp.Data}, nil
}

// Ping issues a trivial shop query.
func (c *HTTPCaller) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, Request{Operation: "ping", Query: pingQuery})
	return err
}

// Stats returns the caller's health.
func (c *HTTPCaller) Stats() Stats {
	return c.Monitor.Stats()
}

// Close cleans up resources.
func (c *HTTPCaller) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPCaller) graphQLFailure(op string, errs []graphQLError) error {
	msgs := make([]string, 0, len(errs))
	throttled := false
	for _, e := range errs {
		msgs = append(msgs, e.Message)
		if strings.EqualFold(e.Extensions.Code, "THROTTLED") {
			throttled = true
		}
	}

	e := &Error{Transport: "http", Operation: op, Message: "graphql: " + strings.Join(msgs, "; ")}
	if throttled {
		c.Monitor.RecordThrottle()
		e.Message = "graphql: throttled: " + strings.Join(msgs, "; ")
		return e
	}
	c.Monitor.RecordFailure()
	return e
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}
