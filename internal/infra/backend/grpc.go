package backend

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultQueryMethod is the gateway method that accepts a GraphQL query.
const DefaultQueryMethod = "/storefront.v1.Storefront/Query"

// GRPCCaller sends queries to a gRPC gateway in front of the platform.
// Requests and replies are google.protobuf.Struct messages shaped like
// their GraphQL JSON counterparts.
type GRPCCaller struct {
	endpoint string
	method   string
	token    string
	conn     *grpc.ClientConn

	Monitor *Monitor
}

var histogramOnce sync.Once

// NewGRPCCaller creates a caller. Endpoints starting with https:// or
// ending in :443 use TLS. Client RPC metrics are recorded through the
// go-grpc-prometheus interceptors.
func NewGRPCCaller(endpoint, method, token string, opts ...grpc.DialOption) (*GRPCCaller, error) {
	histogramOnce.Do(func() { grpc_prometheus.EnableClientHandlingTimeHistogram() })
	opts = append([]grpc.DialOption{
		grpc.WithChainUnaryInterceptor(grpc_prometheus.UnaryClientInterceptor),
		grpc.WithChainStreamInterceptor(grpc_prometheus.StreamClientInterceptor),
	}, opts...)

	target := endpoint
	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		opts = append([]grpc.DialOption{grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{}))}, opts...)
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	if method == "" {
		method = DefaultQueryMethod
	}

	return &GRPCCaller{
		endpoint: endpoint,
		method:   method,
		token:    token,
		conn:     conn,
		Monitor:  NewMonitor("grpc"),
	}, nil
}

// Call runs a single query.
func (c *GRPCCaller) Call(ctx context.Context, r Request) (Response, error) {
	start := time.Now()

	req, err := structpb.NewStruct(map[string]any{
		"query":     r.Query,
		"variables": normalizeVariables(r.Variables),
	})
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-storefront-access-token", c.token)
	}

	reply := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, c.method, req, reply); err != nil {
		mapped := mapStatus(r.Operation, err)
		var be *Error
		if errors.As(mapped, &be) && be.StatusCode == 429 {
			c.Monitor.RecordThrottle()
		} else {
			c.Monitor.RecordFailure()
		}
		return Response{}, mapped
	}

	if errs := reply.GetFields()["errors"].GetListValue().GetValues(); len(errs) > 0 {
		c.Monitor.RecordFailure()
		msgs := make([]string, 0, len(errs))
		for _, v := range errs {
			msgs = append(msgs, v.GetStructValue().GetFields()["message"].GetStringValue())
		}
		return Response{}, &Error{Transport: "grpc", Operation: r.Operation, Message: "graphql: " + strings.Join(msgs, "; ")}
	}

	dataValue, ok := reply.GetFields()["data"]
	if !ok || dataValue == nil {
		c.Monitor.RecordFailure()
		return Response{}, &Error{Transport: "grpc", Operation: r.Operation, Message: "graphql: empty response"}
	}
	data, err := protojson.Marshal(dataValue)
	if err != nil {
		c.Monitor.RecordFailure()
		return Response{}, &Error{Transport: "grpc", Operation: r.Operation, Message: "graphql: malformed response", Err: err}
	}

	c.Monitor.RecordSuccess(r.Operation, time.Since(start))
	return Response{Data: data}, nil
}

// Ping queries the standard gRPC health service.
func (c *GRPCCaller) Ping(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return mapStatus("ping", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return &Error{Transport: "grpc", Operation: "ping", StatusCode: 503, Message: statusMessage(503)}
	}
	return nil
}

// Stats returns the caller's health.
func (c *GRPCCaller) Stats() Stats {
	return c.Monitor.Stats()
}

// Conn returns the underlying gRPC connection.
func (c *GRPCCaller) Conn() *grpc.ClientConn {
	return c.conn
}

// Close cleans up resources.
func (c *GRPCCaller) Close() error {
	return c.conn.Close()
}

// mapStatus turns a gRPC status into the same descriptive errors the HTTP
// caller produces.
func mapStatus(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fetchError(op, err)
	}

	httpCode := 0
	switch st.Code() {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return fetchError(op, context.DeadlineExceeded)
	case codes.Unavailable:
		return fmt.Errorf("fetch %s: network unavailable: %s", op, st.Message())
	case codes.ResourceExhausted:
		httpCode = 429
	case codes.Unauthenticated:
		httpCode = 401
	case codes.PermissionDenied:
		httpCode = 403
	case codes.NotFound:
		return &Error{Transport: "grpc", Operation: op, StatusCode: 404, Message: statusMessage(404), Err: ErrNotFound}
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return &Error{Transport: "grpc", Operation: op, Message: st.Message(), Err: err}
	case codes.Aborted:
		httpCode = 503
	default:
		httpCode = 500
	}

	return &Error{
		Transport:  "grpc",
		Operation:  op,
		StatusCode: httpCode,
		Message:    statusMessage(httpCode),
		Delay:      retryDelay(st),
		Err:        err,
	}
}

// retryDelay extracts a RetryInfo detail from st.
func retryDelay(st *status.Status) time.Duration {
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.RetryInfo); ok && info.GetRetryDelay() != nil {
			return info.GetRetryDelay().AsDuration()
		}
	}
	return 0
}

// normalizeVariables converts typed slices and maps into the generic forms
// structpb accepts.
func normalizeVariables(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeVariables(t)
	case []map[string]any:
		list := make([]any, len(t))
		for i, m := range t {
			list[i] = normalizeVariables(m)
		}
		return list
	case []string:
		list := make([]any, len(t))
		for i, s := range t {
			list[i] = s
		}
		return list
	case []any:
		list := make([]any, len(t))
		for i, e := range t {
			list[i] = normalizeValue(e)
		}
		return list
	default:
		return v
	}
}
