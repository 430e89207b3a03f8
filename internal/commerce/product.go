package commerce

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/infra/backend"
	"github.com/vietddude/rrol/internal/metrics"
	"github.com/vietddude/rrol/internal/resilience/retry"
)

// MsgCachedProduct is shown when a product is served from the snapshot cache.
const MsgCachedProduct = "Showing saved product details. Some information may be out of date."

const productQuery = `query ProductByHandle($handle: String!) {
  product(handle: $handle) {
    id
    handle
    title
    description
    variants(first: 100) {
      edges { node { id title availableForSale price { amount currencyCode } } }
    }
  }
}`

type productPayload struct {
	Product *struct {
		ID          string `json:"id"`
		Handle      string `json:"handle"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Variants    struct {
			Edges []struct {
				Node domain.ProductVariant `json:"node"`
			} `json:"edges"`
		} `json:"variants"`
	} `json:"product"`
}

// FetchProduct loads a product by handle. When the storefront cannot be
// reached the last cached snapshot is returned instead, flagged with
// FallbackUsed.
func (s *Service) FetchProduct(ctx context.Context, handle string) domain.OperationResult[domain.Product] {
	cc := domain.CallContext{Operation: OpFetchProduct, Metadata: map[string]any{"handle": handle}}

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return reject[domain.Product](s, cc, errors.New("validation failed: product handle is required"))
	}

	res := retry.ExecuteWithRetry(ctx, s.exec, func(ctx context.Context) (domain.Product, error) {
		return s.queryProduct(ctx, handle)
	}, s.options(cc))

	if res.Success {
		if err := s.cache.PutSnapshot(ctx, *res.Data); err != nil {
			s.logger.Debug("Failed to cache product snapshot", "handle", handle, "error", err)
		}
		return res
	}
	if res.Action == domain.HintNone {
		return res
	}

	cached, err := s.cache.GetSnapshot(ctx, handle)
	if err != nil {
		metrics.FallbacksTotal.WithLabelValues(OpFetchProduct, "miss").Inc()
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Debug("Snapshot cache lookup failed", "handle", handle, "error", err)
		}
		return res
	}

	metrics.FallbacksTotal.WithLabelValues(OpFetchProduct, "hit").Inc()
	s.logger.Info("Serving cached product snapshot", "handle", handle, "error", res.Error)
	return fallback(res, cached, MsgCachedProduct)
}

func (s *Service) queryProduct(ctx context.Context, handle string) (domain.Product, error) {
	resp, err := s.caller.Call(ctx, backend.Request{
		Operation: OpFetchProduct,
		Query:     productQuery,
		Variables: map[string]any{"handle": handle},
	})
	if err != nil {
		return domain.Product{}, err
	}

	var payload productPayload
	if err := resp.Decode(&payload); err != nil {
		return domain.Product{}, err
	}
	if payload.Product == nil {
		return domain.Product{}, fmt.Errorf("storefront %s: product %q: %w", OpFetchProduct, handle, backend.ErrNotFound)
	}

	p := domain.Product{
		ID:          payload.Product.ID,
		Handle:      payload.Product.Handle,
		Title:       payload.Product.Title,
		Description: payload.Product.Description,
	}
	for _, e := range payload.Product.Variants.Edges {
		p.Variants = append(p.Variants, e.Node)
	}
	if p.Handle == "" {
		p.Handle = handle
	}
	return p, nil
}

// fallback turns a failed result into a successful one carrying data from
// a degraded path.
func fallback[T any](res domain.OperationResult[T], data T, msg string) domain.OperationResult[T] {
	res.Success = true
	res.Data = &data
	res.Error = ""
	res.FallbackUsed = true
	res.Action = domain.HintFallback
	res.Message = msg
	res.Notice = nil
	return res
}
