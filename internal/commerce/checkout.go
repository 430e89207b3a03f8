package commerce

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/infra/backend"
	"github.com/vietddude/rrol/internal/metrics"
	"github.com/vietddude/rrol/internal/resilience/retry"
)

// MsgSimplifiedCheckout is shown when a generated permalink replaces the
// storefront checkout URL.
const MsgSimplifiedCheckout = "Using simplified checkout."

const checkoutQuery = `query CartCheckoutURL($id: ID!) {
  cart(id: $id) { checkoutUrl }
}`

type checkoutPayload struct {
	Cart *struct {
		CheckoutURL string `json:"checkoutUrl"`
	} `json:"cart"`
}

// ResolveCheckoutURL returns the URL the buyer is sent to for payment.
//
// The cart must have lines. When the storefront does not deliver a URL, a
// cart permalink is generated from the cart lines, unless the failure says
// the cart state is stale (redirect) or the request itself is at fault
// (show_message); those are surfaced as is.
func (s *Service) ResolveCheckoutURL(ctx context.Context, cart domain.Cart) domain.OperationResult[string] {
	cc := domain.CallContext{
		Operation: OpResolveCheckoutURL,
		Checkout:  true,
		Metadata:  map[string]any{"cartId": cart.ID, "lines": len(cart.Lines)},
	}
	if cart.Empty() {
		return reject[string](s, cc, fmt.Errorf("validation failed: %w", ErrEmptyCart))
	}
	if cart.ID == "" {
		return reject[string](s, cc, errors.New("validation failed: cart id is required"))
	}

	res := retry.ExecuteWithRetry(ctx, s.exec, func(ctx context.Context) (string, error) {
		return s.queryCheckoutURL(ctx, cart.ID)
	}, s.options(cc))
	if res.Success {
		return res
	}

	switch res.Action {
	case domain.HintRetryExhausted, domain.HintFallback, domain.HintManual:
	default:
		return res
	}

	permalink, err := BuildCheckoutURL(s.checkoutBase, cart.Lines)
	if err != nil || !ValidateCheckoutURL(s.checkoutBase, permalink) {
		metrics.FallbacksTotal.WithLabelValues(OpResolveCheckoutURL, "failed").Inc()
		s.logger.Warn("Could not build checkout permalink", "cart_id", cart.ID, "error", err)
		return res
	}

	metrics.FallbacksTotal.WithLabelValues(OpResolveCheckoutURL, "hit").Inc()
	s.logger.Info("Using generated checkout permalink", "cart_id", cart.ID, "error", res.Error)
	return fallback(res, permalink, MsgSimplifiedCheckout)
}

func (s *Service) queryCheckoutURL(ctx context.Context, cartID string) (string, error) {
	resp, err := s.caller.Call(ctx, backend.Request{
		Operation: OpResolveCheckoutURL,
		Query:     checkoutQuery,
		Variables: map[string]any{"id": cartID},
	})
	if err != nil {
		return "", err
	}

	var payload checkoutPayload
	if err := resp.Decode(&payload); err != nil {
		return "", err
	}
	if payload.Cart == nil {
		return "", fmt.Errorf("checkout session expired: cart %q no longer exists", cartID)
	}
	if payload.Cart.CheckoutURL == "" {
		return "", errors.New("storefront checkout: checkout url unavailable")
	}
	if u, err := url.Parse(payload.Cart.CheckoutURL); err != nil || u.Scheme != "https" {
		return "", fmt.Errorf("storefront checkout: invalid checkout url %q", payload.Cart.CheckoutURL)
	}
	return payload.Cart.CheckoutURL, nil
}
