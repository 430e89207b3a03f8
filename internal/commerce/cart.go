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

// MsgNewCart is shown when lines were added to a fresh cart because the
// original one no longer exists.
const MsgNewCart = "Your previous cart expired. The item was added to a new cart."

const cartFields = `
fragment CartFields on Cart {
  id
  checkoutUrl
  lines(first: 100) {
    edges { node { id quantity merchandise { ... on ProductVariant { id } } } }
  }
}`

var cartMutations = map[domain.CartMutationKind]string{
	"create": `mutation CartCreate($lines: [CartLineInput!]) {
  result: cartCreate(input: {lines: $lines}) { cart { ...CartFields } userErrors { field message } }
}` + cartFields,
	domain.CartAddLines: `mutation CartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  result: cartLinesAdd(cartId: $cartId, lines: $lines) { cart { ...CartFields } userErrors { field message } }
}` + cartFields,
	domain.CartUpdateLines: `mutation CartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!) {
  result: cartLinesUpdate(cartId: $cartId, lines: $lines) { cart { ...CartFields } userErrors { field message } }
}` + cartFields,
	domain.CartRemoveLines: `mutation CartLinesRemove($cartId: ID!, $lineIds: [ID!]!) {
  result: cartLinesRemove(cartId: $cartId, lineIds: $lineIds) { cart { ...CartFields } userErrors { field message } }
}` + cartFields,
}

type cartNode struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkoutUrl"`
	Lines       struct {
		Edges []struct {
			Node struct {
				ID          string `json:"id"`
				Quantity    int    `json:"quantity"`
				Merchandise struct {
					ID string `json:"id"`
				} `json:"merchandise"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"lines"`
}

type cartPayload struct {
	Result *struct {
		Cart       *cartNode `json:"cart"`
		UserErrors []struct {
			Field   []string `json:"field"`
			Message string   `json:"message"`
		} `json:"userErrors"`
	} `json:"result"`
}

// MutateCart applies m and returns the updated cart. Adding lines without
// a cart id creates a new cart. If the cart no longer exists, added lines
// are placed in a new cart and the result is flagged with FallbackUsed.
func (s *Service) MutateCart(ctx context.Context, m domain.CartMutation) domain.OperationResult[domain.Cart] {
	cc := domain.CallContext{
		Operation: OpMutateCart,
		Metadata:  map[string]any{"kind": string(m.Kind), "cartId": m.CartID},
	}
	if err := validateMutation(m); err != nil {
		return reject[domain.Cart](s, cc, err)
	}

	kind := m.Kind
	if kind == domain.CartAddLines && m.CartID == "" {
		kind = "create"
	}

	var lastErr error
	opts := s.options(cc)
	opts.OnMaxAttemptsReached = func(err error) { lastErr = err }

	res := retry.ExecuteWithRetry(ctx, s.exec, func(ctx context.Context) (domain.Cart, error) {
		return s.runCartMutation(ctx, kind, m)
	}, opts)
	if res.Success || kind != domain.CartAddLines || !cartGone(lastErr) {
		return res
	}

	s.logger.Info("Cart no longer exists, creating a new one", "cart_id", m.CartID, "error", lastErr)
	fresh := retry.ExecuteWithRetry(ctx, s.exec, func(ctx context.Context) (domain.Cart, error) {
		return s.runCartMutation(ctx, "create", m)
	}, s.options(cc))
	if !fresh.Success {
		metrics.FallbacksTotal.WithLabelValues(OpMutateCart, "failed").Inc()
		return res
	}

	metrics.FallbacksTotal.WithLabelValues(OpMutateCart, "hit").Inc()
	out := fallback(res, *fresh.Data, MsgNewCart)
	out.Attempts += fresh.Attempts
	out.TotalTime += fresh.TotalTime
	return out
}

// AddToCart adds quantity of variant to the cart.
func (s *Service) AddToCart(ctx context.Context, cartID, variantID string, quantity int) domain.OperationResult[domain.Cart] {
	return s.MutateCart(ctx, domain.CartMutation{
		Kind:   domain.CartAddLines,
		CartID: cartID,
		Lines:  []domain.CartLine{{MerchandiseID: variantID, Quantity: quantity}},
	})
}

func (s *Service) runCartMutation(ctx context.Context, kind domain.CartMutationKind, m domain.CartMutation) (domain.Cart, error) {
	resp, err := s.caller.Call(ctx, backend.Request{
		Operation: OpMutateCart,
		Query:     cartMutations[kind],
		Variables: mutationVariables(kind, m),
	})
	if err != nil {
		return domain.Cart{}, err
	}

	var payload cartPayload
	if err := resp.Decode(&payload); err != nil {
		return domain.Cart{}, err
	}
	if payload.Result == nil {
		return domain.Cart{}, fmt.Errorf("storefront %s: empty mutation result", OpMutateCart)
	}
	if errs := payload.Result.UserErrors; len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Message
		}
		return domain.Cart{}, fmt.Errorf("storefront %s: %s", OpMutateCart, strings.Join(msgs, "; "))
	}
	if payload.Result.Cart == nil {
		return domain.Cart{}, fmt.Errorf("storefront %s: cart %q: %w", OpMutateCart, m.CartID, backend.ErrNotFound)
	}
	return toCart(payload.Result.Cart), nil
}

func mutationVariables(kind domain.CartMutationKind, m domain.CartMutation) map[string]any {
	vars := map[string]any{}
	if kind != "create" {
		vars["cartId"] = m.CartID
	}

	switch kind {
	case domain.CartRemoveLines:
		ids := make([]string, len(m.Lines))
		for i, l := range m.Lines {
			ids[i] = l.ID
		}
		vars["lineIds"] = ids
	case domain.CartUpdateLines:
		lines := make([]map[string]any, len(m.Lines))
		for i, l := range m.Lines {
			lines[i] = map[string]any{"id": l.ID, "quantity": l.Quantity}
		}
		vars["lines"] = lines
	default:
		lines := make([]map[string]any, len(m.Lines))
		for i, l := range m.Lines {
			lines[i] = map[string]any{"merchandiseId": l.MerchandiseID, "quantity": l.Quantity}
		}
		vars["lines"] = lines
	}
	return vars
}

func toCart(n *cartNode) domain.Cart {
	c := domain.Cart{ID: n.ID, CheckoutURL: n.CheckoutURL}
	for _, e := range n.Lines.Edges {
		c.Lines = append(c.Lines, domain.CartLine{
			ID:            e.Node.ID,
			MerchandiseID: e.Node.Merchandise.ID,
			Quantity:      e.Node.Quantity,
		})
	}
	return c
}

func validateMutation(m domain.CartMutation) error {
	if len(m.Lines) == 0 {
		return errors.New("validation failed: at least one cart line is required")
	}
	switch m.Kind {
	case domain.CartAddLines:
		for _, l := range m.Lines {
			if _, err := VariantNumericID(l.MerchandiseID); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			if l.Quantity <= 0 {
				return fmt.Errorf("validation failed: quantity must be positive, got %d", l.Quantity)
			}
		}
	case domain.CartUpdateLines, domain.CartRemoveLines:
		if m.CartID == "" {
			return errors.New("validation failed: cart id is required")
		}
		for _, l := range m.Lines {
			if l.ID == "" {
				return errors.New("validation failed: cart line id is required")
			}
			if m.Kind == domain.CartUpdateLines && l.Quantity < 0 {
				return fmt.Errorf("validation failed: quantity must not be negative, got %d", l.Quantity)
			}
		}
	default:
		return fmt.Errorf("validation failed: unknown cart mutation %q", m.Kind)
	}
	return nil
}

// cartGone reports whether err says the cart itself is missing or stale.
func cartGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, backend.ErrNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "expired")
}
