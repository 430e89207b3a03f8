// Package recovery decides how a classified failure should be handled.
package recovery

import (
	"context"
	"errors"
	"strings"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/resilience/classifier"
)

// User-facing messages attached to decisions.
const (
	MsgRateLimited   = "The store is busy right now. Retrying shortly."
	MsgOutOfStock    = "This item is no longer available."
	MsgSessionReset  = "Your checkout session expired. Refreshing your cart."
	MsgOffline       = "No internet connection."
	MsgNetwork       = "Connection problem. Retrying."
	MsgUnauthorized  = "The store could not authorize this request."
	MsgCheckoutAlt   = "Checkout could not be completed. Using simplified checkout."
	MsgBackendDown   = "The store is temporarily unavailable. Retrying."
	MsgValidation    = "Please check your input."
	MsgUnexpected    = "An unexpected error occurred."
	MsgCallCancelled = "Request cancelled."
)

// Resolver maps failures to recovery decisions.
type Resolver struct {
	classifier *classifier.Classifier
	online     func() bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClassifier replaces the default classifier.
func WithClassifier(c *classifier.Classifier) Option {
	return func(r *Resolver) { r.classifier = c }
}

// WithConnectivity sets the connectivity reading used to gate network
// retries. Defaults to always online.
func WithConnectivity(online func() bool) Option {
	return func(r *Resolver) { r.online = online }
}

// NewResolver creates a resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		classifier: classifier.New(classifier.DefaultRules()),
		online:     func() bool { return true },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify exposes the resolver's classifier.
func (r *Resolver) Classify(err error) domain.Classification {
	return r.classifier.Classify(err)
}

// Resolve decides what to do about err. Given the same classification and
// connectivity reading it always returns the same decision.
func (r *Resolver) Resolve(err error, cc domain.CallContext) domain.RecoveryDecision {
	class := r.classifier.Classify(err)
	return r.ResolveClassified(err, class, cc)
}

// ResolveClassified is Resolve with a precomputed classification.
func (r *Resolver) ResolveClassified(
	err error,
	class domain.Classification,
	cc domain.CallContext,
) domain.RecoveryDecision {
	if err == nil {
		return domain.RecoveryDecision{Action: domain.ActionIgnore}
	}

	checkoutCall := cc.Checkout || strings.Contains(strings.ToLower(cc.Operation), "checkout")

	switch {
	case errors.Is(err, context.Canceled):
		return domain.RecoveryDecision{Action: domain.ActionIgnore, Message: MsgCallCancelled}

	case class.Category == domain.CategoryBackend && IsRateLimited(err):
		s := RateLimitSchedule()
		return domain.RecoveryDecision{Action: domain.ActionRetry, Message: MsgRateLimited, Schedule: &s}

	case class.Category == domain.CategoryBackend && IsOutOfStock(err):
		return domain.RecoveryDecision{
			Action:   domain.ActionShowMessage,
			Message:  MsgOutOfStock,
			Metadata: map[string]any{"showAlternatives": true},
		}

	case (class.Category == domain.CategoryCheckout || checkoutCall) && IsSessionExpired(err):
		return domain.RecoveryDecision{Action: domain.ActionRedirect, Message: MsgSessionReset}

	case class.Category == domain.CategoryNetwork && !r.online():
		return domain.RecoveryDecision{Action: domain.ActionShowMessage, Message: MsgOffline}

	case class.Category == domain.CategoryNetwork:
		s := NetworkSchedule(r.online)
		return domain.RecoveryDecision{Action: domain.ActionRetry, Message: MsgNetwork, Schedule: &s}

	case class.Category == domain.CategoryBackend && IsUnauthorized(err):
		return domain.RecoveryDecision{Action: domain.ActionManualIntervention, Message: MsgUnauthorized}

	case class.Category == domain.CategoryCheckout ||
		(class.Category == domain.CategoryBackend && (checkoutCall || strings.Contains(lower(err), "checkout"))):
		return domain.RecoveryDecision{
			Action:   domain.ActionFallback,
			Message:  MsgCheckoutAlt,
			Metadata: map[string]any{"fallbackToManual": true},
		}

	case class.Category == domain.CategoryBackend && IsTemporary(err):
		s := CommerceSchedule()
		return domain.RecoveryDecision{Action: domain.ActionRetry, Message: MsgBackendDown, Schedule: &s}

	case class.Category == domain.CategoryValidation:
		return domain.RecoveryDecision{Action: domain.ActionShowMessage, Message: MsgValidation}

	default:
		return domain.RecoveryDecision{Action: domain.ActionShowMessage, Message: MsgUnexpected}
	}
}
