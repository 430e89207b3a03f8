package domain

import "time"

// Action is the recovery decision assigned to a classified failure.
type Action string

const (
	ActionRetry              Action = "retry"
	ActionFallback           Action = "fallback"
	ActionRedirect           Action = "redirect"
	ActionShowMessage        Action = "show_message"
	ActionIgnore             Action = "ignore"
	ActionManualIntervention Action = "manual_intervention"
)

// RetrySchedule bounds and paces retries of a single operation.
type RetrySchedule struct {
	MaxAttempts       int
	BackoffMultiplier float64
	InitialDelay      time.Duration
	MaxDelay          time.Duration

	// Retryable decides whether a given failure may be retried under this
	// schedule. Nil accepts every failure.
	Retryable func(err error) bool `json:"-"`
}

// Accepts reports whether err passes the schedule's retry predicate.
func (s RetrySchedule) Accepts(err error) bool {
	if s.Retryable == nil {
		return true
	}
	return s.Retryable(err)
}

// RecoveryDecision is the resolver's verdict for one failure.
type RecoveryDecision struct {
	Action   Action
	Message  string
	Metadata map[string]any

	// Schedule is set only when Action is ActionRetry.
	Schedule *RetrySchedule
}

// CallContext carries what the resolver knows about the failing call.
type CallContext struct {
	// Operation names the call, e.g. "fetch_product" or "resolve_checkout_url".
	Operation string

	// Checkout marks calls made on the checkout path.
	Checkout bool

	Metadata map[string]any
}
