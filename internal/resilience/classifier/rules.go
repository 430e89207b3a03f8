package classifier

import (
	"strings"

	"github.com/vietddude/rrol/internal/core/domain"
)

// Keyword sets used by the default rules. Exported so the resolver can
// apply the same vocabulary.
var (
	BackendTerms = []string{
		"shopify", "storefront", "graphql",
		// commerce platform state and throttling only the backend reports
		"inventory", "out of stock", "sold out", "too many requests", "rate limit", "throttl",
	}
	NetworkTerms    = []string{"fetch", "network", "timeout", "timed out", "connection refused", "connection reset", "no such host", "deadline exceeded", "eof", "unreachable"}
	CheckoutTerms   = []string{"checkout", "payment", "cart"}
	ValidationTerms = []string{"validation", "invalid", "required"}
	UITerms         = []string{"render", "template"}
)

// DefaultRules returns the rule set in precedence order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "backend",
			Category: domain.CategoryBackend,
			Match: func(in Input) bool {
				return containsAny(in.Message, BackendTerms...)
			},
			SeverityFunc: func(in Input) domain.Severity {
				if strings.Contains(in.Message, "checkout") {
					return domain.SeverityCritical
				}
				return domain.SeverityHigh
			},
		},
		{
			Name:     "network",
			Category: domain.CategoryNetwork,
			Severity: domain.SeverityMedium,
			Match: func(in Input) bool {
				return containsAny(in.Message, NetworkTerms...) || isNetError(in.Err)
			},
		},
		{
			Name:     "checkout",
			Category: domain.CategoryCheckout,
			Severity: domain.SeverityCritical,
			Match: func(in Input) bool {
				return containsAny(in.Message, CheckoutTerms...)
			},
		},
		{
			Name:     "validation",
			Category: domain.CategoryValidation,
			Severity: domain.SeverityLow,
			Match: func(in Input) bool {
				return containsAny(in.Message, ValidationTerms...)
			},
		},
		{
			Name:     "ui",
			Category: domain.CategoryUI,
			Severity: domain.SeverityMedium,
			Match: func(in Input) bool {
				return containsAny(in.Message, UITerms...) || strings.Contains(in.Stack, "/ui/")
			},
		},
	}
}
