// Package classifier maps failures to a (category, severity) pair.
//
// Classification is data driven: an ordered list of rules is evaluated and
// the first match wins. The default rule set encodes the precedence
// backend > network > checkout > validation > ui > runtime, so a message
// with overlapping keywords (a storefront timeout during checkout) lands in
// the most actionable category.
package classifier

import (
	"errors"
	"net"
	"strings"

	"github.com/vietddude/rrol/internal/core/domain"
)

// StackTracer is implemented by errors that carry a captured stack trace.
type StackTracer interface {
	StackTrace() string
}

// Input is the normalized view of a failure that rules inspect.
type Input struct {
	Err     error
	Message string // lower-cased
	Stack   string // lower-cased, may be empty
}

// Rule assigns Category and Severity when Match returns true.
type Rule struct {
	Name     string
	Match    func(in Input) bool
	Category domain.Category
	Severity domain.Severity

	// SeverityFunc, when set, overrides Severity.
	SeverityFunc func(in Input) domain.Severity
}

// Classifier evaluates rules in order.
type Classifier struct {
	rules    []Rule
	fallback domain.Classification
}

// New creates a classifier over the given rules. Failures no rule matches
// are classified runtime/medium.
func New(rules []Rule) *Classifier {
	return &Classifier{
		rules: rules,
		fallback: domain.Classification{
			Category: domain.CategoryRuntime,
			Severity: domain.SeverityMedium,
		},
	}
}

var std = New(DefaultRules())

// Classify labels err with the default rule set.
func Classify(err error) domain.Classification {
	return std.Classify(err)
}

// Classify labels err. It is pure and total: a nil error classifies as
// runtime/low and a panicking Error method as runtime/medium.
func (c *Classifier) Classify(err error) (out domain.Classification) {
	if err == nil {
		return domain.Classification{Category: domain.CategoryRuntime, Severity: domain.SeverityLow}
	}

	defer func() {
		if r := recover(); r != nil {
			out = c.fallback
		}
	}()

	in := Normalize(err)
	out = c.fallback
	for _, rule := range c.rules {
		if rule.Match(in) {
			out = domain.Classification{Category: rule.Category, Severity: rule.Severity}
			if rule.SeverityFunc != nil {
				out.Severity = rule.SeverityFunc(in)
			}
			break
		}
	}

	if mentionsCriticalPath(in.Message) {
		out.Severity = domain.SeverityCritical
	}
	return out
}

// Normalize lower-cases the message and stack trace of err.
func Normalize(err error) Input {
	in := Input{Err: err, Message: strings.ToLower(err.Error())}
	var st StackTracer
	if errors.As(err, &st) {
		in.Stack = strings.ToLower(st.StackTrace())
	}
	return in
}

// Escalate raises a classification to critical when any of the given
// strings mentions checkout or payment.
func Escalate(c domain.Classification, texts ...string) domain.Classification {
	for _, t := range texts {
		if mentionsCriticalPath(strings.ToLower(t)) {
			c.Severity = domain.SeverityCritical
			return c
		}
	}
	return c
}

func mentionsCriticalPath(msg string) bool {
	return containsAny(msg, "checkout", "payment")
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func isNetError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne)
}
