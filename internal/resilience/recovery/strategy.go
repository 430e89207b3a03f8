package recovery

import (
	"strings"
	"time"

	"github.com/vietddude/rrol/internal/core/domain"
	"github.com/vietddude/rrol/internal/resilience/classifier"
)

// NetworkSchedule is used for network failures: 3 attempts, x1.5,
// 500ms up to 5s. Retries only happen while online reports true.
func NetworkSchedule(online func() bool) domain.RetrySchedule {
	return domain.RetrySchedule{
		MaxAttempts:       3,
		BackoffMultiplier: 1.5,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          5 * time.Second,
		Retryable: func(error) bool {
			return online == nil || online()
		},
	}
}

// RateLimitSchedule is used when the commerce backend throttles us:
// 3 attempts, x2, 1s up to 10s.
func RateLimitSchedule() domain.RetrySchedule {
	return domain.RetrySchedule{
		MaxAttempts:       3,
		BackoffMultiplier: 2,
		InitialDelay:      1 * time.Second,
		MaxDelay:          10 * time.Second,
		Retryable:         IsRateLimited,
	}
}

// CommerceSchedule is the patient schedule domain wrappers pin for calls to
// the commerce platform. It retries anything transient except auth failures.
func CommerceSchedule() domain.RetrySchedule {
	return domain.RetrySchedule{
		MaxAttempts:       3,
		BackoffMultiplier: 2,
		InitialDelay:      1 * time.Second,
		MaxDelay:          10 * time.Second,
		Retryable: func(err error) bool {
			return IsTransient(err) && !IsUnauthorized(err)
		},
	}
}

// GeneralSchedule is the fallback for callers that do not pin a schedule
// and whose failure resolves without one.
func GeneralSchedule() domain.RetrySchedule {
	return domain.RetrySchedule{
		MaxAttempts:       2,
		BackoffMultiplier: 1.5,
		InitialDelay:      300 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		Retryable: func(err error) bool {
			msg := lower(err)
			return !strings.Contains(msg, "validation") &&
				!strings.Contains(msg, "unauthorized") &&
				!strings.Contains(msg, "forbidden")
		},
	}
}

// IsRateLimited reports whether err signals throttling.
func IsRateLimited(err error) bool {
	return matches(err, "429", "rate limit", "too many requests", "throttl")
}

// IsOutOfStock reports whether err signals unavailable inventory.
func IsOutOfStock(err error) bool {
	return matches(err, "inventory", "stock", "sold out")
}

// IsSessionExpired reports whether err signals an expired or invalid session.
func IsSessionExpired(err error) bool {
	return matches(err, "expired", "invalid")
}

// IsUnauthorized reports whether err signals an authentication failure.
func IsUnauthorized(err error) bool {
	return matches(err, "401", "unauthorized", "forbidden", "access token")
}

// IsTemporary reports whether err signals a transient backend outage.
func IsTemporary(err error) bool {
	return matches(err, "temporar", "unavailable", "502", "503", "504", "internal server error")
}

// IsTransient reports whether err is worth retrying against the backend.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimited(err) || IsTemporary(err) {
		return true
	}
	return classifier.Classify(err).Category == domain.CategoryNetwork
}

func matches(err error, keywords ...string) bool {
	if err == nil {
		return false
	}
	msg := lower(err)
	for _, k := range keywords {
		if strings.Contains(msg, k) {
			return true
		}
	}
	return false
}

func lower(err error) (msg string) {
	defer func() {
		if recover() != nil {
			msg = ""
		}
	}()
	return strings.ToLower(err.Error())
}
