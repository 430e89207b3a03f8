package recovery

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

// MaxRetryAfter caps server-provided retry hints.
const MaxRetryAfter = time.Minute

// RetryAfterer is implemented by errors that carry a server retry hint.
type RetryAfterer interface {
	RetryAfter() time.Duration
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry.*?(\d+)`)

// RetryAfter extracts a retry hint from err, either from a RetryAfterer in
// the chain or from a "retry after N" (seconds) fragment in the message.
// Hints of a minute or more are ignored, as are errors that panic while
// being inspected.
func RetryAfter(err error) (d time.Duration, ok bool) {
	if err == nil {
		return 0, false
	}
	defer func() {
		if recover() != nil {
			d, ok = 0, false
		}
	}()

	var ra RetryAfterer
	if errors.As(err, &ra) {
		if d := ra.RetryAfter(); d > 0 && d < MaxRetryAfter {
			return d, true
		}
		return 0, false
	}

	m := retryAfterPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	secs, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0, false
	}
	d = time.Duration(secs) * time.Second
	if d <= 0 || d >= MaxRetryAfter {
		return 0, false
	}
	return d, true
}
