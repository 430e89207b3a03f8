package domain

import "time"

// Hint tells the UI what to do with a terminal result.
type Hint string

const (
	HintNone           Hint = ""
	HintRetryExhausted Hint = "retry-exhausted"
	HintShowMessage    Hint = "show_message"
	HintRedirect       Hint = "redirect"
	HintManual         Hint = "manual"
	HintFallback       Hint = "fallback"
)

// HintFor maps a terminal recovery action to the hint surfaced to callers.
func HintFor(action Action) Hint {
	switch action {
	case ActionRetry:
		return HintRetryExhausted
	case ActionShowMessage:
		return HintShowMessage
	case ActionRedirect:
		return HintRedirect
	case ActionManualIntervention:
		return HintManual
	case ActionFallback:
		return HintFallback
	default:
		return HintNone
	}
}

// Notice is a persistent, dismiss-requiring notification for critical
// unrecoverable failures.
type Notice struct {
	Message        string `json:"message"`
	SupportContact string `json:"supportContact"`
	Persistent     bool   `json:"persistent"`
}

// OperationResult is the terminal outcome returned to callers.
//
// Success is true iff Data is non-nil and Error is empty. Attempts is
// always at least 1.
type OperationResult[T any] struct {
	Success   bool          `json:"success"`
	Data      *T            `json:"data,omitempty"`
	Error     string        `json:"error,omitempty"`
	Attempts  int           `json:"attempts"`
	TotalTime time.Duration `json:"totalTime"`

	Action       Hint     `json:"action,omitempty"`
	Message      string   `json:"message,omitempty"`
	Severity     Severity `json:"severity,omitempty"`
	FallbackUsed bool     `json:"fallbackUsed,omitempty"`
	Notice       *Notice  `json:"notice,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded[T any](data T, attempts int, elapsed time.Duration) OperationResult[T] {
	return OperationResult[T]{
		Success:   true,
		Data:      &data,
		Attempts:  max(attempts, 1),
		TotalTime: elapsed,
	}
}

// Failed builds a failed result.
func Failed[T any](errMsg string, attempts int, elapsed time.Duration) OperationResult[T] {
	if errMsg == "" {
		errMsg = "unknown error"
	}
	return OperationResult[T]{
		Success:   false,
		Error:     errMsg,
		Attempts:  max(attempts, 1),
		TotalTime: elapsed,
	}
}

// TotalTimeMs returns the elapsed time in whole milliseconds.
func (r OperationResult[T]) TotalTimeMs() int64 {
	return r.TotalTime.Milliseconds()
}
