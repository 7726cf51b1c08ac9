package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the model answers without any usable
// candidate part.
var ErrEmptyResponse = errors.New("llm: empty response")

// Category determines whether a failed call is retried.
type Category int

const (
	// Recoverable failures are retried with exponential backoff: 5xx, 408,
	// 429 and network errors.
	Recoverable Category = iota
	// Irrecoverable failures fail immediately: other 4xx responses.
	Irrecoverable
)

func (c Category) String() string {
	switch c {
	case Recoverable:
		return "recoverable"
	case Irrecoverable:
		return "irrecoverable"
	default:
		return "unknown"
	}
}

// Error is a classified upstream failure.
type Error struct {
	Category   Category
	StatusCode int
	Body       string
	Underlying error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm: HTTP %d (%s): %v", e.StatusCode, e.Category, e.Underlying)
	}
	return fmt.Sprintf("llm: %s: %v", e.Category, e.Underlying)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func classifyStatus(status int) Category {
	switch {
	case status == 408 || status == 429:
		return Recoverable
	case status >= 400 && status < 500:
		return Irrecoverable
	default:
		return Recoverable
	}
}

func newHTTPError(status int, body, operation string) *Error {
	return &Error{
		Category:   classifyStatus(status),
		StatusCode: status,
		Body:       body,
		Underlying: fmt.Errorf("%s failed: HTTP %d", operation, status),
	}
}

func newNetworkError(operation string, err error) *Error {
	return &Error{
		Category:   Recoverable,
		Underlying: fmt.Errorf("%s network error: %w", operation, err),
	}
}

// IsIrrecoverable reports whether err carries an Irrecoverable classification.
func IsIrrecoverable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Category == Irrecoverable
}
