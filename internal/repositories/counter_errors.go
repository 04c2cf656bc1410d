package repositories

import "fmt"

// CounterErrorCode enumerates failure reasons for sequence counters.
type CounterErrorCode string

const (
	// CounterErrorUnknown represents an unspecified failure.
	CounterErrorUnknown CounterErrorCode = "counter_unknown"
	// CounterErrorInvalidInput indicates the caller supplied invalid arguments.
	CounterErrorInvalidInput CounterErrorCode = "counter_invalid_input"
	// CounterErrorExhausted indicates the counter reached its configured max value.
	CounterErrorExhausted CounterErrorCode = "counter_exhausted"
)

// CounterError carries a machine readable code for counter failures.
type CounterError struct {
	Op      string
	Code    CounterErrorCode
	Message string
	Err     error
}

func (e *CounterError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CounterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewCounterError constructs a typed counter error.
func NewCounterError(code CounterErrorCode, message string, err error) *CounterError {
	if message == "" {
		message = string(code)
	}
	return &CounterError{Code: code, Message: message, Err: err}
}
