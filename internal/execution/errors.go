package execution

import (
	"errors"
	"fmt"
)

// ErrorCode classifies execution failures for retry decisions and
// operator reporting.
type ErrorCode string

const (
	CodeTimeout     ErrorCode = "TIMEOUT"
	CodeRateLimited ErrorCode = "RATE_LIMITED"
	CodeUnavailable ErrorCode = "UNAVAILABLE"
	CodeRejected    ErrorCode = "REJECTED"
	CodeInvalid     ErrorCode = "INVALID_REQUEST"
)

// ExecError is a classified order submission failure. Retryable errors
// are transient broker conditions (timeouts, rate limits, outages);
// everything else is terminal and must not be resubmitted.
type ExecError struct {
	Code      ErrorCode
	Op        string
	Pair      string
	Retryable bool
	Err       error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s for %s: %v", e.Code, e.Op, e.Pair, e.Err)
	}
	return fmt.Sprintf("%s %s for %s", e.Code, e.Op, e.Pair)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Retryable reports whether the error chain contains a retryable
// ExecError. Unclassified errors are terminal.
func Retryable(err error) bool {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}
