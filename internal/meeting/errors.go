package meeting

import "fmt"

type ErrorCode string

const (
	// ErrorRateLimited means the LLM kept throttling through every retry.
	ErrorRateLimited ErrorCode = "RATE_LIMITED"
	// ErrorMalformedOutput means the model reply was not a JSON object.
	ErrorMalformedOutput ErrorCode = "MALFORMED_OUTPUT"
	// ErrorUpstream covers every other LLM call failure.
	ErrorUpstream ErrorCode = "UPSTREAM_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("meeting: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("meeting: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
