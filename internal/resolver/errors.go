package resolver

import "fmt"

// Kind classifies resolution failures.
type Kind string

const (
	KindNetwork         Kind = "network"
	KindDecode          Kind = "decode"
	KindContentNotFound Kind = "content_not_found"
)

// Error is returned for every failed resolution. Counter failures are not
// resolution errors and are returned as plain wrapped errors.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Reason()
	}
	return fmt.Sprintf("%s: %v", e.Reason(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reason is the short text shown to the user.
func (e *Error) Reason() string {
	switch e.Kind {
	case KindNetwork:
		return "Failed to send request"
	case KindDecode:
		return "Failed to parse JSON response"
	case KindContentNotFound:
		return "Video URL not found in API response"
	default:
		return "Unknown error"
	}
}
