package driver

import "fmt"

const prefixLen = 32

// ValidationError reports a response body that differs from the endpoint's canonical payload.
type ValidationError struct {
	Endpoint string
	WantLen  int
	GotLen   int
	GotHead  string // First bytes of the received body
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unexpected response body from %s: want %d bytes, got %d bytes (%q)",
		e.Endpoint, e.WantLen, e.GotLen, e.GotHead)
}

// NewValidationError builds a ValidationError keeping only the head of got.
func NewValidationError(endpoint string, want, got []byte) *ValidationError {
	head := got
	if len(head) > prefixLen {
		head = head[:prefixLen]
	}
	return &ValidationError{Endpoint: endpoint, WantLen: len(want), GotLen: len(got), GotHead: string(head)}
}

// StatusError reports a non-200 response.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status from %s: %d", e.Endpoint, e.StatusCode)
}
