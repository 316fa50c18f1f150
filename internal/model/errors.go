package model

import (
	"fmt"
	"net/http"
)

// ValidationError reports input that was rejected before any request was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// RequestError reports a failed call to the backend.
// Status is zero when no HTTP response was received.
type RequestError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d %s: %s", e.Op, e.Status, http.StatusText(e.Status), msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
