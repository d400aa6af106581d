package apiclient

import (
	"errors"
	"fmt"
)

// APIError is an application-level failure reported inside a well-formed
// envelope (errorCode outside {0, 200}). Transport and decode failures are
// returned as plain errors instead.
type APIError struct {
	Message       string
	StatusCode    int
	ServerMessage string
}

func (e *APIError) Error() string {
	if e.ServerMessage != "" && e.ServerMessage != e.Message {
		return fmt.Sprintf("api error %d: %s (%s)", e.StatusCode, e.Message, e.ServerMessage)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err carries the systemic 401 signal. Every
// caller that observes it must clear the player identity and the session lock,
// not just report the failure locally.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401
	}
	return false
}
