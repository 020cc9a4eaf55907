package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotFound        = errors.New("message not found")
	ErrUnknownTool     = errors.New("unknown tool")
	ErrGeneration      = errors.New("generation failed")
	ErrPersistence     = errors.New("persistence failed")
)

// ValidationError reports a missing or invalid tool parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Field + " is required"
}
