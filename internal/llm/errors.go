package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderError is returned when an LLM provider fails. Code is the HTTP
// status, or 0 when the request never got a response.
type ProviderError struct {
	Provider string
	Message  string
	Code     int
}

func (e *ProviderError) Error() string {
	if e.Code == 0 {
		return e.Provider + ": " + e.Message
	}
	return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
}

// retryStatus lists the statuses after which another provider may succeed.
var retryStatus = map[int]bool{
	0: true, 401: true, 403: true, 429: true,
	500: true, 502: true, 503: true, 529: true,
}

var retryHints = []string{"overloaded", "rate limit", "capacity", "timeout"}

// Retryable reports whether err suggests moving on to another provider.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && retryStatus[pe.Code] {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range retryHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
