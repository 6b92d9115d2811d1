package provider

import (
	"errors"
	"fmt"
)

// Error codes carried by ProviderError
const (
	ErrCodeTransport   = "TRANSPORT"
	ErrCodeTimeout     = "TIMEOUT"
	ErrCodeHTTPStatus  = "HTTP_STATUS"
	ErrCodeRateLimited = "RATE_LIMITED"
	ErrCodeMalformed   = "MALFORMED"
	ErrCodeCircuitOpen = "CIRCUIT_OPEN"
)

// ErrMalformed marks a response body that could not be interpreted
var ErrMalformed = errors.New("malformed response")

// ProviderError describes why an attempt against a source failed
type ProviderError struct {
	Provider    string `json:"provider"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	HTTPStatus  int    `json:"http_status,omitempty"`
	RateLimited bool   `json:"rate_limited"`
	Cause       error  `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("provider %s: %s (%s %d)", e.Provider, e.Message, e.Code, e.HTTPStatus)
	}
	return fmt.Sprintf("provider %s: %s (%s)", e.Provider, e.Message, e.Code)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

func retryable(provider, code, msg string, cause error) Outcome {
	return Outcome{
		Kind: OutcomeRetryable,
		Err:  &ProviderError{Provider: provider, Code: code, Message: msg, Cause: cause},
	}
}

func malformed(provider, msg string, cause error) Outcome {
	if cause == nil {
		cause = ErrMalformed
	} else {
		cause = fmt.Errorf("%w: %v", ErrMalformed, cause)
	}
	return retryable(provider, ErrCodeMalformed, msg, cause)
}

// CircuitOpen is the outcome used when a source's breaker refuses a call
func CircuitOpen(provider string, cause error) Outcome {
	return retryable(provider, ErrCodeCircuitOpen, "circuit breaker open", cause)
}
