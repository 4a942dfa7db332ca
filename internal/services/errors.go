package services

import "fmt"

// ValidationError is a caller mistake, surfaced as HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ProviderError covers every way a model call can fail: transport, auth,
// rate limiting, timeouts, blocked or empty candidates.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Parse failure reasons.
const (
	ParseReasonInvalidJSON  = "invalid_json"
	ParseReasonMissingField = "missing_field"
	ParseReasonNotNumeric   = "not_numeric"
)

// ParseError means the model answered but its output could not be trusted.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse model output: " + e.Reason
	}
	return fmt.Sprintf("parse model output: %s: %v", e.Reason, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
