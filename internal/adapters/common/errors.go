package common

import "fmt"

// ErrorCode enumerates the closed set of normalization failure codes.
type ErrorCode string

const (
	// CodeInvalidPayload: payload is nil, or no adapter recognizes its
	// shape at the CanHandle stage.
	CodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"
	// CodeUnknownProvider: the registry found no matching adapter.
	CodeUnknownProvider ErrorCode = "UNKNOWN_PROVIDER"
	// CodeMissingRequiredField: the shape matched a provider but required
	// nested data is absent.
	CodeMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"
	// CodeUnsupportedMessageType: the event or message kind is one the
	// adapter intentionally does not process.
	CodeUnsupportedMessageType ErrorCode = "UNSUPPORTED_MESSAGE_TYPE"
	// CodeParseError: an unexpected fault occurred during field
	// extraction; the underlying cause is attached as detail.
	CodeParseError ErrorCode = "PARSE_ERROR"
	// CodeProcessingError: a fault escaped an adapter's Normalize and was
	// contained by the registry dispatch layer.
	CodeProcessingError ErrorCode = "PROCESSING_ERROR"
)

// NormalizationError is the typed failure carried by a NormalizationResult.
// Code is machine-readable, Message is for humans, and Details holds optional
// diagnostic facts such as the underlying cause or the rejected payload's
// top-level keys.
type NormalizationError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError constructs a NormalizationError with the supplied code and
// formatted message.
func NewError(code ErrorCode, format string, args ...any) *NormalizationError {
	return &NormalizationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail attaches one diagnostic detail and returns the error for
// chaining.
func (e *NormalizationError) WithDetail(key string, value any) *NormalizationError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}
