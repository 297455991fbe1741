package common

import "github.com/example/whatsapp-gateway/internal/models"

// NormalizationResult is the discriminated outcome of a normalization call:
// either a message or a typed error, never both.
type NormalizationResult struct {
	Success bool                      `json:"success"`
	Message *models.NormalizedMessage `json:"message,omitempty"`
	Err     *NormalizationError       `json:"error,omitempty"`
}

// Ok wraps a successfully normalized message.
func Ok(msg *models.NormalizedMessage) *NormalizationResult {
	return &NormalizationResult{Success: true, Message: msg}
}

// Fail wraps a typed normalization error.
func Fail(err *NormalizationError) *NormalizationResult {
	return &NormalizationResult{Success: false, Err: err}
}

// Failf builds a failure result with a freshly constructed error.
func Failf(code ErrorCode, format string, args ...any) *NormalizationResult {
	return Fail(NewError(code, format, args...))
}
