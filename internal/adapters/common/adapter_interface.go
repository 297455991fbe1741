package common

import "github.com/example/whatsapp-gateway/internal/models"

// Adapter defines the behaviour required from provider adapters. An adapter
// recognizes the webhook JSON shape of exactly one provider and converts it
// into the canonical message model.
//
// All four operations must be total: any value, including nil, scalars and
// arbitrary JSON, is a legal argument. CanHandle and Validate report false on
// input they cannot work with, and Normalize returns a typed failure; none of
// them may panic across this interface.
type Adapter interface {
	// Provider returns the provider tag this adapter is registered under.
	Provider() models.Provider

	// CanHandle reports whether the payload carries this provider's
	// structural markers. It examines field presence and shape only and is
	// free of side effects.
	CanHandle(payload any) bool

	// Validate checks deeper structural completeness of a payload that
	// already passed CanHandle, such as the presence of at least one
	// message or status record.
	Validate(payload any) bool

	// Normalize transforms the payload into a NormalizedMessage. It fails
	// with CodeInvalidPayload when CanHandle is false, with
	// CodeMissingRequiredField when Validate is false, and converts any
	// fault during extraction into CodeParseError.
	Normalize(payload any) *NormalizationResult

	// Identify wraps CanHandle into a ProviderIdentification with binary
	// confidence.
	Identify(payload any) ProviderIdentification
}

// ProviderIdentification is the outcome of provider detection. Confidence is
// binary in this design: 1 when the adapter recognizes the payload, 0
// otherwise.
type ProviderIdentification struct {
	Provider   models.Provider `json:"provider"`
	Confidence float64         `json:"confidence"`
}

// Identified builds the positive identification for a provider.
func Identified(provider models.Provider) ProviderIdentification {
	return ProviderIdentification{Provider: provider, Confidence: 1}
}

// Unidentified is returned when no adapter recognizes a payload.
func Unidentified() ProviderIdentification {
	return ProviderIdentification{Provider: models.ProviderUnknown, Confidence: 0}
}
