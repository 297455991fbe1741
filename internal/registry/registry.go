// Package registry owns the set of provider adapters, detects which one a
// payload belongs to and dispatches normalization to it.
package registry

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/adapters/common"
	"github.com/example/whatsapp-gateway/internal/adapters/evolution"
	"github.com/example/whatsapp-gateway/internal/adapters/meta"
	"github.com/example/whatsapp-gateway/internal/adapters/zapi"
	"github.com/example/whatsapp-gateway/internal/models"
)

// Registry holds adapters keyed by provider and probes them in registration
// order during detection. The registration table is the only mutable state;
// it is guarded by a read-write mutex so registration may happen safely even
// while normalization traffic is flowing, though in steady state the table
// only changes at startup.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.Provider]common.Adapter
	order    []models.Provider
	logger   zerolog.Logger
}

// New constructs a registry pre-populated with the three built-in adapters.
func New(logger zerolog.Logger) *Registry {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	r := &Registry{logger: logger}
	r.Reset()
	return r
}

// Register inserts the adapter under its provider tag. Replacing an existing
// entry is allowed but logged, since two adapters claiming the same provider
// indicates a configuration conflict. The replaced adapter keeps its original
// position in the probe order.
func (r *Registry) Register(adapter common.Adapter) {
	if adapter == nil {
		return
	}
	provider := adapter.Provider()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[provider]; exists {
		r.logger.Warn().Str("provider", string(provider)).Msg("replacing already registered adapter")
	} else {
		r.order = append(r.order, provider)
	}
	r.adapters[provider] = adapter
}

// Unregister removes the adapter for the provider and reports whether one
// was registered.
func (r *Registry) Unregister(provider models.Provider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[provider]; !exists {
		return false
	}
	delete(r.adapters, provider)
	for i, p := range r.order {
		if p == provider {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Reset clears all registrations and re-installs the built-in adapters. It
// restores a known baseline between test cases and is not part of
// steady-state operation.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = make(map[models.Provider]common.Adapter)
	r.order = r.order[:0]
	for _, adapter := range []common.Adapter{
		meta.NewAdapter(r.logger.With().Str("adapter", "meta").Logger()),
		evolution.NewAdapter(r.logger.With().Str("adapter", "evolution").Logger()),
		zapi.NewAdapter(r.logger.With().Str("adapter", "z-api").Logger()),
	} {
		r.adapters[adapter.Provider()] = adapter
		r.order = append(r.order, adapter.Provider())
	}
}

// Providers returns the registered provider tags in registration order.
func (r *Registry) Providers() []models.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Provider(nil), r.order...)
}

// IdentifyProvider probes the registered adapters in registration order and
// returns the first positive identification. Detection markers are mutually
// exclusive across the built-in providers, so order should not matter for
// well-formed input; first-match-wins keeps behaviour deterministic even if
// a custom adapter violates exclusivity.
func (r *Registry) IdentifyProvider(payload any) common.ProviderIdentification {
	if adapter, ok := r.FindAdapter(payload); ok {
		return common.Identified(adapter.Provider())
	}
	return common.Unidentified()
}

// FindAdapter performs the same traversal as IdentifyProvider but returns
// the adapter instance.
func (r *Registry) FindAdapter(payload any) (common.Adapter, bool) {
	for _, adapter := range r.snapshot() {
		if r.safeCanHandle(adapter, payload) {
			return adapter, true
		}
	}
	return nil, false
}

// safeCanHandle contains panics raised during detection. Built-in adapters
// never panic, but a misbehaving custom adapter must not take down the
// detection loop; it is treated as a non-match and the traversal continues.
func (r *Registry) safeCanHandle(adapter common.Adapter, payload any) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("provider", string(adapter.Provider())).
				Interface("panic", rec).
				Msg("adapter detection panicked")
			matched = false
		}
	}()
	return adapter.CanHandle(payload)
}

// Normalize is the top-level entry point: it detects the provider and
// delegates to its adapter. A nil payload fails fast with INVALID_PAYLOAD,
// and an undetected one with UNKNOWN_PROVIDER carrying the registered
// providers and the payload's top-level keys as diagnostics.
func (r *Registry) Normalize(payload any) *common.NormalizationResult {
	if payload == nil {
		return common.Failf(common.CodeInvalidPayload, "payload is nil")
	}

	adapter, ok := r.FindAdapter(payload)
	if !ok {
		providers := r.Providers()
		r.logger.Warn().
			Strs("payload_keys", common.TopLevelKeys(payload)).
			Msg("no adapter recognized webhook payload")
		return common.Fail(
			common.NewError(common.CodeUnknownProvider, "no registered adapter recognizes this payload").
				WithDetail("registeredProviders", providers).
				WithDetail("payloadKeys", common.TopLevelKeys(payload)))
	}
	return r.dispatch(adapter, payload)
}

// NormalizeWithProvider bypasses detection for callers that already know the
// payload's source.
func (r *Registry) NormalizeWithProvider(payload any, provider models.Provider) *common.NormalizationResult {
	r.mu.RLock()
	adapter, ok := r.adapters[provider]
	r.mu.RUnlock()
	if !ok {
		return common.Fail(
			common.NewError(common.CodeUnknownProvider, "provider %q is not registered", provider).
				WithDetail("registeredProviders", r.Providers()))
	}
	return r.dispatch(adapter, payload)
}

// dispatch calls the adapter's Normalize and contains any escaping panic as
// PROCESSING_ERROR. Built-in adapters never panic, but the registry makes
// the same guarantee for custom ones.
func (r *Registry) dispatch(adapter common.Adapter, payload any) (result *common.NormalizationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("provider", string(adapter.Provider())).
				Interface("panic", rec).
				Msg("adapter normalize panicked")
			result = common.Fail(
				common.NewError(common.CodeProcessingError, "adapter %q failed while normalizing", adapter.Provider()).
					WithDetail("cause", fmt.Sprint(rec)))
		}
	}()

	result = adapter.Normalize(payload)
	if result == nil {
		result = common.Failf(common.CodeProcessingError, "adapter %q returned no result", adapter.Provider())
	}
	return result
}

func (r *Registry) snapshot() []common.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapters := make([]common.Adapter, 0, len(r.order))
	for _, provider := range r.order {
		adapters = append(adapters, r.adapters[provider])
	}
	return adapters
}
