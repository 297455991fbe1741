// Package webhook exposes the HTTP surface of the gateway: the provider
// webhook endpoint, the Meta subscription handshake and a liveness probe.
// Every webhook delivery is one independent, synchronous normalization; a
// failed normalization is terminal for that delivery and never retried here.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/adapters/common"
	"github.com/example/whatsapp-gateway/internal/classify"
	"github.com/example/whatsapp-gateway/internal/models"
	"github.com/example/whatsapp-gateway/internal/registry"
)

const defaultMaxBodyBytes = 1 << 20

// MessageStore persists normalized messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *models.NormalizedMessage) error
}

// MessagePublisher forwards normalized messages downstream.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, msg *models.NormalizedMessage) error
}

// FailurePublisher records webhook deliveries that could not be normalized.
type FailurePublisher interface {
	PublishFailure(ctx context.Context, rawBody []byte, nerr *common.NormalizationError) error
}

// Config tunes the webhook surface.
type Config struct {
	// VerifyToken is matched against hub.verify_token in the Meta
	// subscription handshake. An empty token rejects all handshakes.
	VerifyToken string
	// MaxBodyBytes caps the accepted request body size.
	MaxBodyBytes int64
}

// Dependencies carries the collaborators of the webhook server. Registry is
// required; the rest are optional and skipped when nil.
type Dependencies struct {
	Registry   *registry.Registry
	Store      MessageStore
	Publisher  MessagePublisher
	DLQ        FailurePublisher
	Classifier classify.Classifier
	Logger     zerolog.Logger
}

// Server handles webhook HTTP traffic.
type Server struct {
	cfg  Config
	deps Dependencies
	log  zerolog.Logger
}

// NewServer constructs the webhook server.
func NewServer(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Registry == nil {
		return nil, errors.New("webhook server: registry dependency is required")
	}
	if reflect.ValueOf(deps.Logger).IsZero() {
		deps.Logger = zerolog.Nop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Server{cfg: cfg, deps: deps, log: deps.Logger}, nil
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /webhooks/whatsapp", s.handleVerification)
	mux.HandleFunc("POST /webhooks/whatsapp", s.handleWebhook)
	mux.HandleFunc("POST /webhooks/whatsapp/{provider}", s.handleWebhook)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleVerification implements the Meta subscription handshake: when the
// verify token matches, the hub.challenge value is echoed back as plain text.
func (s *Server) handleVerification(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	if mode != "subscribe" || s.cfg.VerifyToken == "" || token != s.cfg.VerifyToken {
		s.log.Warn().Str("hub_mode", mode).Msg("webhook verification rejected")
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, query.Get("hub.challenge"))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
		return
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body is not valid JSON"})
		return
	}

	var result *common.NormalizationResult
	if provider := r.PathValue("provider"); provider != "" {
		result = s.deps.Registry.NormalizeWithProvider(payload, models.Provider(provider))
	} else {
		result = s.deps.Registry.Normalize(payload)
	}

	// Providers retry on non-2xx; every outcome of a decoded body is
	// acknowledged with 200 and the result is reported in the response.
	if !result.Success {
		s.recordFailure(r.Context(), body, result.Err)
		writeJSON(w, http.StatusOK, result)
		return
	}

	response := s.process(r.Context(), result.Message)
	writeJSON(w, http.StatusOK, response)
}

type webhookResponse struct {
	Success        bool             `json:"success"`
	MessageID      string           `json:"messageId"`
	ExternalID     string           `json:"externalId"`
	Provider       models.Provider  `json:"provider"`
	Classification *classify.Result `json:"classification,omitempty"`
}

// process hands the normalized message to the persistence, publishing and
// classification collaborators. Collaborator failures are logged but do not
// fail the delivery: the normalization already succeeded.
func (s *Server) process(ctx context.Context, msg *models.NormalizedMessage) webhookResponse {
	log := s.log.With().
		Str("message_id", msg.ID).
		Str("provider", string(msg.Provider)).
		Str("external_id", msg.ExternalID).
		Logger()

	if s.deps.Store != nil {
		if err := s.deps.Store.SaveMessage(ctx, msg); err != nil {
			log.Error().Err(err).Msg("failed to persist message")
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishMessage(ctx, msg); err != nil {
			log.Error().Err(err).Msg("failed to publish message")
		}
	}

	response := webhookResponse{
		Success:    true,
		MessageID:  msg.ID,
		ExternalID: msg.ExternalID,
		Provider:   msg.Provider,
	}

	// Classification applies only to inbound text-bearing messages.
	if s.deps.Classifier != nil && msg.Direction == models.DirectionInbound &&
		msg.Content.Type == models.ContentText && msg.Content.Text != "" {
		labels, err := s.deps.Classifier.Classify(ctx, msg)
		if err != nil {
			log.Error().Err(err).Msg("classification failed")
		} else {
			response.Classification = labels
		}
	}

	log.Info().
		Str("direction", string(msg.Direction)).
		Str("content_type", string(msg.Content.Type)).
		Msg("webhook normalized")
	return response
}

func (s *Server) recordFailure(ctx context.Context, body []byte, nerr *common.NormalizationError) {
	s.log.Warn().
		Str("error_code", string(nerr.Code)).
		Str("error", nerr.Message).
		Msg("webhook normalization failed")
	if s.deps.DLQ == nil {
		return
	}
	if err := s.deps.DLQ.PublishFailure(ctx, body, nerr); err != nil {
		s.log.Error().Err(err).Msg("failed to publish dlq event")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
