package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/adapters/common"
	"github.com/example/whatsapp-gateway/internal/models"
)

var errProducerNotInitialised = errors.New("kafka publisher: producer not initialised")

// SyncProducer captures the subset of producer behaviour the publishers need.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// MessagePublisher emits normalized messages to a Kafka topic. Messages are
// keyed by provider-qualified external id so redeliveries of the same webhook
// land on the same partition.
type MessagePublisher struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewMessagePublisher constructs a MessagePublisher instance.
func NewMessagePublisher(prod SyncProducer, topic string, logger zerolog.Logger) *MessagePublisher {
	if prod == nil {
		return nil
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &MessagePublisher{producer: prod, topic: topic, logger: logger}
}

// PublishMessage writes the normalized message to Kafka synchronously.
func (p *MessagePublisher) PublishMessage(_ context.Context, msg *models.NormalizedMessage) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialised
	}
	if msg == nil {
		return errors.New("kafka publisher: message is nil")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal normalized message: %w", err)
	}

	key := []byte(fmt.Sprintf("%s:%s", msg.Provider, msg.ExternalID))
	headers := map[string][]byte{
		"content-type": []byte("application/json"),
		"provider":     []byte(msg.Provider),
	}
	if err := p.producer.PublishSync(p.topic, key, headers, payload); err != nil {
		return fmt.Errorf("kafka publisher: publish normalized message: %w", err)
	}
	return nil
}

// FailedDelivery is the event written to the DLQ topic when a webhook body
// could not be normalized. RawPayload is truncated so a hostile body cannot
// blow up the event size.
type FailedDelivery struct {
	ErrorCode    common.ErrorCode `json:"errorCode"`
	ErrorMessage string           `json:"errorMessage"`
	Details      map[string]any   `json:"details,omitempty"`
	RawPayload   string           `json:"rawPayload,omitempty"`
	Truncated    bool             `json:"truncated,omitempty"`
	FailedAt     time.Time        `json:"failedAt"`
}

// DLQPublisher writes failed webhook deliveries to the configured topic.
type DLQPublisher struct {
	producer    SyncProducer
	topic       string
	maxRawBytes int
	logger      zerolog.Logger
}

// NewDLQPublisher constructs a DLQPublisher instance.
func NewDLQPublisher(prod SyncProducer, topic string, maxRawBytes int, logger zerolog.Logger) *DLQPublisher {
	if prod == nil {
		return nil
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &DLQPublisher{producer: prod, topic: topic, maxRawBytes: maxRawBytes, logger: logger}
}

// PublishFailure records a normalization failure on the DLQ topic.
func (p *DLQPublisher) PublishFailure(_ context.Context, rawBody []byte, nerr *common.NormalizationError) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialised
	}
	if nerr == nil {
		return errors.New("kafka publisher: normalization error is nil")
	}

	raw, truncated := truncate(rawBody, p.maxRawBytes)
	event := FailedDelivery{
		ErrorCode:    nerr.Code,
		ErrorMessage: nerr.Message,
		Details:      nerr.Details,
		RawPayload:   raw,
		Truncated:    truncated,
		FailedAt:     time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal failed delivery: %w", err)
	}
	headers := map[string][]byte{
		"content-type": []byte("application/json"),
		"error-code":   []byte(nerr.Code),
	}
	if err := p.producer.PublishSync(p.topic, nil, headers, payload); err != nil {
		return fmt.Errorf("kafka publisher: publish failed delivery: %w", err)
	}
	return nil
}

// truncate cuts raw down to at most limit bytes. The cut point backs off to
// a UTF-8 rune boundary so the truncated payload never carries a split
// multi-byte sequence into the JSON-encoded event.
func truncate(raw []byte, limit int) (string, bool) {
	if limit <= 0 || len(raw) <= limit {
		return string(raw), false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(raw[cut]) {
		cut--
	}
	return string(raw[:cut]), true
}
