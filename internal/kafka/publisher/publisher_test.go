package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/adapters/common"
	"github.com/example/whatsapp-gateway/internal/kafka/publisher"
	"github.com/example/whatsapp-gateway/internal/models"
)

type fakeProducer struct {
	topic   string
	key     []byte
	headers map[string][]byte
	payload []byte
	err     error
}

func (f *fakeProducer) PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error {
	f.topic = topic
	f.key = key
	f.headers = headers
	f.payload = payload
	return f.err
}

func sampleMessage() *models.NormalizedMessage {
	return &models.NormalizedMessage{
		ID:         models.NewMessageID(),
		ExternalID: "wamid.ABC",
		Provider:   models.ProviderMeta,
		Timestamp:  1677234567000,
		Direction:  models.DirectionInbound,
		Status:     models.StatusReceived,
		Content:    models.MessageContent{Type: models.ContentText, Text: "Olá"},
	}
}

func TestPublishMessageKeysAndHeaders(t *testing.T) {
	prod := &fakeProducer{}
	pub := publisher.NewMessagePublisher(prod, "whatsapp.messages.normalized", zerolog.Nop())

	if err := pub.PublishMessage(context.Background(), sampleMessage()); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}
	if prod.topic != "whatsapp.messages.normalized" {
		t.Fatalf("unexpected topic: %s", prod.topic)
	}
	if string(prod.key) != "meta:wamid.ABC" {
		t.Fatalf("unexpected key: %s", prod.key)
	}
	if string(prod.headers["provider"]) != "meta" {
		t.Fatalf("expected provider header, got %v", prod.headers)
	}

	var decoded models.NormalizedMessage
	if err := json.Unmarshal(prod.payload, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded.ExternalID != "wamid.ABC" || decoded.Content.Text != "Olá" {
		t.Fatalf("unexpected payload round-trip: %+v", decoded)
	}
}

func TestPublishMessagePropagatesProducerError(t *testing.T) {
	prod := &fakeProducer{err: errors.New("broker down")}
	pub := publisher.NewMessagePublisher(prod, "topic", zerolog.Nop())
	if err := pub.PublishMessage(context.Background(), sampleMessage()); err == nil {
		t.Fatal("expected error from failing producer")
	}
}

func TestNewMessagePublisherRequiresProducer(t *testing.T) {
	if publisher.NewMessagePublisher(nil, "topic", zerolog.Nop()) != nil {
		t.Fatal("expected nil publisher without a producer")
	}
}

func TestPublishFailureTruncatesRawPayload(t *testing.T) {
	prod := &fakeProducer{}
	pub := publisher.NewDLQPublisher(prod, "whatsapp.messages.dlq", 10, zerolog.Nop())

	nerr := common.NewError(common.CodeUnknownProvider, "no adapter matched").
		WithDetail("payloadKeys", []string{"foo"})
	raw := []byte(`{"foo":"a very long body"}`)
	if err := pub.PublishFailure(context.Background(), raw, nerr); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	var event publisher.FailedDelivery
	if err := json.Unmarshal(prod.payload, &event); err != nil {
		t.Fatalf("event is not valid JSON: %v", err)
	}
	if event.ErrorCode != common.CodeUnknownProvider {
		t.Fatalf("unexpected error code: %s", event.ErrorCode)
	}
	if !event.Truncated || len(event.RawPayload) != 10 {
		t.Fatalf("expected truncated raw payload, got %q (truncated=%v)", event.RawPayload, event.Truncated)
	}
	if string(prod.headers["error-code"]) != "UNKNOWN_PROVIDER" {
		t.Fatalf("expected error-code header, got %v", prod.headers)
	}
}

func TestPublishFailureTruncatesOnRuneBoundary(t *testing.T) {
	prod := &fakeProducer{}
	pub := publisher.NewDLQPublisher(prod, "whatsapp.messages.dlq", 12, zerolog.Nop())

	// Byte 12 lands in the middle of the two-byte "á"; the cut must back
	// off so the stored payload stays valid UTF-8.
	raw := []byte(`{"text":"Olá, tudo bem?"}`)
	nerr := common.NewError(common.CodeParseError, "boom")
	if err := pub.PublishFailure(context.Background(), raw, nerr); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	var event publisher.FailedDelivery
	if err := json.Unmarshal(prod.payload, &event); err != nil {
		t.Fatalf("event is not valid JSON: %v", err)
	}
	if !event.Truncated {
		t.Fatal("expected truncated raw payload")
	}
	if !utf8.ValidString(event.RawPayload) {
		t.Fatalf("raw payload is not valid UTF-8: %q", event.RawPayload)
	}
	if event.RawPayload != `{"text":"Ol` {
		t.Fatalf("unexpected truncation point: %q", event.RawPayload)
	}
}

func TestPublishFailureKeepsSmallPayloads(t *testing.T) {
	prod := &fakeProducer{}
	pub := publisher.NewDLQPublisher(prod, "dlq", 1024, zerolog.Nop())

	raw := []byte(`{"foo":"bar"}`)
	nerr := common.NewError(common.CodeParseError, "boom")
	if err := pub.PublishFailure(context.Background(), raw, nerr); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	var event publisher.FailedDelivery
	if err := json.Unmarshal(prod.payload, &event); err != nil {
		t.Fatalf("event is not valid JSON: %v", err)
	}
	if event.Truncated || event.RawPayload != `{"foo":"bar"}` {
		t.Fatalf("expected untouched raw payload, got %+v", event)
	}
}
