package zapi_test

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/adapters/common"
	"github.com/example/whatsapp-gateway/internal/adapters/zapi"
	"github.com/example/whatsapp-gateway/internal/models"
)

const inboundTextPayload = `{
	"instanceId": "INSTANCE_1",
	"messageId": "3EB0A1B2C3",
	"phone": "5511988888888",
	"fromMe": false,
	"momment": 1677234567000,
	"status": "SENT",
	"senderName": "Carlos",
	"senderPhoto": "https://pps.whatsapp.net/carlos.jpg",
	"connectedPhone": "5511999999999",
	"chatName": "Carlos",
	"text": {"message": "bom dia"}
}`

func mustPayload(t *testing.T, raw string) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("invalid test payload: %v", err)
	}
	return payload
}

func TestCanHandleIsTotal(t *testing.T) {
	adapter := zapi.NewAdapter(zerolog.Nop())
	for _, payload := range []any{
		nil,
		"string",
		[]any{},
		map[string]any{},
		map[string]any{"instanceId": "x", "messageId": "y", "phone": "z"},
		map[string]any{"instanceId": "x", "messageId": "y", "phone": "z", "momment": "not a number"},
	} {
		if adapter.CanHandle(payload) {
			t.Fatalf("CanHandle(%v) should be false", payload)
		}
	}
	if !adapter.CanHandle(mustPayload(t, inboundTextPayload)) {
		t.Fatal("CanHandle should accept the canonical z-api payload")
	}
}

func TestNormalizeMommentIsAlreadyMilliseconds(t *testing.T) {
	adapter := zapi.NewAdapter(zerolog.Nop())
	result := adapter.Normalize(mustPayload(t, inboundTextPayload))
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Err)
	}
	if result.Message.Timestamp != 1677234567000 {
		t.Fatalf("momment must pass through without conversion, got %d", result.Message.Timestamp)
	}
}

func TestNormalizeInboundForcesReceived(t *testing.T) {
	adapter := zapi.NewAdapter(zerolog.Nop())
	// Payload says SENT, but inbound messages are always received.
	result := adapter.Normalize(mustPayload(t, inboundTextPayload))
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Err)
	}

	msg := result.Message
	if msg.Direction != models.DirectionInbound {
		t.Fatalf("expected inbound, got %s", msg.Direction)
	}
	if msg.Status != models.StatusReceived {
		t.Fatalf("inbound status must be forced to received, got %s", msg.Status)
	}
	if msg.From.PhoneNumber != "5511988888888" || msg.From.Name != "Carlos" {
		t.Fatalf("unexpected from contact: %+v", msg.From)
	}
	if msg.From.ProfilePicURL == "" {
		t.Fatal("expected sender photo on the from contact")
	}
	if msg.To.PhoneNumber != "5511999999999" {
		t.Fatalf("unexpected to contact: %+v", msg.To)
	}
	if msg.Content.Type != models.ContentText || msg.Content.Text != "bom dia" {
		t.Fatalf("unexpected content: %+v", msg.Content)
	}
}

func TestNormalizeOutboundStatusTable(t *testing.T) {
	adapter := zapi.NewAdapter(zerolog.Nop())
	cases := []struct {
		raw  string
		want models.MessageStatus
	}{
		{"SENT", models.StatusSent},
		{"delivered", models.StatusDelivered},
		{"Read", models.StatusRead},
		{"PLAYED", models.StatusRead},
		{"FAILED", models.StatusFailed},
		{"RECEIVED", models.StatusReceived},
		{"SOMETHING_NEW", models.StatusPending},
		{"", models.StatusPending},
	}

	for _, tc := range cases {
		payload := mustPayload(t, inboundTextPayload)
		payload["fromMe"] = true
		payload["status"] = tc.raw
		result := adapter.Normalize(payload)
		if !result.Success {
			t.Fatalf("status %q: expected success, got %+v", tc.raw, result.Err)
		}
		if result.Message.Status != tc.want {
			t.Fatalf("status %q mapped to %s, want %s", tc.raw, result.Message.Status, tc.want)
		}
		if result.Message.Direction != models.DirectionOutbound {
			t.Fatalf("fromMe must be outbound, got %s", result.Message.Direction)
		}
	}
}

func TestNormalizeOutboundSwapsParties(t *testing.T) {
	adapter := zapi.NewAdapter(zerolog.Nop())
	payload := mustPayload(t, inboundTextPayload)
	payload["fromMe"] = true

	result := adapter.Normalize(payload)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Err)
	}
	msg := result.Message
	if msg.From.PhoneNumber != "5511999999999" || msg.To.PhoneNumber != "5511988888888" {
		t.Fatalf("from-me must swap the parties: from=%s to=%s", msg.From.PhoneNumber, msg.To.PhoneNumber)
	}
}

func TestTextTakesPriorityOverMedia(t *testing.T) {
	adapter := zapi.NewAdapter(zerolog.Nop())
	payload := mustPayload(t, inboundTextPayload)
	payload["image"] = map[string]any{"imageUrl": "https://z-api.io/img", "caption": "should lose"}

	result := adapter.Normalize(payload)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Err)
	}
	if result.Message.Content.Type != models.ContentText {
		t.Fatalf("text must win the probe order, got %s", result.Message.Content.Type)
	}
}

func TestNormalizeMediaVariants(t *testing.T) {
	adapter := zapi.NewAdapter(zerolog.Nop())
	cases := []struct {
		name  string
		field string
		value map[string]any
		want  models.ContentType
	}{
		{"image", "image", map[string]any{"imageUrl": "https://z-api.io/i", "caption": "c", "mimeType": "image/png"}, models.ContentImage},
		{"audio", "audio", map[string]any{"audioUrl": "https://z-api.io/a", "mimeType": "audio/ogg"}, models.ContentAudio},
		{"video", "video", map[string]any{"videoUrl": "https://z-api.io/v", "caption": "v"}, models.ContentVideo},
		{"document", "document", map[string]any{"documentUrl": "https://z-api.io/d", "fileName": "doc.pdf"}, models.ContentDocument},
		{"location", "location", map[string]any{"latitude": -23.55, "longitude": -46.63, "address": "SP"}, models.ContentLocation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := mustPayload(t, inboundTextPayload)
			delete(payload, "text")
			payload[tc.field] = tc.value

			result := adapter.Normalize(payload)
			if !result.Success {
				t.Fatalf("expected success, got %+v", result.Err)
			}
			if result.Message.Content.Type != tc.want {
				t.Fatalf("expected %s content, got %s", tc.want, result.Message.Content.Type)
			}
		})
	}
}

func TestNormalizeNoContentMapsToUnknown(t *testing.T) {
	adapter := zapi.NewAdapter(zerolog.Nop())
	payload := mustPayload(t, inboundTextPayload)
	delete(payload, "text")

	result := adapter.Normalize(payload)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Err)
	}
	if result.Message.Content.Type != models.ContentUnknown {
		t.Fatalf("expected unknown content, got %s", result.Message.Content.Type)
	}
}

func TestValidateRejectsEmptyIdentification(t *testing.T) {
	adapter := zapi.NewAdapter(zerolog.Nop())
	payload := mustPayload(t, inboundTextPayload)
	payload["messageId"] = ""

	if adapter.Validate(payload) {
		t.Fatal("empty messageId must fail validation")
	}
	result := adapter.Normalize(payload)
	if result.Success || result.Err.Code != common.CodeMissingRequiredField {
		t.Fatalf("expected MISSING_REQUIRED_FIELD, got %+v", result)
	}
}
