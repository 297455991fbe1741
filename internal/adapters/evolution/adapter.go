// Package evolution normalizes webhook deliveries from the Evolution API.
// Evolution wraps every event in an event/instance/data envelope and reuses
// the Baileys message representation inside data.message, where exactly one
// variant field is populated per message.
package evolution

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/adapters/common"
	"github.com/example/whatsapp-gateway/internal/models"
)

// secondsThreshold disambiguates the unit of messageTimestamp. Evolution
// deployments disagree on whether it is seconds or milliseconds; values below
// the threshold (which is November 2286 when read as seconds) are treated as
// seconds.
const secondsThreshold = 10_000_000_000

// allowedEvents lists the event types that carry a normalizable message.
// Everything else (connection updates, presence, chat sync) is rejected with
// UNSUPPORTED_MESSAGE_TYPE. Comparison happens on the canonical lowercase
// dotted form, since Evolution emits both "messages.upsert" and
// "MESSAGES_UPSERT" depending on version.
var allowedEvents = map[string]bool{
	"messages.upsert": true,
	"send.message":    true,
}

// contentProbes is the fixed probe order over data.message. The first
// variant present wins.
var contentProbes = []struct {
	field string
	kind  models.ContentType
}{
	{"conversation", models.ContentText},
	{"extendedTextMessage", models.ContentText},
	{"imageMessage", models.ContentImage},
	{"videoMessage", models.ContentVideo},
	{"audioMessage", models.ContentAudio},
	{"stickerMessage", models.ContentSticker},
	{"documentMessage", models.ContentDocument},
	{"locationMessage", models.ContentLocation},
	{"contactMessage", models.ContentContact},
	{"reactionMessage", models.ContentReaction},
}

// Adapter implements common.Adapter for the Evolution API.
type Adapter struct {
	logger zerolog.Logger
}

// NewAdapter constructs an Evolution adapter.
func NewAdapter(logger zerolog.Logger) *Adapter {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Adapter{logger: logger}
}

// Provider returns models.ProviderEvolution.
func (a *Adapter) Provider() models.Provider { return models.ProviderEvolution }

// CanHandle reports whether the payload carries the Evolution envelope: a
// string event, a string instance and an object at data.key.
func (a *Adapter) CanHandle(payload any) bool {
	root, ok := common.AsMap(payload)
	if !ok {
		return false
	}
	if _, ok := root["event"].(string); !ok {
		return false
	}
	if _, ok := root["instance"].(string); !ok {
		return false
	}
	return common.MapField(common.MapField(root, "data"), "key") != nil
}

// Validate checks that the message key carries an id, which becomes the
// external identifier.
func (a *Adapter) Validate(payload any) bool {
	root, ok := common.AsMap(payload)
	if !ok {
		return false
	}
	key := common.MapField(common.MapField(root, "data"), "key")
	return common.StringField(key, "id") != ""
}

// Identify wraps CanHandle into a binary-confidence identification.
func (a *Adapter) Identify(payload any) common.ProviderIdentification {
	if a.CanHandle(payload) {
		return common.Identified(models.ProviderEvolution)
	}
	return common.Unidentified()
}

// Normalize converts an Evolution webhook delivery into the canonical model.
func (a *Adapter) Normalize(payload any) *common.NormalizationResult {
	if !a.CanHandle(payload) {
		return common.Failf(common.CodeInvalidPayload, "payload does not match the evolution webhook shape")
	}
	if !a.Validate(payload) {
		return common.Failf(common.CodeMissingRequiredField, "evolution payload has no message key id")
	}

	root, _ := common.AsMap(payload)
	event := canonicalEvent(common.StringField(root, "event"))
	if !allowedEvents[event] {
		return common.Fail(
			common.NewError(common.CodeUnsupportedMessageType, "evolution event %q is not a message event", event).
				WithDetail("event", common.StringField(root, "event")))
	}

	msg, nerr := a.extract(root, payload)
	if nerr != nil {
		return common.Fail(nerr)
	}
	return common.Ok(msg)
}

func (a *Adapter) extract(root map[string]any, payload any) (msg *models.NormalizedMessage, nerr *common.NormalizationError) {
	defer func() {
		if r := recover(); r != nil {
			msg = nil
			nerr = common.NewError(common.CodeParseError, "unexpected fault while extracting evolution payload").
				WithDetail("cause", fmt.Sprint(r))
		}
	}()

	data := common.MapField(root, "data")
	key := common.MapField(data, "key")

	ts, ok := common.Int64Field(data, "messageTimestamp")
	if !ok || ts <= 0 {
		return nil, common.NewError(common.CodeParseError, "evolution payload has no usable messageTimestamp").
			WithDetail("externalId", common.StringField(key, "id"))
	}
	if ts < secondsThreshold {
		ts *= 1000
	}

	fromMe := common.BoolField(key, "fromMe")
	remote := models.Contact{
		PhoneNumber: common.NormalizePhoneNumber(common.StringField(key, "remoteJid")),
	}
	owner := models.Contact{
		PhoneNumber: common.NormalizePhoneNumber(common.StringField(root, "sender")),
	}

	out := &models.NormalizedMessage{
		ID:         models.NewMessageID(),
		ExternalID: common.StringField(key, "id"),
		Provider:   models.ProviderEvolution,
		InstanceID: common.StringField(root, "instance"),
		Timestamp:  ts,
		Content:    a.extractContent(common.MapField(data, "message")),
		RawPayload: payload,
		Metadata:   map[string]any{"event": common.StringField(root, "event")},
	}
	if serverURL := common.StringField(root, "server_url"); serverURL != "" {
		out.Metadata["serverUrl"] = serverURL
	}
	if messageType := common.StringField(data, "messageType"); messageType != "" {
		out.Metadata["messageType"] = messageType
	}

	// Evolution has no delivery-status vocabulary on message events; the
	// from-me flag decides both direction and the two-state status.
	if fromMe {
		out.Direction = models.DirectionOutbound
		out.Status = models.StatusSent
		out.From = owner
		out.To = remote
	} else {
		out.Direction = models.DirectionInbound
		out.Status = models.StatusReceived
		remote.Name = common.StringField(data, "pushName")
		out.From = remote
		out.To = owner
	}
	return out, nil
}

func (a *Adapter) extractContent(message map[string]any) models.MessageContent {
	for _, probe := range contentProbes {
		if !common.HasKey(message, probe.field) || message[probe.field] == nil {
			continue
		}
		// conversation is the one variant that is a bare string.
		if probe.field == "conversation" {
			text, _ := message[probe.field].(string)
			return models.MessageContent{Type: models.ContentText, Text: text}
		}
		variant := common.MapField(message, probe.field)
		switch probe.kind {
		case models.ContentText:
			return models.MessageContent{Type: models.ContentText, Text: common.StringField(variant, "text")}
		case models.ContentImage, models.ContentVideo:
			return models.MessageContent{
				Type:     probe.kind,
				Caption:  common.StringField(variant, "caption"),
				MediaURL: common.StringField(variant, "url"),
				MimeType: common.StringField(variant, "mimetype"),
			}
		case models.ContentAudio, models.ContentSticker:
			return models.MessageContent{
				Type:     probe.kind,
				MediaURL: common.StringField(variant, "url"),
				MimeType: common.StringField(variant, "mimetype"),
			}
		case models.ContentDocument:
			return models.MessageContent{
				Type:     models.ContentDocument,
				FileName: common.StringField(variant, "fileName"),
				MediaURL: common.StringField(variant, "url"),
				MimeType: common.StringField(variant, "mimetype"),
			}
		case models.ContentLocation:
			lat, _ := common.NumberField(variant, "degreesLatitude")
			lng, _ := common.NumberField(variant, "degreesLongitude")
			return models.MessageContent{
				Type: models.ContentLocation,
				Location: &models.LocationContent{
					Latitude:  lat,
					Longitude: lng,
					Name:      common.StringField(variant, "name"),
					Address:   common.StringField(variant, "address"),
				},
			}
		case models.ContentContact:
			return models.MessageContent{Type: models.ContentContact, Text: common.StringField(variant, "displayName")}
		case models.ContentReaction:
			return models.MessageContent{Type: models.ContentReaction, Text: common.StringField(variant, "text")}
		}
	}
	a.logger.Debug().Msg("evolution adapter found no known message variant")
	return models.MessageContent{Type: models.ContentUnknown}
}

// canonicalEvent folds the two event spellings Evolution uses
// ("messages.upsert" and "MESSAGES_UPSERT") into one form.
func canonicalEvent(event string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(event)), "_", ".")
}
