// Package zapi normalizes webhook deliveries from Z-API. Z-API uses a flat
// payload: identification fields and the momment epoch (already in
// milliseconds) at the top level, with one typed sub-object (text, image, …)
// per message.
package zapi

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/adapters/common"
	"github.com/example/whatsapp-gateway/internal/models"
)

// statusTable maps Z-API's status vocabulary onto the canonical enum,
// matched case-insensitively. PLAYED means a voice message was listened to,
// which is the closest thing to read.
var statusTable = map[string]models.MessageStatus{
	"received":  models.StatusReceived,
	"sent":      models.StatusSent,
	"delivered": models.StatusDelivered,
	"read":      models.StatusRead,
	"played":    models.StatusRead,
	"failed":    models.StatusFailed,
	"pending":   models.StatusPending,
}

// contentProbes is the fixed priority order over the typed sub-objects; the
// first one present wins. text deliberately outranks the media probes: a
// well-formed Z-API message carries exactly one of these.
var contentProbes = []struct {
	field string
	kind  models.ContentType
}{
	{"text", models.ContentText},
	{"image", models.ContentImage},
	{"audio", models.ContentAudio},
	{"video", models.ContentVideo},
	{"document", models.ContentDocument},
	{"location", models.ContentLocation},
}

// Adapter implements common.Adapter for Z-API.
type Adapter struct {
	logger zerolog.Logger
}

// NewAdapter constructs a Z-API adapter.
func NewAdapter(logger zerolog.Logger) *Adapter {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Adapter{logger: logger}
}

// Provider returns models.ProviderZAPI.
func (a *Adapter) Provider() models.Provider { return models.ProviderZAPI }

// CanHandle reports whether the payload carries the Z-API markers: string
// instanceId, messageId and phone fields plus a numeric momment.
func (a *Adapter) CanHandle(payload any) bool {
	root, ok := common.AsMap(payload)
	if !ok {
		return false
	}
	for _, field := range []string{"instanceId", "messageId", "phone"} {
		if _, ok := root[field].(string); !ok {
			return false
		}
	}
	_, ok = common.NumberField(root, "momment")
	return ok
}

// Validate checks that the identification fields are non-empty and the
// momment epoch is positive.
func (a *Adapter) Validate(payload any) bool {
	root, ok := common.AsMap(payload)
	if !ok {
		return false
	}
	if common.StringField(root, "messageId") == "" || common.StringField(root, "phone") == "" {
		return false
	}
	momment, ok := common.Int64Field(root, "momment")
	return ok && momment > 0
}

// Identify wraps CanHandle into a binary-confidence identification.
func (a *Adapter) Identify(payload any) common.ProviderIdentification {
	if a.CanHandle(payload) {
		return common.Identified(models.ProviderZAPI)
	}
	return common.Unidentified()
}

// Normalize converts a Z-API webhook delivery into the canonical model.
func (a *Adapter) Normalize(payload any) *common.NormalizationResult {
	if !a.CanHandle(payload) {
		return common.Failf(common.CodeInvalidPayload, "payload does not match the z-api webhook shape")
	}
	if !a.Validate(payload) {
		return common.Failf(common.CodeMissingRequiredField, "z-api payload is missing messageId, phone or a positive momment")
	}
	msg, nerr := a.extract(payload)
	if nerr != nil {
		return common.Fail(nerr)
	}
	return common.Ok(msg)
}

func (a *Adapter) extract(payload any) (msg *models.NormalizedMessage, nerr *common.NormalizationError) {
	defer func() {
		if r := recover(); r != nil {
			msg = nil
			nerr = common.NewError(common.CodeParseError, "unexpected fault while extracting z-api payload").
				WithDetail("cause", fmt.Sprint(r))
		}
	}()

	root, _ := common.AsMap(payload)
	fromMe := common.BoolField(root, "fromMe")
	// momment is already epoch milliseconds: no unit conversion.
	momment, _ := common.Int64Field(root, "momment")

	external := models.Contact{
		PhoneNumber: common.NormalizePhoneNumber(common.StringField(root, "phone")),
	}
	owner := models.Contact{
		PhoneNumber: common.NormalizePhoneNumber(common.StringField(root, "connectedPhone")),
	}

	out := &models.NormalizedMessage{
		ID:         models.NewMessageID(),
		ExternalID: common.StringField(root, "messageId"),
		Provider:   models.ProviderZAPI,
		InstanceID: common.StringField(root, "instanceId"),
		Timestamp:  momment,
		Content:    a.extractContent(root),
		RawPayload: payload,
		Metadata:   map[string]any{},
	}
	if chatName := common.StringField(root, "chatName"); chatName != "" {
		out.Metadata["chatName"] = chatName
	}
	if common.HasKey(root, "isGroup") {
		out.Metadata["isGroup"] = common.BoolField(root, "isGroup")
	}
	if len(out.Metadata) == 0 {
		out.Metadata = nil
	}

	if fromMe {
		out.Direction = models.DirectionOutbound
		out.Status = mapStatus(common.StringField(root, "status"))
		out.From = owner
		out.To = external
	} else {
		// Inbound messages are always received regardless of the payload
		// status field.
		out.Direction = models.DirectionInbound
		out.Status = models.StatusReceived
		external.Name = common.StringField(root, "senderName")
		external.ProfilePicURL = common.StringField(root, "senderPhoto")
		out.From = external
		out.To = owner
	}
	return out, nil
}

func (a *Adapter) extractContent(root map[string]any) models.MessageContent {
	for _, probe := range contentProbes {
		variant := common.MapField(root, probe.field)
		if variant == nil {
			continue
		}
		switch probe.kind {
		case models.ContentText:
			return models.MessageContent{Type: models.ContentText, Text: common.StringField(variant, "message")}
		case models.ContentImage:
			return models.MessageContent{
				Type:     models.ContentImage,
				Caption:  common.StringField(variant, "caption"),
				MediaURL: common.StringField(variant, "imageUrl"),
				MimeType: common.StringField(variant, "mimeType"),
			}
		case models.ContentAudio:
			return models.MessageContent{
				Type:     models.ContentAudio,
				MediaURL: common.StringField(variant, "audioUrl"),
				MimeType: common.StringField(variant, "mimeType"),
			}
		case models.ContentVideo:
			return models.MessageContent{
				Type:     models.ContentVideo,
				Caption:  common.StringField(variant, "caption"),
				MediaURL: common.StringField(variant, "videoUrl"),
				MimeType: common.StringField(variant, "mimeType"),
			}
		case models.ContentDocument:
			return models.MessageContent{
				Type:     models.ContentDocument,
				FileName: common.StringField(variant, "fileName"),
				MediaURL: common.StringField(variant, "documentUrl"),
				MimeType: common.StringField(variant, "mimeType"),
			}
		case models.ContentLocation:
			lat, _ := common.NumberField(variant, "latitude")
			lng, _ := common.NumberField(variant, "longitude")
			return models.MessageContent{
				Type: models.ContentLocation,
				Location: &models.LocationContent{
					Latitude:  lat,
					Longitude: lng,
					Address:   common.StringField(variant, "address"),
				},
			}
		}
	}
	a.logger.Debug().Msg("z-api adapter found no known content sub-object")
	return models.MessageContent{Type: models.ContentUnknown}
}

func mapStatus(raw string) models.MessageStatus {
	if status, ok := statusTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return models.StatusPending
}
