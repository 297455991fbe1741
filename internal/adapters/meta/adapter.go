// Package meta normalizes webhook deliveries from the Meta WhatsApp Cloud
// API. Payloads follow the Graph API change-notification envelope:
// object/entry/changes/value, with value carrying either messages (inbound)
// or statuses (outbound delivery receipts).
package meta

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/adapters/common"
	"github.com/example/whatsapp-gateway/internal/models"
)

// statusTable maps Meta's status vocabulary onto the canonical enum.
// Unrecognized values fall back to StatusPending.
var statusTable = map[string]models.MessageStatus{
	"sent":      models.StatusSent,
	"delivered": models.StatusDelivered,
	"read":      models.StatusRead,
	"failed":    models.StatusFailed,
}

var mediaKinds = map[string]models.ContentType{
	"image":    models.ContentImage,
	"audio":    models.ContentAudio,
	"video":    models.ContentVideo,
	"document": models.ContentDocument,
	"sticker":  models.ContentSticker,
}

// Adapter implements common.Adapter for the Meta Cloud API.
type Adapter struct {
	logger zerolog.Logger
}

// NewAdapter constructs a Meta adapter.
func NewAdapter(logger zerolog.Logger) *Adapter {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Adapter{logger: logger}
}

// Provider returns models.ProviderMeta.
func (a *Adapter) Provider() models.Provider { return models.ProviderMeta }

// CanHandle reports whether the payload carries the Meta webhook markers: a
// top-level object field equal to "whatsapp_business_account" plus a
// non-empty entry array.
func (a *Adapter) CanHandle(payload any) bool {
	root, ok := common.AsMap(payload)
	if !ok {
		return false
	}
	if common.StringField(root, "object") != "whatsapp_business_account" {
		return false
	}
	return len(common.SliceField(root, "entry")) > 0
}

// Validate checks that the first change value holds at least one message or
// status record.
func (a *Adapter) Validate(payload any) bool {
	value := changeValue(payload)
	if value == nil {
		return false
	}
	return len(common.SliceField(value, "messages")) > 0 ||
		len(common.SliceField(value, "statuses")) > 0
}

// Identify wraps CanHandle into a binary-confidence identification.
func (a *Adapter) Identify(payload any) common.ProviderIdentification {
	if a.CanHandle(payload) {
		return common.Identified(models.ProviderMeta)
	}
	return common.Unidentified()
}

// Normalize converts a Meta webhook delivery into the canonical model.
func (a *Adapter) Normalize(payload any) *common.NormalizationResult {
	if !a.CanHandle(payload) {
		return common.Failf(common.CodeInvalidPayload, "payload does not match the meta webhook shape")
	}
	if !a.Validate(payload) {
		return common.Failf(common.CodeMissingRequiredField, "meta change value carries neither messages nor statuses")
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
			nerr = common.NewError(common.CodeParseError, "unexpected fault while extracting meta payload").
				WithDetail("cause", fmt.Sprint(r))
		}
	}()

	root, _ := common.AsMap(payload)
	entry := common.FirstMap(common.SliceField(root, "entry"))
	change := common.FirstMap(common.SliceField(entry, "changes"))
	value := common.MapField(change, "value")
	meta := common.MapField(value, "metadata")

	displayPhone := common.NormalizePhoneNumber(common.StringField(meta, "display_phone_number"))
	metadata := map[string]any{
		"businessAccountId":  common.StringField(entry, "id"),
		"displayPhoneNumber": displayPhone,
	}
	if product := common.StringField(value, "messaging_product"); product != "" {
		metadata["messagingProduct"] = product
	}
	if field := common.StringField(change, "field"); field != "" {
		metadata["changeField"] = field
	}

	out := &models.NormalizedMessage{
		ID:         models.NewMessageID(),
		Provider:   models.ProviderMeta,
		InstanceID: common.StringField(meta, "phone_number_id"),
		RawPayload: payload,
		Metadata:   metadata,
	}

	if record := common.FirstMap(common.SliceField(value, "messages")); record != nil {
		nerr = a.extractMessage(out, value, record, displayPhone)
	} else {
		record = common.FirstMap(common.SliceField(value, "statuses"))
		nerr = a.extractStatus(out, record, displayPhone)
	}
	if nerr != nil {
		return nil, nerr
	}
	return out, nil
}

// extractMessage handles the inbound branch: the change value carries a
// messages array and the sender is the external party.
func (a *Adapter) extractMessage(out *models.NormalizedMessage, value, record map[string]any, displayPhone string) *common.NormalizationError {
	externalID := common.StringField(record, "id")
	if externalID == "" {
		return common.NewError(common.CodeParseError, "meta message has no id")
	}
	seconds, ok := common.Int64Field(record, "timestamp")
	if !ok || seconds <= 0 {
		return common.NewError(common.CodeParseError, "meta message has no usable timestamp").
			WithDetail("externalId", externalID)
	}

	senderWaID := common.StringField(record, "from")
	out.ExternalID = externalID
	out.Timestamp = seconds * 1000
	out.Direction = models.DirectionInbound
	out.Status = models.StatusReceived
	out.From = models.Contact{
		PhoneNumber: common.NormalizePhoneNumber(senderWaID),
		Name:        contactName(value, senderWaID),
	}
	out.To = models.Contact{PhoneNumber: displayPhone}
	out.Content = a.extractContent(record, out.Metadata)
	return nil
}

// extractStatus handles the outbound branch: a delivery receipt for a message
// previously sent from this business number.
func (a *Adapter) extractStatus(out *models.NormalizedMessage, record map[string]any, displayPhone string) *common.NormalizationError {
	externalID := common.StringField(record, "id")
	if externalID == "" {
		return common.NewError(common.CodeParseError, "meta status has no id")
	}
	seconds, ok := common.Int64Field(record, "timestamp")
	if !ok || seconds <= 0 {
		return common.NewError(common.CodeParseError, "meta status has no usable timestamp").
			WithDetail("externalId", externalID)
	}

	out.ExternalID = externalID
	out.Timestamp = seconds * 1000
	out.Direction = models.DirectionOutbound
	out.Status = mapStatus(common.StringField(record, "status"))
	out.From = models.Contact{PhoneNumber: displayPhone}
	out.To = models.Contact{
		PhoneNumber: common.NormalizePhoneNumber(common.StringField(record, "recipient_id")),
	}
	out.Content = models.MessageContent{Type: models.ContentUnknown}
	if conv := common.MapField(record, "conversation"); conv != nil {
		if convID := common.StringField(conv, "id"); convID != "" {
			out.Metadata["conversationId"] = convID
		}
	}
	return nil
}

func (a *Adapter) extractContent(record, metadata map[string]any) models.MessageContent {
	msgType := common.StringField(record, "type")
	switch {
	case msgType == "text":
		return models.MessageContent{
			Type: models.ContentText,
			Text: common.StringField(common.MapField(record, "text"), "body"),
		}
	case mediaKinds[msgType] != "":
		media := common.MapField(record, msgType)
		content := models.MessageContent{
			Type:     mediaKinds[msgType],
			Caption:  common.StringField(media, "caption"),
			MimeType: common.StringField(media, "mime_type"),
			FileName: common.StringField(media, "filename"),
		}
		// Meta exposes a media object id, not a URL; fetching the binary
		// is a separate Graph API call, so the id travels in metadata.
		if mediaID := common.StringField(media, "id"); mediaID != "" {
			metadata["mediaId"] = mediaID
		}
		return content
	case msgType == "location":
		loc := common.MapField(record, "location")
		lat, _ := common.NumberField(loc, "latitude")
		lng, _ := common.NumberField(loc, "longitude")
		return models.MessageContent{
			Type: models.ContentLocation,
			Location: &models.LocationContent{
				Latitude:  lat,
				Longitude: lng,
				Name:      common.StringField(loc, "name"),
				Address:   common.StringField(loc, "address"),
			},
		}
	case msgType == "contacts":
		card := common.FirstMap(common.SliceField(record, "contacts"))
		return models.MessageContent{
			Type: models.ContentContact,
			Text: common.StringField(common.MapField(card, "name"), "formatted_name"),
		}
	case msgType == "reaction":
		return models.MessageContent{
			Type: models.ContentReaction,
			Text: common.StringField(common.MapField(record, "reaction"), "emoji"),
		}
	default:
		a.logger.Warn().Str("message_type", msgType).Msg("meta adapter saw an unrecognized message type")
		return models.MessageContent{
			Type: models.ContentUnknown,
			Text: fmt.Sprintf("unsupported meta message type: %s", msgType),
		}
	}
}

// contactName resolves the display name of the sender from the change
// value's contacts array.
func contactName(value map[string]any, waID string) string {
	contacts := common.SliceField(value, "contacts")
	for _, v := range contacts {
		card, ok := common.AsMap(v)
		if !ok {
			continue
		}
		if common.StringField(card, "wa_id") == waID {
			return common.StringField(common.MapField(card, "profile"), "name")
		}
	}
	if first := common.FirstMap(contacts); first != nil {
		return common.StringField(common.MapField(first, "profile"), "name")
	}
	return ""
}

func mapStatus(raw string) models.MessageStatus {
	if status, ok := statusTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return models.StatusPending
}

// changeValue walks entry[0].changes[0].value, tolerating any malformed
// level along the way.
func changeValue(payload any) map[string]any {
	root, ok := common.AsMap(payload)
	if !ok {
		return nil
	}
	entry := common.FirstMap(common.SliceField(root, "entry"))
	change := common.FirstMap(common.SliceField(entry, "changes"))
	return common.MapField(change, "value")
}
