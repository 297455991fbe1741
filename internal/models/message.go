package models

// Provider identifies the WhatsApp integration vendor a payload originated
// from. The set is closed; adapters for new vendors register their own value
// but ProviderUnknown is reserved for undetected payloads.
type Provider string

const (
	ProviderMeta      Provider = "meta"
	ProviderEvolution Provider = "evolution"
	ProviderZAPI      Provider = "z-api"
	ProviderUnknown   Provider = "unknown"
)

// Direction indicates whether a message travelled towards us or away from us.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageStatus is the canonical delivery status vocabulary. Provider-native
// status strings are mapped into this set by each adapter; unrecognized
// values fall back to StatusPending.
type MessageStatus string

const (
	StatusReceived  MessageStatus = "received"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
	StatusPending   MessageStatus = "pending"
)

// ContentType tags the variant carried by MessageContent.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentAudio    ContentType = "audio"
	ContentVideo    ContentType = "video"
	ContentDocument ContentType = "document"
	ContentLocation ContentType = "location"
	ContentContact  ContentType = "contact"
	ContentSticker  ContentType = "sticker"
	ContentReaction ContentType = "reaction"
	ContentUnknown  ContentType = "unknown"
)

// Contact represents one party of a conversation. PhoneNumber is always in
// canonical form: digits only, country code included, no plus sign and no
// messaging suffix.
type Contact struct {
	PhoneNumber   string `json:"phoneNumber"`
	Name          string `json:"name,omitempty"`
	ProfilePicURL string `json:"profilePicUrl,omitempty"`
}

// LocationContent carries the coordinates of a location message.
type LocationContent struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// MessageContent is a tagged union over the supported message kinds. Only the
// fields relevant to Type are populated; everything else stays zero.
type MessageContent struct {
	Type     ContentType      `json:"type"`
	Text     string           `json:"text,omitempty"`
	Caption  string           `json:"caption,omitempty"`
	MediaURL string           `json:"mediaUrl,omitempty"`
	MimeType string           `json:"mimeType,omitempty"`
	FileName string           `json:"fileName,omitempty"`
	Location *LocationContent `json:"location,omitempty"`
}

// NormalizedMessage is the canonical representation every provider adapter
// converges to. Instances are created exclusively inside an adapter's
// Normalize call and are immutable afterwards; ownership passes to the caller,
// which may read but must not mutate.
//
// Invariants for a successfully normalized message: ID and ExternalID are
// non-empty, Provider is never ProviderUnknown, Timestamp is positive epoch
// milliseconds, and Direction is set.
type NormalizedMessage struct {
	ID         string         `json:"id"`
	ExternalID string         `json:"externalId"`
	Provider   Provider       `json:"provider"`
	InstanceID string         `json:"instanceId"`
	Timestamp  int64          `json:"timestamp"`
	Direction  Direction      `json:"direction"`
	Status     MessageStatus  `json:"status"`
	From       Contact        `json:"from"`
	To         Contact        `json:"to"`
	Content    MessageContent `json:"content"`
	RawPayload any            `json:"rawPayload,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
