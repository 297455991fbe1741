// Package store persists normalized messages and the contacts derived from
// them. It is a boundary consumer of the normalization core: it reads the
// NormalizedMessage handed to it and never mutates it.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/whatsapp-gateway/internal/models"
)

// MessageRecord is the messages table row. provider+external_id is unique so
// webhook redelivery is an idempotent no-op.
type MessageRecord struct {
	ID          string    `gorm:"primaryKey"`
	ExternalID  string    `gorm:"column:external_id;uniqueIndex:idx_messages_provider_external;not null"`
	Provider    string    `gorm:"uniqueIndex:idx_messages_provider_external;not null"`
	InstanceID  string    `gorm:"column:instance_id"`
	Timestamp   int64     `gorm:"not null"`
	Direction   string    `gorm:"type:varchar(10);not null"`
	Status      string    `gorm:"type:varchar(20);not null"`
	FromPhone   string    `gorm:"column:from_phone;type:varchar(20)"`
	ToPhone     string    `gorm:"column:to_phone;type:varchar(20)"`
	ContentType string    `gorm:"column:content_type;type:varchar(20)"`
	Content     []byte    `gorm:"type:jsonb"`
	RawPayload  []byte    `gorm:"column:raw_payload;type:jsonb"`
	Metadata    []byte    `gorm:"type:jsonb"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName keeps the table name stable regardless of struct renames.
func (MessageRecord) TableName() string { return "messages" }

// ContactRecord is the contacts table row, keyed by canonical phone number.
type ContactRecord struct {
	PhoneNumber   string    `gorm:"column:phone_number;primaryKey;type:varchar(20)"`
	Name          string    `gorm:"type:varchar(255)"`
	ProfilePicURL string    `gorm:"column:profile_pic_url;type:text"`
	LastSeenAt    time.Time `gorm:"column:last_seen_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// TableName keeps the table name stable regardless of struct renames.
func (ContactRecord) TableName() string { return "contacts" }

// Store wraps the gorm handle.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// Open connects to postgres and migrates the schema.
func Open(dsn string, logger zerolog.Logger) (*Store, error) {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	if err := db.AutoMigrate(&MessageRecord{}, &ContactRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// SaveMessage inserts the normalized message and upserts the external-party
// contact derived from it. Redelivered messages (same provider and external
// id) are skipped.
func (s *Store) SaveMessage(ctx context.Context, msg *models.NormalizedMessage) error {
	if msg == nil {
		return fmt.Errorf("store: message is nil")
	}

	record, err := toRecord(msg)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return fmt.Errorf("store: insert message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.Debug().
			Str("provider", string(msg.Provider)).
			Str("external_id", msg.ExternalID).
			Msg("message already stored, skipping redelivery")
		return nil
	}

	return s.UpsertContact(ctx, ExternalParty(msg), time.UnixMilli(msg.Timestamp))
}

// UpsertContact inserts or refreshes one contact row. Blank names and
// pictures never overwrite previously known values.
func (s *Store) UpsertContact(ctx context.Context, contact models.Contact, seenAt time.Time) error {
	if contact.PhoneNumber == "" {
		return nil
	}

	record := ContactRecord{
		PhoneNumber:   contact.PhoneNumber,
		Name:          contact.Name,
		ProfilePicURL: contact.ProfilePicURL,
		LastSeenAt:    seenAt,
	}
	assignments := map[string]any{"last_seen_at": seenAt}
	if contact.Name != "" {
		assignments["name"] = contact.Name
	}
	if contact.ProfilePicURL != "" {
		assignments["profile_pic_url"] = contact.ProfilePicURL
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "phone_number"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("store: upsert contact: %w", err)
	}
	return nil
}

// ExternalParty returns whichever side of the message belongs to the outside
// world: the sender for inbound messages, the recipient for outbound ones.
func ExternalParty(msg *models.NormalizedMessage) models.Contact {
	if msg.Direction == models.DirectionOutbound {
		return msg.To
	}
	return msg.From
}

func toRecord(msg *models.NormalizedMessage) (*MessageRecord, error) {
	content, err := json.Marshal(msg.Content)
	if err != nil {
		return nil, fmt.Errorf("store: marshal content: %w", err)
	}
	raw, err := json.Marshal(msg.RawPayload)
	if err != nil {
		return nil, fmt.Errorf("store: marshal raw payload: %w", err)
	}
	var metadata []byte
	if msg.Metadata != nil {
		if metadata, err = json.Marshal(msg.Metadata); err != nil {
			return nil, fmt.Errorf("store: marshal metadata: %w", err)
		}
	}

	return &MessageRecord{
		ID:          msg.ID,
		ExternalID:  msg.ExternalID,
		Provider:    string(msg.Provider),
		InstanceID:  msg.InstanceID,
		Timestamp:   msg.Timestamp,
		Direction:   string(msg.Direction),
		Status:      string(msg.Status),
		FromPhone:   msg.From.PhoneNumber,
		ToPhone:     msg.To.PhoneNumber,
		ContentType: string(msg.Content.Type),
		Content:     content,
		RawPayload:  raw,
		Metadata:    metadata,
	}, nil
}
