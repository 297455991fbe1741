package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the webhook gateway.
type Config struct {
	App      AppConfig
	Kafka    KafkaConfig
	Database DatabaseConfig
	Webhook  WebhookConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// KafkaConfig defines the outbound topics for normalized messages and failed
// deliveries. An empty broker list disables publishing.
type KafkaConfig struct {
	Brokers       []string
	MessagesTopic string
	DLQTopic      string
}

// DatabaseConfig holds the postgres connection string. An empty DSN disables
// persistence.
type DatabaseConfig struct {
	DSN string
}

// WebhookConfig tunes the HTTP webhook surface.
type WebhookConfig struct {
	// VerifyToken is compared against hub.verify_token during the Meta
	// subscription handshake.
	VerifyToken string
	// MaxBodyBytes limits the size of an accepted webhook body.
	MaxBodyBytes int64
	// RawPayloadMaxBytes caps the raw payload copy attached to DLQ events.
	RawPayloadMaxBytes int
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)
	cfg.Kafka.MessagesTopic = ldr.getString("KAFKA_MESSAGES_TOPIC", "whatsapp.messages.normalized", false)
	cfg.Kafka.DLQTopic = ldr.getString("KAFKA_DLQ_TOPIC", "whatsapp.messages.dlq", false)

	cfg.Database.DSN = ldr.getString("DATABASE_DSN", "", false)

	cfg.Webhook.VerifyToken = ldr.getString("META_VERIFY_TOKEN", "", false)
	cfg.Webhook.MaxBodyBytes = int64(ldr.getInt("WEBHOOK_MAX_BODY_BYTES", 1<<20, false))
	cfg.Webhook.RawPayloadMaxBytes = ldr.getInt("RAW_PAYLOAD_MAX_BYTES", 64*1024, false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) addError(msg string) {
	l.errs = append(l.errs, msg)
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	raw := l.getString(key, "", required)
	if raw == "" {
		return def
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 && required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return out
}
