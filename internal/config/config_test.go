package config_test

import (
	"testing"

	"github.com/example/whatsapp-gateway/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.App.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.App.Port)
	}
	if cfg.Kafka.MessagesTopic != "whatsapp.messages.normalized" {
		t.Fatalf("unexpected default messages topic: %s", cfg.Kafka.MessagesTopic)
	}
	if cfg.Webhook.MaxBodyBytes != 1<<20 {
		t.Fatalf("unexpected default body limit: %d", cfg.Webhook.MaxBodyBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092 ,")
	t.Setenv("META_VERIFY_TOKEN", "secret")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.App.Port != 9090 {
		t.Fatalf("expected port override, got %d", cfg.App.Port)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.Webhook.VerifyToken != "secret" {
		t.Fatalf("unexpected verify token: %s", cfg.Webhook.VerifyToken)
	}
}

func TestLoadRejectsBadInteger(t *testing.T) {
	t.Setenv("APP_PORT", "not-a-number")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected validation error for bad integer")
	}
}
