package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-gateway/internal/classify"
	"github.com/example/whatsapp-gateway/internal/config"
	"github.com/example/whatsapp-gateway/internal/kafka/producer"
	kafkapublisher "github.com/example/whatsapp-gateway/internal/kafka/publisher"
	"github.com/example/whatsapp-gateway/internal/logger"
	"github.com/example/whatsapp-gateway/internal/registry"
	"github.com/example/whatsapp-gateway/internal/store"
	"github.com/example/whatsapp-gateway/internal/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "webhook-gateway").Logger()

	// run owns every resource behind a defer; returning an error instead of
	// exiting in place lets those defers release the resources first.
	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("webhook gateway terminated")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	reg := registry.New(log.With().Str("component", "registry").Logger())

	deps := webhook.Dependencies{
		Registry:   reg,
		Classifier: classify.NewKeywordClassifier(log.With().Str("component", "classifier").Logger()),
		Logger:     log.With().Str("component", "webhook").Logger(),
	}

	// Kafka and postgres are optional: leaving the broker list or DSN unset
	// runs the gateway in normalize-only mode.
	if len(cfg.Kafka.Brokers) > 0 {
		prod, err := producer.New(cfg.Kafka.Brokers, log.With().Str("component", "kafka").Logger())
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		defer func() {
			if err := prod.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()
		deps.Publisher = kafkapublisher.NewMessagePublisher(prod, cfg.Kafka.MessagesTopic,
			log.With().Str("component", "message-publisher").Logger())
		deps.DLQ = kafkapublisher.NewDLQPublisher(prod, cfg.Kafka.DLQTopic, cfg.Webhook.RawPayloadMaxBytes,
			log.With().Str("component", "dlq-publisher").Logger())
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, publishing disabled")
	}

	if cfg.Database.DSN != "" {
		st, err := store.Open(cfg.Database.DSN, log.With().Str("component", "store").Logger())
		if err != nil {
			return fmt.Errorf("open message store: %w", err)
		}
		deps.Store = st
	} else {
		log.Warn().Msg("DATABASE_DSN not set, persistence disabled")
	}

	server, err := webhook.NewServer(webhook.Config{
		VerifyToken:  cfg.Webhook.VerifyToken,
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
	}, deps)
	if err != nil {
		return fmt.Errorf("initialise webhook server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().Int("port", cfg.App.Port).Msg("webhook gateway started")

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		serveErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	return serveErr
}

func fail(stage string, err error) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Fatal().Err(err).Str("stage", stage).Msg("webhook gateway init failed")
}
