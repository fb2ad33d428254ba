package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/config"
	"github.com/night-tales/skazka/internal/database"
	"github.com/night-tales/skazka/internal/kafka"
	"github.com/night-tales/skazka/internal/webhook"
)

// WebhookHandler implements kafka.Handler
type WebhookHandler struct {
	deliveryService *webhook.DeliveryService
}

func (h *WebhookHandler) HandleMessage(ctx context.Context, value []byte) error {
	var msg kafka.WebhookMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("failed to decode webhook message: %w", err)
	}
	if msg.StoryID == uuid.Nil {
		return fmt.Errorf("webhook message has no story id")
	}

	log.Info().
		Str("story_id", msg.StoryID.String()).
		Str("event", msg.Event).
		Msg("Processing webhook event")

	return h.deliveryService.DeliverWebhook(ctx, msg.StoryID, msg.Event)
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting Skazka Webhook Dispatcher")

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	deliveryService := webhook.NewDeliveryService(db, cfg)

	// Background retry worker for deliveries that failed their first attempt
	retryCtx, retryCancel := context.WithCancel(context.Background())
	defer retryCancel()
	deliveryService.Start(retryCtx)
	defer deliveryService.Stop()

	handler := &WebhookHandler{
		deliveryService: deliveryService,
	}

	consumer := kafka.NewConsumer(
		cfg.KafkaBrokers,
		cfg.KafkaTopicWebhooks,
		"webhook-dispatcher",
		handler,
	)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	log.Info().Msg("Dispatcher started, consuming webhook events...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down dispatcher...")

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Consumer shutdown complete")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("Consumer shutdown timeout")
	}

	log.Info().Msg("Dispatcher exited")
}
