package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/config"
	"github.com/night-tales/skazka/internal/database"
	"github.com/night-tales/skazka/internal/imagegen"
	"github.com/night-tales/skazka/internal/kafka"
	"github.com/night-tales/skazka/internal/pipeline"
	"github.com/night-tales/skazka/internal/speech"
	"github.com/night-tales/skazka/internal/storage"
	"github.com/night-tales/skazka/internal/storygen"
	"github.com/night-tales/skazka/internal/token"
	"github.com/night-tales/skazka/migrations"
)

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

	log.Info().Msg("Starting Skazka Worker")

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := migrations.Run(db.SQLDB()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	storageClient, err := storage.NewClient(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket,
		cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL, cfg.S3PublicURL,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Platform credential for image generation and TTS, refreshed in the
	// background for the worker's lifetime.
	tokenProvider := token.NewProvider(cfg.TokenCommand, cfg.TokenCommandTimeout, cfg.TokenRefreshInterval)
	tokenProvider.Start(ctx)

	generator := storygen.NewGenerator(cfg.StoryAPIURL, cfg.StoryAPIKey, cfg.StoryModel, cfg.StoryTimeout)

	illustrator := imagegen.NewGenerator(
		cfg.ArtAPIURL, cfg.ArtOperationsURL, cfg.ArtModelURI,
		cfg.ArtAspectWidth, cfg.ArtAspectHeight,
		cfg.ArtPollAttempts, cfg.ArtPollInterval,
		tokenProvider, nil,
	)

	synthesizer := speech.NewSynthesizer(
		cfg.TTSAPIURL, cfg.TTSLang, cfg.TTSVoice, cfg.TTSEmotion, cfg.TTSFormat,
		cfg.TTSSampleRate, cfg.FolderID, cfg.FFmpegPath,
		tokenProvider, nil,
	)

	webhookProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicWebhooks)
	defer webhookProducer.Close()

	p := pipeline.New(db, generator, illustrator, synthesizer, storageClient, webhookProducer, cfg.S3Bucket)
	handler := pipeline.NewHandler(p)

	consumer := kafka.NewConsumer(
		cfg.KafkaBrokers,
		cfg.KafkaTopicStories,
		cfg.KafkaConsumerGroup,
		handler,
	)
	defer consumer.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	log.Info().Msg("Worker started, consuming messages...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
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

	log.Info().Msg("Worker exited")
}
