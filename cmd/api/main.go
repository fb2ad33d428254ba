package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/auth"
	"github.com/night-tales/skazka/internal/config"
	"github.com/night-tales/skazka/internal/database"
	"github.com/night-tales/skazka/internal/handlers"
	"github.com/night-tales/skazka/internal/kafka"
	"github.com/night-tales/skazka/internal/services"
	"github.com/night-tales/skazka/internal/storage"
	"github.com/night-tales/skazka/migrations"
)

func main() {
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

	log.Info().Msg("Starting Skazka API")

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := migrations.Run(db.SQLDB()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	kafkaProducer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicStories)
	defer kafkaProducer.Close()

	storageClient, err := storage.NewClient(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket,
		cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL, cfg.S3PublicURL,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage client")
	}

	storyService := services.NewStoryService(db, kafkaProducer, storageClient, cfg)
	userService := services.NewUserService(db, cfg)

	h := handlers.NewHandler(storyService, userService, storageClient, db)

	authService := auth.NewService(db)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")
	r.HandleFunc("/users", h.CreateUser).Methods("POST")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(authService.Middleware)
	api.HandleFunc("/stories", h.CreateStory).Methods("POST")
	api.HandleFunc("/stories", h.ListStories).Methods("GET")
	api.HandleFunc("/stories/{id}", h.GetStory).Methods("GET")
	api.HandleFunc("/stories/{id}/audio", h.RequestAudio).Methods("POST")
	api.HandleFunc("/stories/{id}/events", h.StoryEvents).Methods("GET")
	api.HandleFunc("/assets/{id}", h.GetAsset).Methods("GET")
	api.HandleFunc("/assets/{id}/content", h.GetAssetContent).Methods("GET")

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down API...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("API exited")
}
