package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/config"
	"github.com/night-tales/skazka/internal/database"
	"github.com/night-tales/skazka/internal/kafka"
	"github.com/night-tales/skazka/internal/models"
	"github.com/night-tales/skazka/internal/storygen"
)

// Questionnaire enums. The values are what the chat collaborator presents
// to users, so they stay in Russian.
var (
	validMoods = map[string]bool{
		"спокойное":      true,
		"волшебное":      true,
		"весёлое":        true,
		"поучительное":   true,
		"фантастическое": true,
		"страшное":       true,
	}
	validAges = map[string]bool{
		"малыш":     true,
		"ребёнок":   true,
		"подросток": true,
		"взрослый":  true,
	}
	validLengths = map[string]bool{
		"":       true, // unset falls back to the default word count
		"short":  true,
		"medium": true,
		"long":   true,
	}
)

// StoryService handles story-related business logic
type StoryService struct {
	storyRepo  *database.StoryRepository
	chunkRepo  *database.ChunkRepository
	assetRepo  *database.AssetRepository
	apiKeyRepo *database.APIKeyRepository
	producer   StoryPublisher
	signer     AssetURLSigner
	config     *config.Config
}

// NewStoryService creates a new StoryService
func NewStoryService(
	db *database.DB,
	producer StoryPublisher,
	signer AssetURLSigner,
	cfg *config.Config,
) *StoryService {
	return &StoryService{
		storyRepo:  database.NewStoryRepository(db),
		chunkRepo:  database.NewChunkRepository(db),
		assetRepo:  database.NewAssetRepository(db),
		apiKeyRepo: database.NewAPIKeyRepository(db),
		producer:   producer,
		signer:     signer,
		config:     cfg,
	}
}

// CreateStory validates the questionnaire, records the story, and queues it
// for processing.
func (s *StoryService) CreateStory(ctx context.Context, req *models.CreateStoryRequest, userID, apiKeyID uuid.UUID) (*models.CreateStoryResponse, error) {
	if err := s.validateCreateStoryRequest(req); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	// Quota is charged up front from the requested length: roughly seven
	// characters per expected word.
	charsNeeded := int64(storygen.MinWords(req.Length)) * 7
	apiKey, err := s.apiKeyRepo.GetByID(ctx, apiKeyID)
	if err == nil {
		if err := s.checkAndUpdateQuota(ctx, apiKey, charsNeeded); err != nil {
			return nil, err
		}
	}

	story := &models.Story{
		ID:          uuid.New(),
		UserID:      userID,
		APIKeyID:    apiKeyID,
		Status:      "queued",
		AudioStatus: "none",
		Hero:        req.Hero,
		Place:       req.Place,
		Mood:        req.Mood,
		Age:         req.Age,
		Length:      req.Length,
		CreatedAt:   time.Now(),
	}

	if req.Webhook != nil {
		story.WebhookURL = &req.Webhook.URL
		story.WebhookSecret = req.Webhook.Secret
	}

	if err := s.storyRepo.Create(ctx, story); err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}

	traceID := uuid.New().String()
	if s.producer != nil {
		if err := s.producer.PublishStoryOp(ctx, story.ID, kafka.OpGenerate, traceID); err != nil {
			log.Error().Err(err).Str("story_id", story.ID.String()).Msg("Failed to publish story to Kafka")
		}
	}

	log.Info().
		Str("story_id", story.ID.String()).
		Str("user_id", userID.String()).
		Str("length", req.Length).
		Str("mood", req.Mood).
		Msg("Story created")

	return &models.CreateStoryResponse{
		StoryID:   story.ID,
		Status:    story.Status,
		CreatedAt: story.CreatedAt,
	}, nil
}

// GetStory retrieves a story with its chunks and assets.
func (s *StoryService) GetStory(ctx context.Context, storyID, userID uuid.UUID) (*models.StoryStatusResponse, error) {
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("story not found: %w", err)
	}

	if story.UserID != userID {
		return nil, fmt.Errorf("access denied")
	}

	chunks, err := s.chunkRepo.ListByStory(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}

	assets, err := s.assetRepo.ListByStory(ctx, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assets: %w", err)
	}

	return &models.StoryStatusResponse{
		Story:  *story,
		Chunks: chunks,
		Assets: s.buildAssetResponses(assets),
	}, nil
}

// buildAssetResponses converts assets to response objects with download URLs.
func (s *StoryService) buildAssetResponses(assets []*models.Asset) []*models.AssetResponse {
	out := make([]*models.AssetResponse, len(assets))
	for i, a := range assets {
		out[i] = &models.AssetResponse{
			Asset:       *a,
			DownloadURL: s.assetDownloadURL(a),
		}
	}
	return out
}

// assetDownloadURL prefers a direct object-store URL (public base URL when
// configured, presigned otherwise) and falls back to the authenticated API
// content route.
func (s *StoryService) assetDownloadURL(a *models.Asset) string {
	if s.signer != nil {
		if u := s.signer.PublicURL(a.S3Key); u != "" {
			return u
		}
		u, err := s.signer.GeneratePresignedURL(a.S3Key, time.Hour)
		if err == nil {
			return u
		}
		log.Warn().Err(err).Str("asset_id", a.ID.String()).Msg("Failed to presign asset URL")
	}
	return "/v1/assets/" + a.ID.String() + "/content"
}

// ListStories lists stories for a user.
func (s *StoryService) ListStories(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]*models.Story, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	stories, err := s.storyRepo.ListByUser(ctx, userID, limit, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	return stories, nil
}

// RequestAudio queues audio rendering for a finished story. Audio is a
// separate operation requested after the story itself completed.
func (s *StoryService) RequestAudio(ctx context.Context, storyID, userID uuid.UUID) error {
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return fmt.Errorf("story not found: %w", err)
	}
	if story.UserID != userID {
		return fmt.Errorf("access denied")
	}
	if story.Status != "succeeded" || story.StoryText == nil {
		return fmt.Errorf("story is not ready for audio (status: %s)", story.Status)
	}
	if story.AudioStatus == "queued" || story.AudioStatus == "running" {
		return fmt.Errorf("audio rendering already in progress")
	}

	if err := s.storyRepo.UpdateAudioStatus(ctx, storyID, "queued", nil, nil); err != nil {
		return fmt.Errorf("failed to queue audio: %w", err)
	}

	traceID := uuid.New().String()
	if s.producer != nil {
		if err := s.producer.PublishStoryOp(ctx, storyID, kafka.OpAudio, traceID); err != nil {
			log.Error().Err(err).Str("story_id", storyID.String()).Msg("Failed to publish audio request to Kafka")
		}
	}

	log.Info().Str("story_id", storyID.String()).Msg("Audio rendering queued")
	return nil
}

// GetAsset returns an asset by ID if the user owns the story it belongs to.
func (s *StoryService) GetAsset(ctx context.Context, assetID, userID uuid.UUID) (*models.Asset, error) {
	asset, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("asset not found: %w", err)
	}
	story, err := s.storyRepo.GetByID(ctx, asset.StoryID)
	if err != nil {
		return nil, fmt.Errorf("story not found: %w", err)
	}
	if story.UserID != userID {
		return nil, fmt.Errorf("access denied")
	}
	return asset, nil
}

// validateCreateStoryRequest validates a create story request
func (s *StoryService) validateCreateStoryRequest(req *models.CreateStoryRequest) error {
	if req.Hero == "" {
		return fmt.Errorf("hero is required")
	}
	if utf8.RuneCountInString(req.Hero) > s.config.MaxHeroLength {
		return fmt.Errorf("hero exceeds maximum length of %d characters", s.config.MaxHeroLength)
	}

	if req.Place == "" {
		return fmt.Errorf("place is required")
	}
	if utf8.RuneCountInString(req.Place) > s.config.MaxPlaceLength {
		return fmt.Errorf("place exceeds maximum length of %d characters", s.config.MaxPlaceLength)
	}

	if !validMoods[req.Mood] {
		return fmt.Errorf("invalid mood: %q", req.Mood)
	}

	if !validAges[req.Age] {
		return fmt.Errorf("invalid age: %q", req.Age)
	}

	if !validLengths[req.Length] {
		return fmt.Errorf("invalid length: must be short, medium, or long")
	}

	return nil
}

// checkAndUpdateQuota checks if the key has enough quota and updates usage
func (s *StoryService) checkAndUpdateQuota(ctx context.Context, apiKey *models.APIKey, charsNeeded int64) error {
	now := time.Now()
	periodDuration := s.getPeriodDuration(apiKey.QuotaPeriod)

	if now.Sub(apiKey.PeriodStartedAt) > periodDuration {
		apiKey.UsedCharsInPeriod = 0
		apiKey.PeriodStartedAt = now
	}

	if apiKey.UsedCharsInPeriod+charsNeeded > apiKey.QuotaChars {
		return fmt.Errorf("quota exceeded: %d/%d chars used", apiKey.UsedCharsInPeriod, apiKey.QuotaChars)
	}

	if err := s.apiKeyRepo.UpdateUsage(ctx, apiKey.ID, charsNeeded, apiKey.PeriodStartedAt); err != nil {
		return fmt.Errorf("failed to update quota: %w", err)
	}

	return nil
}

func (s *StoryService) getPeriodDuration(period string) time.Duration {
	switch period {
	case "daily":
		return 24 * time.Hour
	case "weekly":
		return 7 * 24 * time.Hour
	case "monthly":
		return 30 * 24 * time.Hour
	case "yearly":
		return 365 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}
