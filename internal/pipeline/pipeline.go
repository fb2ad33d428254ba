// Package pipeline orchestrates story processing: text generation,
// chunking, best-effort illustrations, and on-demand audio rendering.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/chunk"
	"github.com/night-tales/skazka/internal/database"
	"github.com/night-tales/skazka/internal/models"
	"github.com/night-tales/skazka/internal/speech"
	"github.com/night-tales/skazka/internal/storygen"
)

// Error codes recorded on terminal failures.
const (
	CodeGenerationError = "generation_error"
	CodeTTSError        = "tts_error"
	CodeTextTooLong     = "text_too_long"
)

// Webhook events published on terminal transitions.
const (
	EventStoryCompleted = "story_completed"
	EventStoryFailed    = "story_failed"
	EventAudioCompleted = "audio_completed"
	EventAudioFailed    = "audio_failed"
)

// StoryGenerator produces story text from a prompt.
type StoryGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Illustrator produces an image artifact file from a prompt. An error
// means no artifact; illustration is best-effort throughout.
type Illustrator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Speech renders text to audio artifacts.
type Speech interface {
	Synthesize(ctx context.Context, text string) (*speech.Result, error)
}

// ArtifactStore persists artifact files to object storage.
type ArtifactStore interface {
	UploadFile(ctx context.Context, key, path, contentType string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// WebhookPublisher queues a webhook event for delivery.
type WebhookPublisher interface {
	PublishWebhook(ctx context.Context, storyID uuid.UUID, event, traceID string) error
}

// Pipeline processes stories end to end.
type Pipeline struct {
	storyRepo   storyRepository
	chunkRepo   chunkRepository
	assetRepo   assetRepository
	storygen    StoryGenerator
	illustrator Illustrator
	speech      Speech
	store       ArtifactStore
	webhooks    WebhookPublisher
	bucket      string
}

func New(
	db *database.DB,
	generator StoryGenerator,
	illustrator Illustrator,
	synth Speech,
	store ArtifactStore,
	webhooks WebhookPublisher,
	bucket string,
) *Pipeline {
	return &Pipeline{
		storyRepo:   database.NewStoryRepository(db),
		chunkRepo:   database.NewChunkRepository(db),
		assetRepo:   database.NewAssetRepository(db),
		storygen:    generator,
		illustrator: illustrator,
		speech:      synth,
		store:       store,
		webhooks:    webhooks,
		bucket:      bucket,
	}
}

// Run processes a story end-to-end: cover illustration (best-effort),
// story generation (terminal on failure), chunking, and one best-effort
// illustration per chunk. There are no automatic retries; a failed story
// stays failed until the user submits a new request.
func (p *Pipeline) Run(ctx context.Context, storyID uuid.UUID, traceID string) error {
	log.Info().Str("story_id", storyID.String()).Str("trace_id", traceID).Msg("Starting story processing")

	story, err := p.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return fmt.Errorf("failed to get story: %w", err)
	}

	if story.Status == "succeeded" || story.Status == "failed" {
		log.Warn().
			Str("story_id", storyID.String()).
			Str("status", story.Status).
			Msg("Story already processed")
		return nil
	}

	if err := p.storyRepo.UpdateStatus(ctx, storyID, "running", nil, nil); err != nil {
		log.Error().Err(err).Msg("Failed to update story status to running")
	}

	if err := p.runPipeline(ctx, story); err != nil {
		log.Error().
			Err(err).
			Str("story_id", storyID.String()).
			Msg("Story processing failed")

		errCode := CodeGenerationError
		errMsg := err.Error()
		if err := p.storyRepo.UpdateStatus(ctx, storyID, "failed", &errCode, &errMsg); err != nil {
			log.Error().Err(err).Msg("Failed to update story status to failed")
		}
		p.publishEvent(ctx, storyID, EventStoryFailed, traceID)
		return err
	}

	if err := p.storyRepo.UpdateStatus(ctx, storyID, "succeeded", nil, nil); err != nil {
		log.Error().Err(err).Msg("Failed to update story status to succeeded")
	}
	p.publishEvent(ctx, storyID, EventStoryCompleted, traceID)

	log.Info().Str("story_id", storyID.String()).Msg("Story processing completed")
	return nil
}

func (p *Pipeline) runPipeline(ctx context.Context, story *models.Story) error {
	answers := story.Answers()

	p.purgeStaleAssets(ctx, story.ID)

	// Step 1: cover illustration, from the answers alone. Its failure
	// never blocks the story.
	log.Info().Str("story_id", story.ID.String()).Msg("Step 1: Generating cover illustration")
	p.illustrate(ctx, story.ID, nil, "cover", storygen.BuildCoverPrompt(answers))

	// Step 2: story text. A failure here is terminal for the run.
	log.Info().Str("story_id", story.ID.String()).Msg("Step 2: Generating story text")
	text, err := p.storygen.Generate(ctx, storygen.BuildPrompt(answers))
	if err != nil {
		return fmt.Errorf("story generation failed: %w", err)
	}

	if err := p.storyRepo.SetStoryText(ctx, story.ID, text); err != nil {
		return fmt.Errorf("failed to save story text: %w", err)
	}

	// Step 3: split into chunks. Chunks from a previous interrupted run
	// are discarded first.
	log.Info().Str("story_id", story.ID.String()).Msg("Step 3: Splitting story into chunks")
	if err := p.chunkRepo.DeleteByStoryID(ctx, story.ID); err != nil {
		return fmt.Errorf("failed to clear previous chunks: %w", err)
	}

	chunks := chunk.Split(text, chunk.SentencesPerChunk)
	chunkIDs := make([]uuid.UUID, len(chunks))
	for i, c := range chunks {
		record := &models.Chunk{
			ID:        uuid.New(),
			StoryID:   story.ID,
			Idx:       i,
			Text:      c.Text,
			Sentences: c.Sentences,
			Status:    "queued",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		chunkIDs[i] = record.ID

		if err := p.chunkRepo.Create(ctx, record); err != nil {
			return fmt.Errorf("failed to save chunk %d: %w", i, err)
		}
	}

	log.Info().
		Str("story_id", story.ID.String()).
		Int("chunks", len(chunks)).
		Msg("Chunking complete")

	// Step 4: one illustration per chunk, keyed off the chunk's last two
	// sentences. Failures never abort subsequent chunks.
	for i, c := range chunks {
		if err := p.chunkRepo.UpdateStatus(ctx, story.ID, i, "running"); err != nil {
			log.Error().Err(err).Msg("Failed to update chunk status")
		}

		prompt := storygen.BuildChunkPrompt(chunk.Tail(c.Text, 2))
		p.illustrate(ctx, story.ID, &chunkIDs[i], "illustration", prompt)

		if err := p.chunkRepo.UpdateStatus(ctx, story.ID, i, "succeeded"); err != nil {
			log.Error().Err(err).Msg("Failed to update chunk status to succeeded")
		}
	}

	return nil
}

// purgeStaleAssets removes artifacts left by a previous interrupted run so a
// reprocessed story does not accumulate duplicates. Best-effort; a leaked
// object is preferable to a failed story.
func (p *Pipeline) purgeStaleAssets(ctx context.Context, storyID uuid.UUID) {
	stale, err := p.assetRepo.ListByStory(ctx, storyID)
	if err != nil {
		log.Warn().Err(err).Str("story_id", storyID.String()).Msg("Failed to list previous assets")
		return
	}
	if len(stale) == 0 {
		return
	}

	for _, a := range stale {
		if err := p.store.Delete(ctx, a.S3Key); err != nil {
			log.Warn().Err(err).Str("key", a.S3Key).Msg("Failed to delete stale artifact")
		}
	}
	if err := p.assetRepo.DeleteByStoryID(ctx, storyID); err != nil {
		log.Warn().Err(err).Str("story_id", storyID.String()).Msg("Failed to delete stale asset rows")
		return
	}
	log.Info().
		Str("story_id", storyID.String()).
		Int("assets", len(stale)).
		Msg("Purged assets from previous run")
}

// illustrate generates one image and persists it as an asset. Every
// failure path is logged and absorbed: the story proceeds without the
// image.
func (p *Pipeline) illustrate(ctx context.Context, storyID uuid.UUID, chunkID *uuid.UUID, kind, prompt string) {
	path, err := p.illustrator.Generate(ctx, prompt)
	if err != nil {
		log.Warn().
			Err(err).
			Str("story_id", storyID.String()).
			Str("kind", kind).
			Msg("Illustration failed, continuing without image")
		return
	}
	defer removeArtifact(path)

	assetID := uuid.New()
	key := fmt.Sprintf("stories/%s/%s/%s.jpg", storyID, kind, assetID)

	size, err := p.store.UploadFile(ctx, key, path, "image/jpeg")
	if err != nil {
		log.Warn().
			Err(err).
			Str("story_id", storyID.String()).
			Str("kind", kind).
			Msg("Illustration upload failed, continuing without image")
		return
	}

	asset := &models.Asset{
		ID:        assetID,
		StoryID:   storyID,
		ChunkID:   chunkID,
		Kind:      kind,
		MimeType:  "image/jpeg",
		S3Bucket:  p.bucket,
		S3Key:     key,
		SizeBytes: size,
		CreatedAt: time.Now(),
	}
	if err := p.assetRepo.Create(ctx, asset); err != nil {
		log.Warn().
			Err(err).
			Str("story_id", storyID.String()).
			Str("kind", kind).
			Msg("Failed to save illustration asset")
	}
}

func (p *Pipeline) publishEvent(ctx context.Context, storyID uuid.UUID, event, traceID string) {
	if p.webhooks == nil {
		return
	}
	if err := p.webhooks.PublishWebhook(ctx, storyID, event, traceID); err != nil {
		log.Error().
			Err(err).
			Str("story_id", storyID.String()).
			Str("event", event).
			Msg("Failed to publish webhook event")
	}
}

// removeArtifact deletes a consumed temp file. Deletion failure is logged,
// never fatal.
func removeArtifact(path string) {
	if err := os.Remove(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove artifact file")
	}
}
