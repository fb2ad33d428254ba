package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/chunk"
	"github.com/night-tales/skazka/internal/models"
	"github.com/night-tales/skazka/internal/speech"
)

// RenderAudio synthesizes audio for a finished story. Long stories are
// bisected near their midpoint and rendered as two independent artifacts;
// shorter stories get one. A text-too-long refusal from the TTS service is
// recorded distinctly so the caller can show it verbatim.
func (p *Pipeline) RenderAudio(ctx context.Context, storyID uuid.UUID, traceID string) error {
	log.Info().Str("story_id", storyID.String()).Str("trace_id", traceID).Msg("Starting audio rendering")

	story, err := p.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return fmt.Errorf("failed to get story: %w", err)
	}

	// A terminal audio status is final until the user requests narration
	// again, which resets it to queued. Redelivered messages must not
	// re-run synthesis.
	if story.AudioStatus == "succeeded" || story.AudioStatus == "failed" {
		log.Warn().
			Str("story_id", storyID.String()).
			Str("audio_status", story.AudioStatus).
			Msg("Audio already processed")
		return nil
	}

	if story.StoryText == nil || *story.StoryText == "" {
		errCode := CodeTTSError
		errMsg := "story has no text to synthesize"
		if err := p.storyRepo.UpdateAudioStatus(ctx, storyID, "failed", &errCode, &errMsg); err != nil {
			log.Error().Err(err).Msg("Failed to update audio status to failed")
		}
		return fmt.Errorf("story %s has no text", storyID)
	}

	if err := p.storyRepo.UpdateAudioStatus(ctx, storyID, "running", nil, nil); err != nil {
		log.Error().Err(err).Msg("Failed to update audio status to running")
	}

	if err := p.renderAudioParts(ctx, story); err != nil {
		log.Error().
			Err(err).
			Str("story_id", storyID.String()).
			Msg("Audio rendering failed")

		errCode := CodeTTSError
		if errors.Is(err, speech.ErrTextTooLong) {
			errCode = CodeTextTooLong
		}
		errMsg := err.Error()
		if err := p.storyRepo.UpdateAudioStatus(ctx, storyID, "failed", &errCode, &errMsg); err != nil {
			log.Error().Err(err).Msg("Failed to update audio status to failed")
		}
		p.publishEvent(ctx, storyID, EventAudioFailed, traceID)
		return err
	}

	if err := p.storyRepo.UpdateAudioStatus(ctx, storyID, "succeeded", nil, nil); err != nil {
		log.Error().Err(err).Msg("Failed to update audio status to succeeded")
	}
	p.publishEvent(ctx, storyID, EventAudioCompleted, traceID)

	log.Info().Str("story_id", storyID.String()).Msg("Audio rendering completed")
	return nil
}

func (p *Pipeline) renderAudioParts(ctx context.Context, story *models.Story) error {
	text := *story.StoryText

	parts := []string{text}
	if story.Length == "long" {
		first, second := chunk.Bisect(text)
		parts = []string{first, second}
	}

	for i, part := range parts {
		if err := p.renderAudioPart(ctx, story.ID, i, part); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
	}
	return nil
}

func (p *Pipeline) renderAudioPart(ctx context.Context, storyID uuid.UUID, idx int, text string) error {
	result, err := p.speech.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	defer removeArtifact(result.OggPath)
	if result.MP3Path != "" {
		defer removeArtifact(result.MP3Path)
	}

	if err := p.saveAudioAsset(ctx, storyID, idx, "audio", "audio/ogg", result.OggPath); err != nil {
		return err
	}

	// The mp3 rendition is a secondary convenience. Its absence or a
	// failed upload never fails the request.
	if result.MP3Path != "" {
		if err := p.saveAudioAsset(ctx, storyID, idx, "audio_mp3", "audio/mpeg", result.MP3Path); err != nil {
			log.Warn().
				Err(err).
				Str("story_id", storyID.String()).
				Int("part", idx).
				Msg("mp3 upload failed, keeping ogg artifact only")
		}
	}

	return nil
}

func (p *Pipeline) saveAudioAsset(ctx context.Context, storyID uuid.UUID, idx int, kind, mimeType, path string) error {
	assetID := uuid.New()
	ext := "ogg"
	if kind == "audio_mp3" {
		ext = "mp3"
	}
	key := fmt.Sprintf("stories/%s/audio/%d/%s.%s", storyID, idx, assetID, ext)

	size, err := p.store.UploadFile(ctx, key, path, mimeType)
	if err != nil {
		return fmt.Errorf("audio upload failed: %w", err)
	}

	asset := &models.Asset{
		ID:        assetID,
		StoryID:   storyID,
		Kind:      kind,
		MimeType:  mimeType,
		S3Bucket:  p.bucket,
		S3Key:     key,
		SizeBytes: size,
		Meta:      map[string]any{"part": idx},
		CreatedAt: time.Now(),
	}
	if err := p.assetRepo.Create(ctx, asset); err != nil {
		return fmt.Errorf("failed to save audio asset: %w", err)
	}
	return nil
}
