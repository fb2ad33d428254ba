package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/night-tales/skazka/internal/models"
)

// storyRepository is the subset of story DB operations used by Pipeline.
type storyRepository interface {
	GetByID(ctx context.Context, storyID uuid.UUID) (*models.Story, error)
	UpdateStatus(ctx context.Context, storyID uuid.UUID, status string, errorCode, errorMessage *string) error
	UpdateAudioStatus(ctx context.Context, storyID uuid.UUID, status string, errorCode, errorMessage *string) error
	SetStoryText(ctx context.Context, storyID uuid.UUID, text string) error
}

// chunkRepository is the subset of chunk DB operations used by Pipeline.
type chunkRepository interface {
	Create(ctx context.Context, chunk *models.Chunk) error
	UpdateStatus(ctx context.Context, storyID uuid.UUID, idx int, status string) error
	DeleteByStoryID(ctx context.Context, storyID uuid.UUID) error
}

// assetRepository is the subset of asset DB operations used by Pipeline.
type assetRepository interface {
	Create(ctx context.Context, asset *models.Asset) error
	ListByStory(ctx context.Context, storyID uuid.UUID) ([]*models.Asset, error)
	DeleteByStoryID(ctx context.Context, storyID uuid.UUID) error
}
