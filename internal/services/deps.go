package services

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StoryPublisher publishes story operation messages (e.g. to Kafka). May be
// nil to skip publishing.
type StoryPublisher interface {
	PublishStoryOp(ctx context.Context, storyID uuid.UUID, op, traceID string) error
}

// AssetURLSigner produces collaborator-facing download URLs for stored
// assets. May be nil; responses then fall back to the API content route.
type AssetURLSigner interface {
	PublicURL(key string) string
	GeneratePresignedURL(key string, expiration time.Duration) (string, error)
}
