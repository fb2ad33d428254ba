package kafka

import "github.com/google/uuid"

// Story operations carried on the stories topic.
const (
	OpGenerate = "generate"
	OpAudio    = "audio"
)

// StoryMessage asks the worker to run a pipeline operation for a story.
type StoryMessage struct {
	StoryID uuid.UUID `json:"story_id"`
	Op      string    `json:"op"` // "generate" or "audio"
	TraceID string    `json:"trace_id,omitempty"`
}

// WebhookMessage represents a webhook event message
type WebhookMessage struct {
	StoryID uuid.UUID `json:"story_id"`
	Event   string    `json:"event"` // story_completed, story_failed, audio_completed, audio_failed
	TraceID string    `json:"trace_id,omitempty"`
}
