package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the system
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     *string   `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey represents an API key for authentication
type APIKey struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	KeyHash           string    `json:"-"`
	Status            string    `json:"status"`       // active, disabled
	QuotaPeriod       string    `json:"quota_period"` // daily, weekly, monthly, yearly
	QuotaChars        int64     `json:"quota_chars"`
	UsedCharsInPeriod int64     `json:"used_chars_in_period"`
	PeriodStartedAt   time.Time `json:"period_started_at"`
	CreatedAt         time.Time `json:"created_at"`
}

// Answers is the finished questionnaire a story is generated from.
// It is fully populated before the pipeline starts and never mutated after.
type Answers struct {
	Hero   string `json:"hero"`
	Place  string `json:"place"`
	Mood   string `json:"mood"`
	Age    string `json:"age"`
	Length string `json:"length"` // short, medium, long; empty means unset
}

// Story represents a story generation request and its result
type Story struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	APIKeyID      uuid.UUID  `json:"api_key_id"`
	Status        string     `json:"status"` // queued, running, succeeded, failed
	AudioStatus   string     `json:"audio_status"` // none, queued, running, succeeded, failed
	Hero          string     `json:"hero"`
	Place         string     `json:"place"`
	Mood          string     `json:"mood"`
	Age           string     `json:"age"`
	Length        string     `json:"length"`
	StoryText     *string    `json:"story_text,omitempty"`
	WebhookURL    *string    `json:"webhook_url,omitempty"`
	WebhookSecret *string    `json:"webhook_secret,omitempty"`
	ErrorCode     *string    `json:"error_code,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Answers returns the questionnaire the story was created from.
func (s *Story) Answers() Answers {
	return Answers{
		Hero:   s.Hero,
		Place:  s.Place,
		Mood:   s.Mood,
		Age:    s.Age,
		Length: s.Length,
	}
}

// Chunk represents a contiguous run of sentences from the generated story,
// the unit of interleaved text+illustration delivery
type Chunk struct {
	ID        uuid.UUID `json:"id"`
	StoryID   uuid.UUID `json:"story_id"`
	Idx       int       `json:"idx"`
	Text      string    `json:"text"`
	Sentences int       `json:"sentences"`
	Status    string    `json:"status"` // queued, running, succeeded, failed
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Asset represents a generated asset (cover or chunk illustration, audio)
type Asset struct {
	ID        uuid.UUID      `json:"id"`
	StoryID   uuid.UUID      `json:"story_id"`
	ChunkID   *uuid.UUID     `json:"chunk_id,omitempty"`
	Kind      string         `json:"kind"` // cover, illustration, audio, audio_mp3
	MimeType  string         `json:"mime_type"`
	S3Bucket  string         `json:"-"`
	S3Key     string         `json:"-"`
	SizeBytes int64          `json:"size_bytes"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// WebhookDelivery tracks webhook delivery attempts
type WebhookDelivery struct {
	ID            uuid.UUID  `json:"id"`
	StoryID       uuid.UUID  `json:"story_id"`
	Event         string     `json:"event"`
	URL           string     `json:"url"`
	Status        string     `json:"status"` // pending, sent, failed
	Attempts      int        `json:"attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// WebhookConfig is the optional callback the collaborator registers per story
type WebhookConfig struct {
	URL    string  `json:"url"`
	Secret *string `json:"secret,omitempty"`
}

// CreateStoryRequest is the request body for POST /v1/stories
type CreateStoryRequest struct {
	Hero    string         `json:"hero"`
	Place   string         `json:"place"`
	Mood    string         `json:"mood"`
	Age     string         `json:"age"`
	Length  string         `json:"length"`
	Webhook *WebhookConfig `json:"webhook,omitempty"`
}

// CreateStoryResponse is the response body for POST /v1/stories
type CreateStoryResponse struct {
	StoryID   uuid.UUID `json:"story_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// AssetResponse is an asset with its download URL for API responses
type AssetResponse struct {
	Asset
	DownloadURL string `json:"download_url"`
}

// StoryStatusResponse is the full story view returned by GET /v1/stories/{id}
type StoryStatusResponse struct {
	Story  Story            `json:"story"`
	Chunks []*Chunk         `json:"chunks"`
	Assets []*AssetResponse `json:"assets"`
}
