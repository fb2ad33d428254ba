package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/night-tales/skazka/internal/models"
)

// StoryRepository handles story-related database operations
type StoryRepository struct {
	db *DB
}

// NewStoryRepository creates a new StoryRepository
func NewStoryRepository(db *DB) *StoryRepository {
	return &StoryRepository{db: db}
}

const storyColumns = `id, user_id, api_key_id, status, audio_status, hero, place, mood, age, length,
	story_text, webhook_url, webhook_secret, error_code, error_message,
	created_at, started_at, finished_at`

func scanStory(row interface{ Scan(...any) error }) (*models.Story, error) {
	story := &models.Story{}
	err := row.Scan(
		&story.ID, &story.UserID, &story.APIKeyID, &story.Status, &story.AudioStatus,
		&story.Hero, &story.Place, &story.Mood, &story.Age, &story.Length,
		&story.StoryText, &story.WebhookURL, &story.WebhookSecret,
		&story.ErrorCode, &story.ErrorMessage,
		&story.CreatedAt, &story.StartedAt, &story.FinishedAt,
	)
	return story, err
}

// Create creates a new story request
func (r *StoryRepository) Create(ctx context.Context, story *models.Story) error {
	query := `
		INSERT INTO stories (
			id, user_id, api_key_id, status, audio_status, hero, place, mood, age, length,
			webhook_url, webhook_secret, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		story.ID, story.UserID, story.APIKeyID, story.Status, story.AudioStatus,
		story.Hero, story.Place, story.Mood, story.Age, story.Length,
		story.WebhookURL, story.WebhookSecret, story.CreatedAt,
	)

	return err
}

// GetByID retrieves a story by ID
func (r *StoryRepository) GetByID(ctx context.Context, storyID uuid.UUID) (*models.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE id = $1`

	story, err := scanStory(r.db.QueryRowContext(ctx, query, storyID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("story not found")
	}
	if err != nil {
		return nil, err
	}
	return story, nil
}

// ListByUser retrieves stories for a user with pagination
func (r *StoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]*models.Story, error) {
	query := `
		SELECT ` + storyColumns + `
		FROM stories
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []*models.Story
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, story)
	}

	return stories, rows.Err()
}

// UpdateStatus updates a story's status and error fields. Sets started_at when
// transitioning to running and finished_at on a terminal status.
func (r *StoryRepository) UpdateStatus(ctx context.Context, storyID uuid.UUID, status string, errorCode, errorMessage *string) error {
	query := `
		UPDATE stories
		SET status = $1,
			error_code = $2,
			error_message = $3,
			started_at = CASE WHEN $1 = 'running' THEN NOW() ELSE started_at END,
			finished_at = CASE WHEN $1 IN ('succeeded', 'failed') THEN NOW() ELSE finished_at END
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, status, errorCode, errorMessage, storyID)
	return err
}

// UpdateAudioStatus updates the narration status of a story. Error fields are
// overwritten on every transition so a re-requested narration does not carry
// the previous attempt's error code.
func (r *StoryRepository) UpdateAudioStatus(ctx context.Context, storyID uuid.UUID, status string, errorCode, errorMessage *string) error {
	query := `
		UPDATE stories
		SET audio_status = $1,
			error_code = $2,
			error_message = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, status, errorCode, errorMessage, storyID)
	return err
}

// SetStoryText saves the generated story text
func (r *StoryRepository) SetStoryText(ctx context.Context, storyID uuid.UUID, text string) error {
	query := `UPDATE stories SET story_text = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, text, storyID)
	return err
}
