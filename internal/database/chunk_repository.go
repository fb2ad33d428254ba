package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/night-tales/skazka/internal/models"
)

// ChunkRepository handles chunk-related database operations
type ChunkRepository struct {
	db *DB
}

// NewChunkRepository creates a new ChunkRepository
func NewChunkRepository(db *DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// Create creates a new chunk
func (r *ChunkRepository) Create(ctx context.Context, chunk *models.Chunk) error {
	query := `
		INSERT INTO chunks (
			id, story_id, idx, text, sentences, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		chunk.ID, chunk.StoryID, chunk.Idx, chunk.Text, chunk.Sentences,
		chunk.Status, chunk.CreatedAt, chunk.UpdatedAt,
	)

	return err
}

// UpdateStatus updates a chunk's status
func (r *ChunkRepository) UpdateStatus(ctx context.Context, storyID uuid.UUID, idx int, status string) error {
	query := `
		UPDATE chunks
		SET status = $1, updated_at = NOW()
		WHERE story_id = $2 AND idx = $3
	`

	result, err := r.db.ExecContext(ctx, query, status, storyID, idx)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return fmt.Errorf("chunk not found: story_id=%s, idx=%d", storyID, idx)
	}

	return nil
}

// ListByStory retrieves chunks for a story in delivery order
func (r *ChunkRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]*models.Chunk, error) {
	query := `
		SELECT id, story_id, idx, text, sentences, status, created_at, updated_at
		FROM chunks
		WHERE story_id = $1
		ORDER BY idx ASC
	`

	rows, err := r.db.QueryContext(ctx, query, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		chunk := &models.Chunk{}
		err := rows.Scan(
			&chunk.ID, &chunk.StoryID, &chunk.Idx, &chunk.Text, &chunk.Sentences,
			&chunk.Status, &chunk.CreatedAt, &chunk.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// DeleteByStoryID deletes all chunks for a story. Assets are cascade-deleted by
// the DB. Used for idempotent restart when a story was left in "running" after
// a worker crash.
func (r *ChunkRepository) DeleteByStoryID(ctx context.Context, storyID uuid.UUID) error {
	query := `DELETE FROM chunks WHERE story_id = $1`
	_, err := r.db.ExecContext(ctx, query, storyID)
	return err
}
