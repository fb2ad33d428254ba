package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/night-tales/skazka/internal/models"
)

// AssetRepository handles asset-related database operations
type AssetRepository struct {
	db *DB
}

// NewAssetRepository creates a new AssetRepository
func NewAssetRepository(db *DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create creates a new asset
func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	var metaJSON []byte
	var err error

	if asset.Meta != nil {
		metaJSON, err = json.Marshal(asset.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal meta: %w", err)
		}
	}

	query := `
		INSERT INTO assets (
			id, story_id, chunk_id, kind, mime_type, s3_bucket, s3_key,
			size_bytes, meta, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		asset.ID, asset.StoryID, asset.ChunkID, asset.Kind,
		asset.MimeType, asset.S3Bucket, asset.S3Key, asset.SizeBytes,
		metaJSON, asset.CreatedAt,
	)

	return err
}

// GetByID retrieves an asset by ID
func (r *AssetRepository) GetByID(ctx context.Context, assetID uuid.UUID) (*models.Asset, error) {
	query := `
		SELECT id, story_id, chunk_id, kind, mime_type, s3_bucket, s3_key,
			size_bytes, meta, created_at
		FROM assets
		WHERE id = $1
	`

	asset := &models.Asset{}
	var metaJSON []byte

	err := r.db.QueryRowContext(ctx, query, assetID).Scan(
		&asset.ID, &asset.StoryID, &asset.ChunkID, &asset.Kind,
		&asset.MimeType, &asset.S3Bucket, &asset.S3Key, &asset.SizeBytes,
		&metaJSON, &asset.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("asset not found")
	}
	if err != nil {
		return nil, err
	}

	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &asset.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meta: %w", err)
		}
	}

	return asset, nil
}

// ListByStory retrieves assets for a story
func (r *AssetRepository) ListByStory(ctx context.Context, storyID uuid.UUID) ([]*models.Asset, error) {
	query := `
		SELECT id, story_id, chunk_id, kind, mime_type, s3_bucket, s3_key,
			size_bytes, meta, created_at
		FROM assets
		WHERE story_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*models.Asset
	for rows.Next() {
		asset := &models.Asset{}
		var metaJSON []byte

		err := rows.Scan(
			&asset.ID, &asset.StoryID, &asset.ChunkID, &asset.Kind,
			&asset.MimeType, &asset.S3Bucket, &asset.S3Key, &asset.SizeBytes,
			&metaJSON, &asset.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &asset.Meta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal meta: %w", err)
			}
		}

		assets = append(assets, asset)
	}

	return assets, rows.Err()
}

// DeleteByStoryID removes all asset rows for a story. Used when a story is
// reprocessed and its previous artifacts are replaced.
func (r *AssetRepository) DeleteByStoryID(ctx context.Context, storyID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE story_id = $1`, storyID)
	return err
}
