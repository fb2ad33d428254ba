package database

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/night-tales/skazka/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository handles user-related database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.CreatedAt)
	return err
}

// APIKeyRepository handles API key operations
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// KeyLookupHash returns the lookup hash for an API key (sha256 hex).
// Used for secure lookup without storing the plain key.
func KeyLookupHash(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

const apiKeyColumns = `id, user_id, key_hash, status, quota_period, quota_chars,
	used_chars_in_period, period_started_at, created_at`

func scanAPIKey(row interface{ Scan(...any) error }) (*models.APIKey, error) {
	key := &models.APIKey{}
	err := row.Scan(
		&key.ID, &key.UserID, &key.KeyHash, &key.Status, &key.QuotaPeriod,
		&key.QuotaChars, &key.UsedCharsInPeriod, &key.PeriodStartedAt,
		&key.CreatedAt,
	)
	return key, err
}

// GetByID retrieves an API key by ID
func (r *APIKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`
	key, err := scanAPIKey(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("api key not found")
	}
	return key, err
}

// GetByKeyLookup retrieves an API key by its lookup hash (sha256 hex of the plain key)
func (r *APIKeyRepository) GetByKeyLookup(ctx context.Context, lookup string) (*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_lookup = $1`
	key, err := scanAPIKey(r.db.QueryRowContext(ctx, query, lookup))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("api key not found")
	}
	return key, err
}

// CreateAPIKey creates a new API key for a user and returns the plain key (shown only once).
func (r *APIKeyRepository) CreateAPIKey(ctx context.Context, userID uuid.UUID, quotaChars int64, quotaPeriod string) (plainKey string, key *models.APIKey, err error) {
	const keyLen = 32
	b := make([]byte, keyLen)
	if _, err := rand.Read(b); err != nil {
		return "", nil, fmt.Errorf("generate key: %w", err)
	}
	plainKey = "sk_" + hex.EncodeToString(b)

	hash, err := bcrypt.GenerateFromPassword([]byte(plainKey), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash key: %w", err)
	}
	lookup := KeyLookupHash(plainKey)

	key = &models.APIKey{
		ID:                uuid.New(),
		UserID:            userID,
		KeyHash:           string(hash),
		Status:            "active",
		QuotaPeriod:       quotaPeriod,
		QuotaChars:        quotaChars,
		UsedCharsInPeriod: 0,
		PeriodStartedAt:   time.Now(),
		CreatedAt:         time.Now(),
	}

	query := `
		INSERT INTO api_keys (id, user_id, key_hash, key_lookup, status, quota_period, quota_chars,
			used_chars_in_period, period_started_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		key.ID, key.UserID, key.KeyHash, lookup, key.Status, key.QuotaPeriod,
		key.QuotaChars, key.UsedCharsInPeriod, key.PeriodStartedAt, key.CreatedAt,
	)
	if err != nil {
		return "", nil, err
	}
	return plainKey, key, nil
}

// UpdateUsage updates the usage for an API key
func (r *APIKeyRepository) UpdateUsage(ctx context.Context, keyID uuid.UUID, chars int64, periodStartedAt time.Time) error {
	query := `
		UPDATE api_keys
		SET used_chars_in_period = used_chars_in_period + $1,
			period_started_at = $2
		WHERE id = $3
	`

	_, err := r.db.ExecContext(ctx, query, chars, periodStartedAt, keyID)
	return err
}
