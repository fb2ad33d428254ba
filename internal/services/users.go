package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/config"
	"github.com/night-tales/skazka/internal/database"
	"github.com/night-tales/skazka/internal/models"
)

// UserService handles user registration and API key issuance
type UserService struct {
	userRepo   *database.UserRepository
	apiKeyRepo *database.APIKeyRepository
	config     *config.Config
}

func NewUserService(db *database.DB, cfg *config.Config) *UserService {
	return &UserService{
		userRepo:   database.NewUserRepository(db),
		apiKeyRepo: database.NewAPIKeyRepository(db),
		config:     cfg,
	}
}

// RegisterUser creates a user and issues their first API key. The plain key
// is returned exactly once and never stored.
func (s *UserService) RegisterUser(ctx context.Context, email *string) (*models.User, string, error) {
	user := &models.User{
		ID:        uuid.New(),
		Email:     email,
		CreatedAt: time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	plainKey, _, err := s.apiKeyRepo.CreateAPIKey(ctx, user.ID, s.config.DefaultQuotaChars, s.config.DefaultQuotaPeriod)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create API key: %w", err)
	}

	log.Info().Str("user_id", user.ID.String()).Msg("User registered")
	return user, plainKey, nil
}
