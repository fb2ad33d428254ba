// Package handlers contains the HTTP API surface.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/models"
)

// storyService is the subset of story operations used by handlers.
type storyService interface {
	CreateStory(ctx context.Context, req *models.CreateStoryRequest, userID, apiKeyID uuid.UUID) (*models.CreateStoryResponse, error)
	GetStory(ctx context.Context, storyID, userID uuid.UUID) (*models.StoryStatusResponse, error)
	ListStories(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]*models.Story, error)
	RequestAudio(ctx context.Context, storyID, userID uuid.UUID) error
	GetAsset(ctx context.Context, assetID, userID uuid.UUID) (*models.Asset, error)
}

// userService is the subset of user operations used by handlers.
type userService interface {
	RegisterUser(ctx context.Context, email *string) (*models.User, string, error)
}

// assetStore streams stored asset content.
type assetStore interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// healthChecker reports backing-store health.
type healthChecker interface {
	Health(ctx context.Context) error
}

// Handler contains all HTTP handlers
type Handler struct {
	stories storyService
	users   userService
	store   assetStore
	health  healthChecker
}

// NewHandler creates a new handler
func NewHandler(stories storyService, users userService, store assetStore, health healthChecker) *Handler {
	return &Handler{
		stories: stories,
		users:   users,
		store:   store,
		health:  health,
	}
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Health(r.Context()); err != nil {
			log.Error().Err(err).Msg("Health check failed")
			writeJSONError(w, http.StatusServiceUnavailable, "unhealthy")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
