package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/auth"
	"github.com/night-tales/skazka/internal/models"
)

// CreateStory handles POST /v1/stories
func (h *Handler) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	apiKeyID, err := auth.GetAPIKeyID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp, err := h.stories.CreateStory(r.Context(), &req, userID, apiKeyID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create story")
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// GetStory handles GET /v1/stories/{id}
func (h *Handler) GetStory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	storyID, err := uuid.Parse(vars["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid story id")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp, err := h.stories.GetStory(r.Context(), storyID, userID)
	if err != nil {
		log.Error().Err(err).Str("story_id", storyID.String()).Msg("Failed to get story")
		writeJSONError(w, http.StatusNotFound, "story not found")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListStories handles GET /v1/stories
func (h *Handler) ListStories(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil {
			limit = parsedLimit
		}
	}

	var cursor *time.Time
	cursorStr := r.URL.Query().Get("cursor")
	if cursorStr != "" {
		if parsedCursor, err := time.Parse(time.RFC3339, cursorStr); err == nil {
			cursor = &parsedCursor
		}
	}

	stories, err := h.stories.ListStories(r.Context(), userID, limit, cursor)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list stories")
		writeJSONError(w, http.StatusInternalServerError, "failed to list stories")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stories": stories,
	})
}

// RequestAudio handles POST /v1/stories/{id}/audio
func (h *Handler) RequestAudio(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	storyID, err := uuid.Parse(vars["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid story id")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.stories.RequestAudio(r.Context(), storyID, userID); err != nil {
		log.Error().Err(err).Str("story_id", storyID.String()).Msg("Failed to request audio")
		writeJSONError(w, http.StatusConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"story_id": storyID.String(),
		"status":   "queued",
	})
}

// CreateUser handles POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email *string `json:"email"`
	}
	if r.Body != nil {
		// An empty body is fine, email is optional.
		json.NewDecoder(r.Body).Decode(&req)
	}

	user, plainKey, err := h.users.RegisterUser(r.Context(), req.Email)
	if err != nil {
		log.Error().Err(err).Msg("Failed to register user")
		writeJSONError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":    user,
		"api_key": plainKey,
	})
}
