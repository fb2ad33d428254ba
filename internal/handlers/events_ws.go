package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/auth"
)

const eventsPollInterval = 2 * time.Second

var eventsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// storyEvent is the JSON shape pushed to the client on every state change.
type storyEvent struct {
	StoryID     string `json:"story_id"`
	Status      string `json:"status"`
	AudioStatus string `json:"audio_status"`
	Chunks      int    `json:"chunks"`
	Assets      int    `json:"assets"`
	ErrorCode   string `json:"error_code,omitempty"`
}

// StoryEvents handles GET /v1/stories/{id}/events, a WebSocket endpoint that
// streams story progress until the story reaches a terminal state.
func (h *Handler) StoryEvents(w http.ResponseWriter, r *http.Request) {
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

	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("story events upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(eventsPollInterval)
	defer ticker.Stop()

	var last storyEvent
	for {
		resp, err := h.stories.GetStory(r.Context(), storyID, userID)
		if err != nil {
			writeWSJSON(conn, map[string]string{"error": "story not found"})
			return
		}

		event := storyEvent{
			StoryID:     storyID.String(),
			Status:      resp.Story.Status,
			AudioStatus: resp.Story.AudioStatus,
			Chunks:      len(resp.Chunks),
			Assets:      len(resp.Assets),
		}
		if resp.Story.ErrorCode != nil {
			event.ErrorCode = *resp.Story.ErrorCode
		}

		if event != last {
			if err := writeWSJSON(conn, event); err != nil {
				log.Debug().Err(err).Msg("story events write")
				return
			}
			last = event
		}

		if terminal(event.Status) && event.AudioStatus != "queued" && event.AudioStatus != "running" {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func terminal(status string) bool {
	return status == "succeeded" || status == "failed"
}

func writeWSJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	return conn.WriteJSON(v)
}
