package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/kafka"
)

// Handler consumes story operation messages and dispatches them to the
// pipeline.
type Handler struct {
	pipeline *Pipeline
}

func NewHandler(p *Pipeline) *Handler {
	return &Handler{pipeline: p}
}

// HandleMessage decodes a story operation and runs it. Unknown operations
// and malformed messages are an error so the consumer's retry policy can
// decide their fate.
func (h *Handler) HandleMessage(ctx context.Context, value []byte) error {
	var msg kafka.StoryMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return fmt.Errorf("failed to decode story message: %w", err)
	}
	if msg.StoryID == uuid.Nil {
		return fmt.Errorf("story message has no story id")
	}

	log.Info().
		Str("story_id", msg.StoryID.String()).
		Str("op", msg.Op).
		Str("trace_id", msg.TraceID).
		Msg("Processing story operation")

	switch msg.Op {
	case kafka.OpGenerate:
		return h.pipeline.Run(ctx, msg.StoryID, msg.TraceID)
	case kafka.OpAudio:
		return h.pipeline.RenderAudio(ctx, msg.StoryID, msg.TraceID)
	default:
		return fmt.Errorf("unknown story operation %q", msg.Op)
	}
}
