// Package storygen produces story text from questionnaire answers via an
// OpenAI-compatible chat completion endpoint.
package storygen

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// GenerationError wraps a failed generation call. Generation failures are
// terminal for the pipeline run and are never retried automatically.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("story generation failed: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// Generator issues chat completion requests for story text.
type Generator struct {
	client *openai.Client
	model  string
}

// NewGenerator creates a Generator against an OpenAI-compatible endpoint.
// The timeout is generous: generation takes minutes, not seconds.
func NewGenerator(baseURL, apiKey, model string, timeout time.Duration) *Generator {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	log.Info().
		Str("base_url", baseURL).
		Str("model", model).
		Dur("timeout", timeout).
		Msg("Story generator initialized")

	return &Generator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Generate issues one blocking completion call and returns the story text.
// Any transport error, non-success status, or empty choice list is a
// *GenerationError.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	log.Debug().Int("prompt_len", len(prompt)).Msg("Requesting story generation")

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", &GenerationError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &GenerationError{Err: fmt.Errorf("response contains no choices")}
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		return "", &GenerationError{Err: fmt.Errorf("response contains empty story text")}
	}

	log.Info().
		Str("model", g.model).
		Int("story_len", len(text)).
		Msg("Story text generated")

	return text, nil
}
