// Package imagegen submits illustration jobs to an async image generation
// API, polls them to completion, and normalizes the result into a local
// image file.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// TokenSource supplies a bearer credential for the image API.
type TokenSource interface {
	Ensure(ctx context.Context) (string, error)
}

// Generator drives the submit-then-poll job protocol. Every failure path
// yields no artifact; illustration is best-effort and the caller proceeds
// without an image.
type Generator struct {
	submitURL     string
	operationsURL string
	modelURI      string
	aspectWidth   int
	aspectHeight  int
	pollAttempts  int
	pollInterval  time.Duration
	tokens        TokenSource
	client        *http.Client
}

func NewGenerator(submitURL, operationsURL, modelURI string, aspectWidth, aspectHeight, pollAttempts int, pollInterval time.Duration, tokens TokenSource, client *http.Client) *Generator {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Generator{
		submitURL:     submitURL,
		operationsURL: operationsURL,
		modelURI:      modelURI,
		aspectWidth:   aspectWidth,
		aspectHeight:  aspectHeight,
		pollAttempts:  pollAttempts,
		pollInterval:  pollInterval,
		tokens:        tokens,
		client:        client,
	}
}

type submitRequest struct {
	ModelURI          string            `json:"modelUri"`
	GenerationOptions generationOptions `json:"generationOptions"`
	Messages          []promptMessage   `json:"messages"`
}

type generationOptions struct {
	Seed        uint64      `json:"seed"`
	AspectRatio aspectRatio `json:"aspectRatio"`
}

type aspectRatio struct {
	WidthRatio  int `json:"widthRatio"`
	HeightRatio int `json:"heightRatio"`
}

type promptMessage struct {
	Weight int    `json:"weight"`
	Text   string `json:"text"`
}

type jobDescriptor struct {
	ID string `json:"id"`
}

type operationStatus struct {
	Done     bool            `json:"done"`
	Error    *operationError `json:"error,omitempty"`
	Response *operationImage `json:"response,omitempty"`
}

type operationError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type operationImage struct {
	Image string `json:"image"`
}

// Seed derives a stable seed from the prompt so identical prompts are
// reproducible within the API's own seeding semantics.
func Seed(prompt string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(prompt))
	return h.Sum64() % 10000
}

// Generate submits an illustration job for the prompt and returns the path
// of a temp file holding the image bytes. The submission response is
// either raw image bytes (image content type) or a job descriptor that is
// polled until done, up to the attempt cap.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	token, err := g.tokens.Ensure(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to obtain image API token: %w", err)
	}

	payload, err := g.submit(ctx, token, prompt)
	if err != nil {
		return "", err
	}

	path, err := payload.Materialize(ctx, g.client)
	if err != nil {
		return "", err
	}

	log.Info().Str("path", path).Msg("Image artifact ready")
	return path, nil
}

func (g *Generator) submit(ctx context.Context, token, prompt string) (Payload, error) {
	body, err := json.Marshal(submitRequest{
		ModelURI: g.modelURI,
		GenerationOptions: generationOptions{
			Seed: Seed(prompt),
			AspectRatio: aspectRatio{
				WidthRatio:  g.aspectWidth,
				HeightRatio: g.aspectHeight,
			},
		},
		Messages: []promptMessage{{Weight: 1, Text: prompt}},
	})
	if err != nil {
		return Payload{}, fmt.Errorf("failed to marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.submitURL, bytes.NewReader(body))
	if err != nil {
		return Payload{}, fmt.Errorf("failed to create image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("image submission failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Payload{}, fmt.Errorf("image submission returned status %d: %s", resp.StatusCode, string(data))
	}

	// The service may answer synchronously with raw image bytes or with a
	// job descriptor to poll.
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "image/") {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return Payload{}, fmt.Errorf("failed to read image bytes: %w", err)
		}
		return RawPayload(data), nil
	}

	var job jobDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return Payload{}, fmt.Errorf("failed to decode job descriptor: %w", err)
	}
	if job.ID == "" {
		return Payload{}, fmt.Errorf("job descriptor has no id")
	}

	return g.poll(ctx, token, job.ID)
}

func (g *Generator) poll(ctx context.Context, token, jobID string) (Payload, error) {
	url := g.operationsURL + jobID

	for attempt := 1; attempt <= g.pollAttempts; attempt++ {
		status, err := g.pollOnce(ctx, token, url)
		if err != nil {
			// Transient poll failures are skipped, bounded by the attempt cap.
			log.Warn().Err(err).Str("job_id", jobID).Int("attempt", attempt).Msg("Image job poll failed")
		} else if status.Done {
			if status.Error != nil {
				return Payload{}, fmt.Errorf("image job failed: %s", status.Error.Message)
			}
			if status.Response == nil || status.Response.Image == "" {
				return Payload{}, fmt.Errorf("image job finished without a result")
			}
			return ClassifyPayload(status.Response.Image), nil
		}

		if attempt < g.pollAttempts {
			select {
			case <-ctx.Done():
				return Payload{}, ctx.Err()
			case <-time.After(g.pollInterval):
			}
		}
	}

	return Payload{}, fmt.Errorf("image job %s did not finish within %d attempts", jobID, g.pollAttempts)
}

func (g *Generator) pollOnce(ctx context.Context, token, url string) (*operationStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll returned status %d", resp.StatusCode)
	}

	var status operationStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode poll response: %w", err)
	}
	return &status, nil
}
