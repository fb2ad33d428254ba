// Package webhook delivers story lifecycle events to collaborator-registered
// callback URLs, with signed payloads and background retries.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/night-tales/skazka/internal/config"
	"github.com/night-tales/skazka/internal/database"
	"github.com/night-tales/skazka/internal/models"
)

// DeliveryService handles webhook delivery with retries
type DeliveryService struct {
	db           *database.DB
	httpClient   *http.Client
	config       *config.Config
	storyRepo    *database.StoryRepository
	deliveryRepo *database.WebhookDeliveryRepository
	retryWorker  *RetryWorker
}

// NewDeliveryService creates a new webhook delivery service
func NewDeliveryService(db *database.DB, cfg *config.Config) *DeliveryService {
	service := &DeliveryService{
		db: db,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config:       cfg,
		storyRepo:    database.NewStoryRepository(db),
		deliveryRepo: database.NewWebhookDeliveryRepository(db),
	}

	service.retryWorker = NewRetryWorker(service, cfg)

	return service
}

// Start starts the background retry worker
func (s *DeliveryService) Start(ctx context.Context) {
	s.retryWorker.Start(ctx)
}

// Stop stops the background retry worker
func (s *DeliveryService) Stop() {
	s.retryWorker.Stop()
}

// WebhookPayload represents the webhook payload
type WebhookPayload struct {
	StoryID     uuid.UUID  `json:"story_id"`
	Event       string     `json:"event"`
	Status      string     `json:"status"`
	AudioStatus string     `json:"audio_status"`
	FinishedAt  time.Time  `json:"finished_at"`
	StoryText   *string    `json:"story_text,omitempty"`
	Error       *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo represents error information in the webhook
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DeliveryError wraps webhook delivery errors with HTTP status code
type DeliveryError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *DeliveryError) Error() string {
	return e.Message
}

// IsRetryable determines if an error should be retried
func (e *DeliveryError) IsRetryable() bool {
	if e.StatusCode >= 500 && e.StatusCode < 600 {
		return true
	}
	if e.StatusCode == 429 {
		return true
	}
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return false
	}
	// Network issues, timeouts, etc.
	return true
}

// DeliverWebhook delivers one event for a story. Makes one immediate
// attempt and schedules retries asynchronously if it fails.
func (s *DeliveryService) DeliverWebhook(ctx context.Context, storyID uuid.UUID, event string) error {
	story, err := s.storyRepo.GetByID(ctx, storyID)
	if err != nil {
		return fmt.Errorf("failed to get story: %w", err)
	}

	if story.WebhookURL == nil || *story.WebhookURL == "" {
		log.Debug().Str("story_id", storyID.String()).Msg("No webhook configured for story")
		return nil
	}

	payload := s.buildPayload(story, event)

	delivery := &models.WebhookDelivery{
		ID:        uuid.New(),
		StoryID:   story.ID,
		Event:     event,
		URL:       *story.WebhookURL,
		Status:    "pending",
		Attempts:  0,
		CreatedAt: time.Now(),
	}

	if err := s.deliveryRepo.Create(ctx, delivery); err != nil {
		log.Error().Err(err).Msg("Failed to create delivery record")
		// Continue with delivery attempt
	}

	delivery.Attempts = 1
	now := time.Now()
	delivery.LastAttemptAt = &now

	err = s.sendWebhook(ctx, *story.WebhookURL, payload, story.WebhookSecret)

	if err == nil {
		delivery.Status = "sent"
		if err := s.deliveryRepo.Update(ctx, delivery); err != nil {
			log.Error().Err(err).Msg("Failed to update delivery record")
		}

		log.Info().
			Str("story_id", story.ID.String()).
			Str("event", event).
			Str("url", *story.WebhookURL).
			Msg("Webhook delivered successfully on first attempt")

		return nil
	}

	errMsg := err.Error()
	delivery.LastError = &errMsg

	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) && !deliveryErr.IsRetryable() {
		delivery.Status = "failed"
		if err := s.deliveryRepo.Update(ctx, delivery); err != nil {
			log.Error().Err(err).Msg("Failed to update delivery record")
		}

		log.Error().
			Err(err).
			Str("story_id", story.ID.String()).
			Str("url", *story.WebhookURL).
			Int("status_code", deliveryErr.StatusCode).
			Msg("Webhook delivery failed with permanent error - not retrying")

		// Return nil to not block consumer - error is logged and recorded
		return nil
	}

	delivery.Status = "pending"
	if err := s.deliveryRepo.Update(ctx, delivery); err != nil {
		log.Error().Err(err).Msg("Failed to update delivery record")
	}

	log.Warn().
		Err(err).
		Str("story_id", story.ID.String()).
		Str("url", *story.WebhookURL).
		Msg("Webhook delivery failed on first attempt - scheduled for retry")

	// Retries are handled by the background worker.
	return nil
}

func (s *DeliveryService) buildPayload(story *models.Story, event string) WebhookPayload {
	finishedAt := time.Now()
	if story.FinishedAt != nil {
		finishedAt = *story.FinishedAt
	}

	payload := WebhookPayload{
		StoryID:     story.ID,
		Event:       event,
		Status:      story.Status,
		AudioStatus: story.AudioStatus,
		FinishedAt:  finishedAt,
		StoryText:   story.StoryText,
	}

	if story.ErrorCode != nil && story.ErrorMessage != nil {
		payload.Error = &ErrorInfo{
			Code:    *story.ErrorCode,
			Message: *story.ErrorMessage,
		}
	}
	return payload
}

// RetryWorker handles background retry of failed webhook deliveries
type RetryWorker struct {
	service  *DeliveryService
	config   *config.Config
	stopChan chan struct{}
	ticker   *time.Ticker
}

// NewRetryWorker creates a new retry worker
func NewRetryWorker(service *DeliveryService, cfg *config.Config) *RetryWorker {
	return &RetryWorker{
		service:  service,
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

// Start starts the retry worker
func (w *RetryWorker) Start(ctx context.Context) {
	// Check for pending deliveries every 10 seconds
	w.ticker = time.NewTicker(10 * time.Second)

	go func() {
		log.Info().Msg("Retry worker started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Retry worker context cancelled, stopping")
				return
			case <-w.stopChan:
				log.Info().Msg("Retry worker stopped")
				return
			case <-w.ticker.C:
				w.processPendingDeliveries(ctx)
			}
		}
	}()
}

// Stop stops the retry worker
func (w *RetryWorker) Stop() {
	if w.ticker != nil {
		w.ticker.Stop()
	}
	close(w.stopChan)
}

// processPendingDeliveries processes pending webhook deliveries
func (w *RetryWorker) processPendingDeliveries(ctx context.Context) {
	deliveries, err := w.service.deliveryRepo.GetPendingDeliveries(ctx, 100)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get pending deliveries")
		return
	}

	if len(deliveries) == 0 {
		return
	}

	log.Info().Int("count", len(deliveries)).Msg("Processing pending webhook deliveries")

	for _, delivery := range deliveries {
		// Honor the exponential backoff schedule.
		if !w.shouldRetry(delivery) {
			continue
		}

		story, err := w.service.storyRepo.GetByID(ctx, delivery.StoryID)
		if err != nil {
			log.Error().
				Err(err).
				Str("delivery_id", delivery.ID.String()).
				Str("story_id", delivery.StoryID.String()).
				Msg("Failed to get story for delivery")
			continue
		}

		payload := w.service.buildPayload(story, delivery.Event)
		w.retryDelivery(ctx, story, delivery, payload)
	}
}

// shouldRetry determines if a delivery should be retried based on exponential backoff
func (w *RetryWorker) shouldRetry(delivery *models.WebhookDelivery) bool {
	if delivery.Attempts >= w.config.WebhookMaxRetries {
		delivery.Status = "failed"
		ctx := context.Background()
		if err := w.service.deliveryRepo.Update(ctx, delivery); err != nil {
			log.Error().Err(err).Msg("Failed to update delivery status to failed")
		}

		log.Error().
			Str("delivery_id", delivery.ID.String()).
			Str("story_id", delivery.StoryID.String()).
			Int("attempts", delivery.Attempts).
			Msg("Webhook delivery failed permanently after max retries")

		return false
	}

	if delivery.LastAttemptAt == nil {
		return true // First retry
	}

	baseDelay := w.config.WebhookRetryBaseDelay
	maxDelay := w.config.WebhookRetryMaxDelay

	// backoff: baseDelay * 2^(attempt-1), the first attempt was immediate
	backoffDelay := baseDelay * time.Duration(1<<uint(delivery.Attempts-1))
	if backoffDelay > maxDelay {
		backoffDelay = maxDelay
	}

	nextRetryTime := delivery.LastAttemptAt.Add(backoffDelay)
	return time.Now().After(nextRetryTime)
}

// retryDelivery attempts to redeliver a webhook
func (w *RetryWorker) retryDelivery(ctx context.Context, story *models.Story, delivery *models.WebhookDelivery, payload WebhookPayload) {
	delivery.Attempts++
	now := time.Now()
	delivery.LastAttemptAt = &now

	err := w.service.sendWebhook(ctx, delivery.URL, payload, story.WebhookSecret)

	if err == nil {
		delivery.Status = "sent"
		if err := w.service.deliveryRepo.Update(ctx, delivery); err != nil {
			log.Error().Err(err).Msg("Failed to update delivery record")
		}

		log.Info().
			Str("story_id", story.ID.String()).
			Str("url", delivery.URL).
			Int("attempts", delivery.Attempts).
			Msg("Webhook delivered successfully after retry")

		return
	}

	errMsg := err.Error()
	delivery.LastError = &errMsg

	log.Warn().
		Err(err).
		Str("story_id", story.ID.String()).
		Str("url", delivery.URL).
		Int("attempt", delivery.Attempts).
		Int("max_retries", w.config.WebhookMaxRetries).
		Msg("Webhook retry failed")

	var deliveryErr *DeliveryError
	if errors.As(err, &deliveryErr) && !deliveryErr.IsRetryable() {
		delivery.Status = "failed"
		log.Error().
			Err(err).
			Str("story_id", story.ID.String()).
			Str("url", delivery.URL).
			Int("status_code", deliveryErr.StatusCode).
			Msg("Webhook delivery failed with permanent error - not retrying")
	}

	if err := w.service.deliveryRepo.Update(ctx, delivery); err != nil {
		log.Error().Err(err).Msg("Failed to update delivery record")
	}
}

// sendWebhook sends the webhook HTTP request
func (s *DeliveryService) sendWebhook(ctx context.Context, url string, payload WebhookPayload, secret *string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Skazka-Webhook/1.0")
	req.Header.Set("X-Skazka-Timestamp", fmt.Sprintf("%d", time.Now().Unix()))

	if secret != nil && *secret != "" {
		signature := generateSignature(body, *secret)
		req.Header.Set("X-Skazka-Signature", signature)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Network error - retryable
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("webhook returned status %d", resp.StatusCode),
			Body:       string(respBody),
		}
	}

	return nil
}

// generateSignature generates HMAC-SHA256 signature for the payload
func generateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
