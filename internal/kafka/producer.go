package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Producer wraps a Kafka producer
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Async:                  false,
	}

	log.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Msg("Kafka producer initialized")

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishStoryOp publishes a story operation message to Kafka
func (p *Producer) PublishStoryOp(ctx context.Context, storyID uuid.UUID, op, traceID string) error {
	msg := StoryMessage{
		StoryID: storyID,
		Op:      op,
		TraceID: traceID,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal story message: %w", err)
	}

	kafkaMsg := kafka.Message{
		Key:   []byte(storyID.String()),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, kafkaMsg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	log.Info().
		Str("story_id", storyID.String()).
		Str("op", op).
		Str("topic", p.topic).
		Msg("Story message published to Kafka")

	return nil
}

// PublishWebhook publishes a webhook event message to Kafka (webhooks topic)
func (p *Producer) PublishWebhook(ctx context.Context, storyID uuid.UUID, event, traceID string) error {
	msg := WebhookMessage{
		StoryID: storyID,
		Event:   event,
		TraceID: traceID,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook message: %w", err)
	}

	kafkaMsg := kafka.Message{
		Key:   []byte(storyID.String()),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, kafkaMsg); err != nil {
		return fmt.Errorf("failed to write webhook message to kafka: %w", err)
	}

	log.Info().
		Str("story_id", storyID.String()).
		Str("event", event).
		Str("topic", p.topic).
		Msg("Webhook event published to Kafka")

	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	log.Info().Msg("Closing Kafka producer")
	return p.writer.Close()
}
