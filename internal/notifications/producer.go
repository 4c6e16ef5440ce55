package notifications

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Publisher is the outbound side of the notification pipeline. Implementations
// must never block a booking commit on delivery outcome; callers invoke
// Publish after their transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, intent *Intent) error
}

// NopPublisher swallows intents. Used when Kafka is disabled and in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, intent *Intent) error { return nil }

// KafkaProducerConfig contains configuration for the Kafka intent producer.
type KafkaProducerConfig struct {
	Brokers          []string
	IntentTopic      string
	DeadLetterTopic  string
	RetryMax         int
	Timeout          time.Duration
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// DefaultKafkaProducerConfig returns a default producer configuration.
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		IntentTopic:      "booking-notifications",
		DeadLetterTopic:  "booking-notifications-dlq",
		RetryMax:         3,
		Timeout:          10 * time.Second,
		RequiredAcks:     sarama.WaitForAll, // wait for all in-sync replicas
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000, // 1MB
	}
}

// KafkaPublisher publishes notification intents to Kafka.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	config   *KafkaProducerConfig
}

// NewKafkaPublisher creates a Kafka-backed intent publisher.
func NewKafkaPublisher(config *KafkaProducerConfig) (*KafkaPublisher, error) {
	if config == nil {
		config = DefaultKafkaProducerConfig()
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = config.Timeout
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes

	// Idempotent writes require a single in-flight request
	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner keeps intents for the same aggregate in order
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	log.Printf("📤 Kafka intent publisher created")
	return &KafkaPublisher{producer: producer, config: config}, nil
}

// Publish sends a single intent. Errors are returned to the caller, which
// logs and moves on: delivery is at-least-once downstream, and a commit must
// never be rolled back because an intent could not be queued.
func (p *KafkaPublisher) Publish(ctx context.Context, intent *Intent) error {
	messageBytes, err := intent.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.config.IntentTopic,
		Key:       sarama.StringEncoder(intent.PartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   p.createHeaders(intent),
		Timestamp: intent.CreatedAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send intent to Kafka: %w", err)
	}

	log.Printf("📤 Intent published - Topic: %s, Partition: %d, Offset: %d, Type: %s",
		p.config.IntentTopic, partition, offset, intent.Type)

	return nil
}

// createHeaders creates Kafka headers for intents.
func (p *KafkaPublisher) createHeaders(intent *Intent) []sarama.RecordHeader {
	headers := []sarama.RecordHeader{
		{Key: []byte("intent_id"), Value: []byte(intent.ID.String())},
		{Key: []byte("intent_type"), Value: []byte(intent.Type)},
		{Key: []byte("priority"), Value: []byte(intent.Priority)},
		{Key: []byte("producer"), Value: []byte("ticketly-engine")},
		{Key: []byte("created_at"), Value: []byte(intent.CreatedAt.Format(time.RFC3339))},
	}

	if intent.EventID != nil {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("event_id"),
			Value: []byte(intent.EventID.String()),
		})
	}

	if intent.BookingID != nil {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("booking_id"),
			Value: []byte(intent.BookingID.String()),
		})
	}

	if intent.WaitlistEntryID != nil {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("waitlist_entry_id"),
			Value: []byte(intent.WaitlistEntryID.String()),
		})
	}

	if intent.Deadline != nil {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte("deadline"),
			Value: []byte(intent.Deadline.Format(time.RFC3339)),
		})
	}

	return headers
}

// Close closes the Kafka producer.
func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka producer: %w", err)
		}
		log.Printf("📤 Kafka intent publisher closed")
	}
	return nil
}

// HealthCheck validates the producer configuration and marshaling path.
func (p *KafkaPublisher) HealthCheck(ctx context.Context) error {
	if p.producer == nil {
		return fmt.Errorf("health check failed - producer is nil")
	}
	if p.config.IntentTopic == "" {
		return fmt.Errorf("health check failed - intent topic not configured")
	}

	probe := EventUpdate(uuid.Nil, "health check")
	if _, err := probe.ToJSON(); err != nil {
		return fmt.Errorf("health check failed - JSON marshaling error: %w", err)
	}

	return nil
}
