package notifications

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
)

// Sink receives intents on the consuming side. The actual transport (email,
// SMS, push) lives outside the core; the default sink just records delivery
// work for operators to see.
type Sink interface {
	Deliver(ctx context.Context, intent *Intent) error
}

// LogSink logs every intent. Used when no real delivery backend is wired.
type LogSink struct{}

func (LogSink) Deliver(ctx context.Context, intent *Intent) error {
	log.Printf("📧 Notification intent %s (%s) booking=%v event=%v waitlist=%v",
		intent.ID, intent.Type, intent.BookingID, intent.EventID, intent.WaitlistEntryID)
	return nil
}

// ConsumerConfig contains configuration for the Kafka intent dispatcher.
type ConsumerConfig struct {
	Brokers        []string
	GroupID        string
	Topics         []string
	SessionTimeout time.Duration
	Heartbeat      time.Duration
	OffsetOldest   bool
	MaxRetries     int
	RetryBackoff   time.Duration
}

// DefaultConsumerConfig returns a default consumer configuration.
func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:        []string{"localhost:9092"},
		GroupID:        "ticketly-notifications",
		Topics:         []string{"booking-notifications"},
		SessionTimeout: 30 * time.Second,
		Heartbeat:      3 * time.Second,
		OffsetOldest:   false,
		MaxRetries:     3,
		RetryBackoff:   time.Second,
	}
}

// Dispatcher consumes published intents and hands them to a Sink. Delivery
// is at-least-once: the sink must tolerate duplicates keyed by intent id.
type Dispatcher struct {
	consumerGroup sarama.ConsumerGroup
	config        *ConsumerConfig
	sink          Sink
	cancel        context.CancelFunc
}

// NewDispatcher creates a consumer-group dispatcher feeding the given sink.
func NewDispatcher(config *ConsumerConfig, sink Sink) (*Dispatcher, error) {
	if config == nil {
		config = DefaultConsumerConfig()
	}
	if sink == nil {
		sink = LogSink{}
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Session.Timeout = config.SessionTimeout
	saramaConfig.Consumer.Group.Heartbeat.Interval = config.Heartbeat
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second

	if config.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	consumerGroup, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Dispatcher{
		consumerGroup: consumerGroup,
		config:        config,
		sink:          sink,
	}, nil
}

// Start consumes until the context is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)

	go func() {
		for err := range d.consumerGroup.Errors() {
			log.Printf("Notification dispatcher error: %v", err)
		}
	}()

	log.Printf("📥 Notification dispatcher started, group %s", d.config.GroupID)

	for {
		// Consume blocks for one rebalance cycle; loop to rejoin after each
		if err := d.consumerGroup.Consume(ctx, d.config.Topics, &intentHandler{d: d}); err != nil {
			return fmt.Errorf("consumer group session failed: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Stop cancels the consuming session and closes the group.
func (d *Dispatcher) Stop() error {
	if d.cancel != nil {
		d.cancel()
	}
	if err := d.consumerGroup.Close(); err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	log.Printf("📥 Notification dispatcher stopped")
	return nil
}

// intentHandler implements sarama.ConsumerGroupHandler.
type intentHandler struct {
	d *Dispatcher
}

func (h *intentHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *intentHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *intentHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		intent, err := IntentFromJSON(message.Value)
		if err != nil {
			// A malformed message can never succeed; drop it rather than stall
			log.Printf("Dropping malformed intent at %s/%d@%d: %v",
				message.Topic, message.Partition, message.Offset, err)
			session.MarkMessage(message, "")
			continue
		}

		h.deliverWithRetry(session.Context(), intent)
		session.MarkMessage(message, "")
	}
	return nil
}

func (h *intentHandler) deliverWithRetry(ctx context.Context, intent *Intent) {
	var err error
	for attempt := 0; attempt <= h.d.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(h.d.config.RetryBackoff):
			}
		}
		if err = h.d.sink.Deliver(ctx, intent); err == nil {
			return
		}
	}
	log.Printf("Giving up on intent %s (%s) after %d attempts: %v",
		intent.ID, intent.Type, h.d.config.MaxRetries+1, err)
}
