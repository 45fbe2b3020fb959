package events

import (
	"context"

	"redteam/internal/adapters/kafka"
	"redteam/pkg/logger"
)

// Publisher delivers domain events. Implementations never fail the caller:
// delivery problems are logged and dropped.
type Publisher interface {
	PublishAnalysisCompleted(ctx context.Context, event AnalysisCompleted)
	PublishSynthesisCompleted(ctx context.Context, event SynthesisCompleted)
}

// producer is the subset of kafka.Producer the publisher needs.
type producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

var _ producer = (*kafka.Producer)(nil)

// KafkaPublisher publishes events as JSON, keyed by run id.
type KafkaPublisher struct {
	producer producer
	prefix   string
	log      *logger.Logger
}

// NewKafkaPublisher creates a publisher writing to "<prefix>.<event type>" topics.
func NewKafkaPublisher(p *kafka.Producer, topicPrefix string) *KafkaPublisher {
	return newKafkaPublisher(p, topicPrefix)
}

func newKafkaPublisher(p producer, topicPrefix string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: p,
		prefix:   topicPrefix,
		log:      logger.Get().Component("event_publisher"),
	}
}

func (p *KafkaPublisher) PublishAnalysisCompleted(ctx context.Context, event AnalysisCompleted) {
	p.publish(ctx, kafka.TopicAnalysisCompleted, event.RunID, event)
}

func (p *KafkaPublisher) PublishSynthesisCompleted(ctx context.Context, event SynthesisCompleted) {
	p.publish(ctx, kafka.TopicSynthesisCompleted, event.RunID, event)
}

func (p *KafkaPublisher) publish(ctx context.Context, name, key string, event interface{}) {
	topic := kafka.Topic(p.prefix, name)
	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Warnw("Failed to publish event", "topic", topic, "run_id", key, "error", err)
	}
}

// NopPublisher discards events. Used when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishAnalysisCompleted(context.Context, AnalysisCompleted)   {}
func (NopPublisher) PublishSynthesisCompleted(context.Context, SynthesisCompleted) {}
