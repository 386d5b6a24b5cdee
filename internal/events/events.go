package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/ponyclubacheron/site-service/internal/models"
	"github.com/ponyclubacheron/site-service/internal/observability"
)

// SnapshotEvent announces a freshly fetched weather snapshot.
type SnapshotEvent struct {
	Location  models.Location        `json:"location"`
	Snapshot  models.WeatherSnapshot `json:"snapshot"`
	FetchedAt time.Time              `json:"fetchedAt"`
	ExpiresAt time.Time              `json:"expiresAt"`
}

// Publisher delivers snapshot events. Publish must not block on the broker.
type Publisher interface {
	Publish(ctx context.Context, ev SnapshotEvent)
	Flush(ctx context.Context) error
	Close()
}

// NopPublisher discards events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, ev SnapshotEvent) {}
func (NopPublisher) Flush(ctx context.Context) error               { return nil }
func (NopPublisher) Close()                                        {}

// producer is the subset of *kgo.Client the publisher uses.
type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// KafkaPublisher produces snapshot events to a Kafka topic, keyed by location.
type KafkaPublisher struct {
	client producer
	topic  string
	logger *zap.Logger
}

// NewKafkaPublisher connects a franz-go producer to brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}
	return newKafkaPublisher(client, topic, logger), nil
}

func newKafkaPublisher(client producer, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{client: client, topic: topic, logger: logger}
}

// Publish encodes ev and hands it to the producer. Delivery results are logged and counted.
// The request context's cancellation is detached so a finished response does not abort delivery.
func (p *KafkaPublisher) Publish(ctx context.Context, ev SnapshotEvent) {
	value, err := json.Marshal(ev)
	if err != nil {
		observability.EventsPublishedTotal.WithLabelValues("error").Inc()
		p.logger.Error("encode snapshot event", zap.Error(err))
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.Location.CacheKey()),
		Value: value,
	}
	logger := observability.LoggerFromContext(ctx, p.logger)
	p.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			observability.EventsPublishedTotal.WithLabelValues("error").Inc()
			logger.Warn("snapshot event not delivered", zap.String("topic", r.Topic), zap.Error(err))
			return
		}
		observability.EventsPublishedTotal.WithLabelValues("success").Inc()
	})
}

// Flush waits for buffered events to be delivered or ctx to end.
func (p *KafkaPublisher) Flush(ctx context.Context) error {
	return p.client.Flush(ctx)
}

// Close releases the producer. Call Flush first to avoid dropping events.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
