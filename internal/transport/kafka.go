package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/espressojuice/dealereye/internal/metrics"
	"github.com/espressojuice/dealereye/internal/models"
	"github.com/espressojuice/dealereye/internal/utils"
)

// KafkaConfig carries the broker settings for both ends of the topic.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Group    string
	ClientID string
}

// KafkaPublisher produces encoded domain events to a Kafka topic, keyed by
// site so all events for one site land on one partition in order.
type KafkaPublisher struct {
	logger *slog.Logger
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects a producer-only client to the brokers.
func NewKafkaPublisher(logger *slog.Logger, cfg KafkaConfig) (*KafkaPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, utils.NewAppError("transport.NewKafkaPublisher", "connect to brokers", err)
	}
	return &KafkaPublisher{logger: logger, client: client, topic: cfg.Topic}, nil
}

// Publish encodes the event and produces it asynchronously. Delivery failures
// are counted and logged from the produce callback; the camera pipeline never
// waits on the broker.
func (p *KafkaPublisher) Publish(ctx context.Context, ev models.Event) error {
	payload, err := models.EncodeEvent(ev)
	if err != nil {
		return utils.NewAppError("transport.KafkaPublisher.Publish", "encode event", err)
	}

	meta := ev.Meta()
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(meta.SiteID.String()),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			metrics.IncPublishFailure()
			p.logger.Error("event publish failed",
				slog.String("event_id", meta.EventID.String()),
				slog.String("event_type", string(meta.EventType)),
				slog.Any("error", err))
		}
	})
	return nil
}

// Close flushes outstanding records and releases the client.
func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}

// KafkaSubscriber consumes the event topic as part of a consumer group and
// hands decoded events to a Handler.
type KafkaSubscriber struct {
	logger  *slog.Logger
	client  *kgo.Client
	handler Handler
}

// NewKafkaSubscriber joins the consumer group on the event topic.
func NewKafkaSubscriber(logger *slog.Logger, cfg KafkaConfig, handler Handler) (*KafkaSubscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
	)
	if err != nil {
		return nil, utils.NewAppError("transport.NewKafkaSubscriber", "connect to brokers", err)
	}
	return &KafkaSubscriber{logger: logger, client: client, handler: handler}, nil
}

// Run polls the topic until the context is cancelled or the client closes.
// Undecodable records are counted and skipped; they never stall the partition.
func (s *KafkaSubscriber) Run(ctx context.Context) error {
	for {
		fetches := s.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			s.logger.Error("fetch error",
				slog.String("topic", topic),
				slog.Int("partition", int(partition)),
				slog.Any("error", err))
		})
		fetches.EachRecord(func(record *kgo.Record) {
			ev, err := models.DecodeEvent(record.Value)
			if err != nil {
				metrics.IncMalformedEvent()
				s.logger.Warn("skipping undecodable record",
					slog.String("topic", record.Topic),
					slog.Any("error", err))
				return
			}
			if err := s.handler.Handle(ctx, ev); err != nil {
				s.logger.Error("event handling failed",
					slog.String("event_id", ev.Meta().EventID.String()),
					slog.Any("error", err))
			}
		})
	}
}

// Close leaves the group and releases the client.
func (s *KafkaSubscriber) Close() {
	s.client.Close()
}
