package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

const headerEventKind = "event-kind"

// KafkaPublisher writes events to Kafka, one topic per kind. Messages are
// keyed by account id so all events for an account land on one partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topics   Topics
	logger   *slog.Logger
}

func NewKafkaPublisher(brokers []string, clientID string, topics Topics, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}

	config := sarama.NewConfig()
	config.Version = sarama.V3_0_0_0
	config.ClientID = clientID
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newKafkaPublisher(producer, topics, logger), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, topics Topics, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{producer: producer, topics: topics, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topic, ok := p.topics.For(ev.Kind)
	if !ok {
		return fmt.Errorf("no topic configured for event %q", ev.Kind)
	}
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Kind, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(ev.AccountID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerEventKind), Value: []byte(ev.Kind)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("send %s event: %w", ev.Kind, err)
	}

	p.logger.Debug("events: published",
		"kind", ev.Kind,
		"topic", topic,
		"account_id", ev.AccountID,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// LogPublisher only logs events. It stands in for Kafka in local
// development.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, ev Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Kind, err)
	}
	logger.InfoContext(ctx, "events: publish (log only)",
		"kind", ev.Kind,
		"account_id", ev.AccountID,
		"payload", string(data),
	)
	return nil
}
