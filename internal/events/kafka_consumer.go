package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

const consumeRetryDelay = time.Second

// KafkaConsumer feeds inbound topics to a Dispatcher through a consumer
// group. Offsets are marked only after a message was handled or dropped as
// permanently undeliverable.
type KafkaConsumer struct {
	group      sarama.ConsumerGroup
	topics     []string
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewKafkaConsumer(brokers []string, clientID, groupID string, d *Dispatcher, logger *slog.Logger) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}

	config := sarama.NewConfig()
	config.Version = sarama.V3_0_0_0
	config.ClientID = clientID
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Group.Session.Timeout = 20 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 6 * time.Second
	config.Consumer.MaxProcessingTime = 30 * time.Second

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaConsumer{
		group:      group,
		topics:     d.InboundTopics(),
		dispatcher: d,
		logger:     logger,
	}, nil
}

// Run consumes until ctx is cancelled. A failed session is restarted after
// a short delay; unmarked messages are then delivered again.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	handler := &groupHandler{dispatcher: c.dispatcher, logger: c.logger}
	for {
		err := c.group.Consume(ctx, c.topics, handler)
		if ctx.Err() != nil {
			c.logger.Info("events: consumer stopped")
			return nil
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if err != nil {
			c.logger.Error("events: consume failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(consumeRetryDelay):
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func (h *groupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("events: consumer session started", "member_id", session.MemberID(), "claims", session.Claims())
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("events: consumer session ended")
	return nil
}

// ConsumeClaim stops at the first retryable failure. Returning the error
// ends the session without marking the message.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.dispatcher.Dispatch(ctx, msg.Topic, msg.Value); err != nil {
				h.logger.Error("events: handle message failed",
					"topic", msg.Topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"err", err,
				)
				return fmt.Errorf("handle %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
			}
			session.MarkMessage(msg, "")
		}
	}
}
