package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"
)

const badgeConsumerGroup = "swapspot-badge"

// BadgeConsumer follows the message-sent topic and nudges the receiver's
// unread refresh ahead of the next poll tick. Polling remains the source of
// truth; this only shortens the window between delivery and badge update, so
// events that fail to decode are skipped rather than retried.
type BadgeConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	refresh func(ctx context.Context, viewerID string)
	logger  *slog.Logger
}

func NewBadgeConsumer(brokers []string, topicPrefix string, refresh func(ctx context.Context, viewerID string), logger *slog.Logger) (*BadgeConsumer, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	group, err := sarama.NewConsumerGroup(brokers, badgeConsumerGroup, cfg)
	if err != nil {
		return nil, err
	}
	return &BadgeConsumer{
		group:   group,
		topic:   topicFor(topicPrefix),
		refresh: refresh,
		logger:  logger,
	}, nil
}

// Run blocks consuming the topic until ctx is cancelled, rejoining the group
// across rebalances.
func (c *BadgeConsumer) Run(ctx context.Context) error {
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, badgeGroupHandler{consumer: c}); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *BadgeConsumer) Close() error {
	return c.group.Close()
}

func (c *BadgeConsumer) handleEvent(ctx context.Context, value []byte) {
	var event messageSentEvent
	if err := json.Unmarshal(value, &event); err != nil {
		if c.logger != nil {
			c.logger.Debug("skipping undecodable message event", "error", err)
		}
		return
	}
	if event.ReceiverID == "" || c.refresh == nil {
		return
	}
	c.refresh(ctx, event.ReceiverID)
}

type badgeGroupHandler struct {
	consumer *BadgeConsumer
}

func (h badgeGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h badgeGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h badgeGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.consumer.handleEvent(sess.Context(), message.Value)
		sess.MarkMessage(message, "")
	}
	return nil
}

var _ sarama.ConsumerGroupHandler = badgeGroupHandler{}
