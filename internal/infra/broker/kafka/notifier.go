package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/Bonshal/swapspot/internal/domain/messaging"
)

// messageSentTopic carries one event per delivered message, keyed by
// conversation so a thread's events stay ordered within a partition.
const messageSentTopic = "messages.sent"

func topicFor(prefix string) string {
	return prefix + messageSentTopic
}

// MessageNotifier publishes message-sent events so interested consumers
// (e.g. the badge consumer) can react without the store waiting on them. The
// store treats a failed publish as log-and-continue; polling stays the source
// of truth for unread state.
type MessageNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

func NewMessageNotifier(brokers []string, topicPrefix string) (*MessageNotifier, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Retry.Max = 5
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Return.Successes = true
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &MessageNotifier{producer: producer, topic: topicFor(topicPrefix)}, nil
}

type messageSentEvent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
	CreatedAt      int64  `json:"created_at"`
	ListingID      string `json:"listing_id,omitempty"`
}

func (n *MessageNotifier) MessageSent(ctx context.Context, message messaging.Message) error {
	payload, err := json.Marshal(messageSentEvent{
		MessageID:      message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		ReceiverID:     message.ReceiverID,
		CreatedAt:      message.CreatedAt.UnixMilli(),
		ListingID:      message.ListingID,
	})
	if err != nil {
		return fmt.Errorf("encode message event: %w", err)
	}
	_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(message.ConversationID),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func (n *MessageNotifier) Close() error {
	if n.producer == nil {
		return nil
	}
	return n.producer.Close()
}
