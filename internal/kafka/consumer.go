package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
)

// WebhookHandler processes one queued gateway notification. A message whose
// handler keeps failing ends the claim unmarked, so the next session starts
// again at that offset.
type WebhookHandler func(ctx context.Context, msg *models.WebhookMessage) error

const (
	webhookRetries      = 3
	webhookRetryBackoff = 500 * time.Millisecond
)

type Consumer struct {
	consumer sarama.ConsumerGroup
	topics   []string
	log      *logger.Logger
}

func NewConsumer(brokers []string, groupID string, log *logger.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	log.LogKafka("CONNECTED", TopicWebhooks, fmt.Sprintf("Consumer group %s joined", groupID))
	return &Consumer{
		consumer: consumer,
		topics:   []string{TopicWebhooks},
		log:      log,
	}, nil
}

// ConsumeWebhooks blocks until ctx is cancelled.
func (c *Consumer) ConsumeWebhooks(ctx context.Context, handler WebhookHandler) error {
	h := &webhookConsumerHandler{
		handler: handler,
		retries: webhookRetries,
		backoff: webhookRetryBackoff,
		log:     c.log,
	}

	for {
		if err := c.consumer.Consume(ctx, c.topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error consuming messages: %v", err))
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	c.log.LogKafka("CLOSING", "consumer", "Closing Kafka consumer group")
	return c.consumer.Close()
}

type webhookConsumerHandler struct {
	handler WebhookHandler
	retries int
	backoff time.Duration
	log     *logger.Logger
}

func (h *webhookConsumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *webhookConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *webhookConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var msg models.WebhookMessage
		if err := json.Unmarshal(message.Value, &msg); err != nil {
			// Poison message: mark it so it does not block the partition.
			h.log.Error("KAFKA", fmt.Sprintf("Failed to unmarshal webhook at offset %d: %v", message.Offset, err))
			session.MarkMessage(message, "")
			continue
		}

		h.log.LogKafka("CONSUME", message.Topic, fmt.Sprintf("Webhook %s for reference %s", msg.Event, msg.Reference))

		if err := h.handle(session.Context(), &msg); err != nil {
			// Later offsets must not be marked past this one.
			h.log.Error("KAFKA", fmt.Sprintf("Giving up on webhook for %s at offset %d: %v", msg.Reference, message.Offset, err))
			return fmt.Errorf("webhook %s at offset %d: %w", msg.Reference, message.Offset, err)
		}

		session.MarkMessage(message, "")
	}

	return nil
}

// handle runs the handler, retrying with doubling backoff.
func (h *webhookConsumerHandler) handle(ctx context.Context, msg *models.WebhookMessage) error {
	backoff := h.backoff
	var err error
	for attempt := 0; ; attempt++ {
		if err = h.handler(ctx, msg); err == nil {
			return nil
		}
		if attempt >= h.retries {
			return err
		}
		h.log.Warn("KAFKA", fmt.Sprintf("Webhook for %s failed (attempt %d): %v", msg.Reference, attempt+1, err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
