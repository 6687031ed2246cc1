package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"event-ticketing/internal/logger"
	"event-ticketing/internal/models"
)

const (
	TopicTicketEvents   = "ticket-events"
	TopicPaymentEvents  = "payment-events"
	TopicRefundRequired = "payment-refund-required"
	TopicWalletEvents   = "wallet-events"
	TopicCatalogEvents  = "catalog-events"
	TopicWebhooks       = "payment-webhooks"
)

type Producer struct {
	producer sarama.SyncProducer
	mockMode bool
	log      *logger.Logger
}

func NewProducer(brokers []string, mockMode bool, log *logger.Logger) (*Producer, error) {
	if mockMode {
		log.LogKafka("MOCK_MODE", "producer", "Running in mock mode - no actual Kafka connection")
		return &Producer{mockMode: true, log: log}, nil
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	log.LogKafka("CONNECTED", "producer", fmt.Sprintf("Connected to Kafka brokers: %v", brokers))
	return &Producer{producer: producer, log: log}, nil
}

// NewProducerWithClient wraps an existing sync producer, e.g. a sarama mock.
func NewProducerWithClient(producer sarama.SyncProducer, log *logger.Logger) *Producer {
	return &Producer{producer: producer, log: log}
}

func (p *Producer) MockMode() bool { return p.mockMode }

// Publish sends a domain event keyed by its entity ID, so all events of one
// ticket or wallet land on the same partition.
func (p *Producer) Publish(event *models.DomainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.send(topicForEvent(event.Type), event.EntityID, data, event.Type)
}

// EnqueueWebhook hands a verified gateway notification to the webhook consumer.
func (p *Producer) EnqueueWebhook(msg *models.WebhookMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook: %w", err)
	}
	return p.send(TopicWebhooks, msg.Reference, data, msg.Event)
}

func (p *Producer) send(topic, key string, data []byte, label string) error {
	if p.mockMode {
		p.log.LogKafka("MOCK_PUBLISH", topic, fmt.Sprintf("Mock publishing %s for %s", label, key))
		p.log.LogKafka("MOCK_DATA", topic, string(data))
		return nil
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.log.Error("KAFKA", fmt.Sprintf("Failed to send message to topic %s: %v", topic, err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.log.LogKafka("PUBLISHED", topic, fmt.Sprintf("%s for %s sent to partition %d at offset %d", label, key, partition, offset))
	return nil
}

func topicForEvent(eventType string) string {
	switch eventType {
	case models.EventTicketIssued, models.EventTicketCheckedIn, models.EventCheckInRevoked:
		return TopicTicketEvents
	case models.EventPaymentNeedsRefund:
		return TopicRefundRequired
	case models.EventWalletWithdrawn:
		return TopicWalletEvents
	case models.EventEventCreated, models.EventTicketTypeChanged:
		return TopicCatalogEvents
	default:
		return TopicPaymentEvents
	}
}

func (p *Producer) Close() error {
	if p.mockMode {
		p.log.LogKafka("MOCK_CLOSE", "producer", "Mock producer closed")
		return nil
	}

	if p.producer != nil {
		p.log.LogKafka("CLOSING", "producer", "Closing Kafka producer connection")
		return p.producer.Close()
	}
	return nil
}
