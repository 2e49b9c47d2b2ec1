package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"zonewatch/internal/dto"
)

// Producer publishes alert events to a Kafka topic.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer creates a synchronous producer waiting for all in-sync replicas.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.ClientID = "zonewatch"
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 0 // one delivery attempt per event

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewProducerWithClient(producer, topic), nil
}

// NewProducerWithClient wraps an existing sarama producer.
func NewProducerWithClient(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: producer, topic: topic}
}

// Name identifies the channel in logs and metrics.
func (p *Producer) Name() string {
	return "kafka"
}

// Publish sends one event keyed by its alert id.
func (p *Producer) Publish(event dto.AlertEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.ID),
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send %s event: %w", event.Type, err)
	}
	return nil
}

func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
