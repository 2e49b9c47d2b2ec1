package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"zonewatch/internal/dto"
)

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher sends alert events to a NATS subject.
type Publisher struct {
	conn    Conn
	subject string
}

// Connect dials the NATS server at url.
func Connect(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("zonewatch"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewPublisher(conn, subject), nil
}

func NewPublisher(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// Name identifies the channel in logs and metrics.
func (p *Publisher) Name() string {
	return "nats"
}

// Publish sends one event; per-type subjects are "<subject>.<type>".
func (p *Publisher) Publish(event dto.AlertEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	if err := p.conn.Publish(p.subject+"."+event.Type, data); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
