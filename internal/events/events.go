// Package events publishes ledger changes to an AMQP exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// publishTimeout bounds a single publish so a slow broker never stalls a mutation.
const publishTimeout = 5 * time.Second

// RecordMessage is the body of a record.* message.
type RecordMessage struct {
	Event     string        `json:"event"`
	RecordID  string        `json:"record_id"`
	Record    ledger.Record `json:"record"`
	Timestamp time.Time     `json:"timestamp"`
}

// RoutingKey returns the routing key for a change, e.g. "record.added".
func RoutingKey(t ledger.ChangeType) string {
	return "record." + string(t)
}

// NewRecordMessage builds the message for change.
func NewRecordMessage(change ledger.Change) *RecordMessage {
	return &RecordMessage{
		Event:     RoutingKey(change.Type),
		RecordID:  change.Record.ID,
		Record:    change.Record,
		Timestamp: change.At,
	}
}

// ToJSON converts the message to JSON bytes.
func (m *RecordMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordMessageFromJSON decodes a message body.
func RecordMessageFromJSON(data []byte) (*RecordMessage, error) {
	var msg RecordMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Channel is the part of *amqp091.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher sends a message for every committed store change. It implements
// ledger.Observer; publish failures are logged and never fail the mutation.
type Publisher struct {
	conn     *amqp091.Connection
	channel  Channel
	exchange string
	log      zerolog.Logger
}

// Dial connects to the broker and declares a durable topic exchange.
func Dial(url, exchange string, log zerolog.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("Dial: dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("Dial: open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("Dial: declare exchange %s: %w", exchange, err)
	}

	log.Info().Str("exchange", exchange).Msg("Connected to AMQP broker")

	p := NewPublisher(ch, exchange, log)
	p.conn = conn
	return p, nil
}

// NewPublisher wraps an open channel.
func NewPublisher(ch Channel, exchange string, log zerolog.Logger) *Publisher {
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		log:      log,
	}
}

// Publish sends one change.
func (p *Publisher) Publish(ctx context.Context, change ledger.Change) error {
	msg := NewRecordMessage(change)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("Publish: marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		msg.Event,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    fmt.Sprintf("%s:%s:%d", msg.Event, msg.RecordID, msg.Timestamp.UnixNano()),
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("Publish: %s %s: %w", msg.Event, msg.RecordID, err)
	}
	return nil
}

// RecordChanged implements ledger.Observer.
func (p *Publisher) RecordChanged(ctx context.Context, change ledger.Change) {
	if err := p.Publish(ctx, change); err != nil {
		p.log.Error().Err(err).Str("record_id", change.Record.ID).Msg("Failed to publish record event")
		return
	}
	p.log.Debug().Str("record_id", change.Record.ID).Str("event", RoutingKey(change.Type)).Msg("Record event published")
}

// Close closes the channel and connection opened by Dial.
func (p *Publisher) Close() error {
	if c, ok := p.channel.(*amqp091.Channel); ok && c != nil {
		c.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

var _ ledger.Observer = (*Publisher)(nil)
