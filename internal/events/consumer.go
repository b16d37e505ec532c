package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// BindingKey matches every record event.
const BindingKey = "record.*"

// Handler processes one decoded record message.
type Handler func(ctx context.Context, msg *RecordMessage) error

// Consumer reads record events from a durable queue bound to the exchange.
type Consumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	log     zerolog.Logger
}

// DialConsumer connects, declares the topic exchange and queue, and binds them.
func DialConsumer(url, exchange, queue string, log zerolog.Logger) (*Consumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("DialConsumer: dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("DialConsumer: open channel: %w", err)
	}

	c := &Consumer{conn: conn, channel: ch, queue: queue, log: log}
	if err := c.setup(exchange); err != nil {
		c.Close()
		return nil, fmt.Errorf("DialConsumer: %w", err)
	}

	log.Info().Str("exchange", exchange).Str("queue", queue).Msg("Connected to AMQP broker")
	return c, nil
}

func (c *Consumer) setup(exchange string) error {
	err := c.channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := c.channel.QueueBind(c.queue, BindingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Consume delivers messages to handler until ctx is done or the channel closes.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer
		false,   // auto-ack (we want manual ack)
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("Consume: start consuming: %w", err)
	}

	c.log.Info().Str("queue", c.queue).Msg("Started consuming record events")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Err(ctx.Err()).Msg("Stopping message consumption")
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("Consume: message channel closed")
			}
			handleDelivery(ctx, d, handler, c.log)
		}
	}
}

// handleDelivery acks processed messages, drops undecodable ones, and requeues
// messages whose handler failed.
func handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler, log zerolog.Logger) {
	msg, err := RecordMessageFromJSON(d.Body)
	if err != nil {
		log.Error().Err(err).Str("routing_key", d.RoutingKey).Msg("Failed to unmarshal message")
		d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		log.Error().Err(err).Str("event", msg.Event).Str("record_id", msg.RecordID).Msg("Failed to handle message")
		d.Nack(false, true)
		return
	}

	d.Ack(false)
	log.Debug().Str("event", msg.Event).Str("record_id", msg.RecordID).Msg("Processed record event")
}

// Close closes the channel and connection.
func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
