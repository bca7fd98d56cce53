package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivery. It must contain its own failures; the
// consume loop acknowledges the message once the handler returns.
type Handler func(ctx context.Context, body []byte, routingKey string)

// Client wraps an AMQP connection with the topic-exchange topology this
// service consumes from.
type Client struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func Connect(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	return &Client{conn: conn, ch: ch}, nil
}

// DeclareTopology declares the durable topic exchange and queue and binds
// them with the configured routing key pattern.
func (c *Client) DeclareTopology(exchange, queue, bindingKey string) error {
	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	q, err := c.ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := c.ch.QueueBind(q.Name, bindingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", q.Name, exchange, err)
	}
	c.queue = q.Name
	slog.Info("broker topology declared", "exchange", exchange, "queue", q.Name, "binding_key", bindingKey)
	return nil
}

// Consume starts a single consumer goroutine. Each delivery runs the handler
// to completion and is then acknowledged; delivery order from the broker is
// preserved into handler invocation order. Backpressure is the broker's
// prefetch, not ours. The loop stops when ctx is canceled or the channel
// closes.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	tag := "telemetry-service-" + uuid.NewString()[:8]
	deliveries, err := c.ch.Consume(c.queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					slog.Warn("delivery channel closed")
					return
				}
				handler(ctx, d.Body, d.RoutingKey)
				if err := d.Ack(false); err != nil {
					slog.Warn("ack failed", "routing_key", d.RoutingKey, "error", err)
				}
			}
		}
	}()
	slog.Info("consuming", "queue", c.queue, "consumer_tag", tag)
	return nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
