package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lotward/auctioneer/internal/auction"
)

const notificationQueue = "auction_notifications"

// Consumer consumes notification intents relayed from the outbox and hands
// them to the notification sink
type Consumer struct {
	conn     *amqp.Connection
	notifier auction.Notifier
	exchange string
	logger   *slog.Logger
}

// NewConsumer creates a new notification consumer
func NewConsumer(conn *amqp.Connection, notifier auction.Notifier, exchange string, logger *slog.Logger) *Consumer {
	return &Consumer{
		conn:     conn,
		notifier: notifier,
		exchange: exchange,
		logger:   logger,
	}
}

// Run starts the consumer loop
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setupRabbitMQ(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(
		notificationQueue, // queue
		"",                // consumer tag
		false,             // auto-ack
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,               // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for notification intents...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var n auction.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		c.logger.Error("Failed to unmarshal notification", "routing_key", d.RoutingKey, "error", err)
		// Unparseable now means unparseable forever; drop it
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to Nack message", "error", nackErr)
		}
		return
	}

	if err := c.notifier.Notify(ctx, n); err != nil {
		c.logger.Error("Failed to deliver notification", "kind", n.Kind, "recipient", auction.MaskEmail(n.RecipientEmail), "error", err)
		// Requeue and retry; the sink may be back later
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to Nack message (requeue)", "error", nackErr)
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("Failed to Ack message", "error", ackErr)
	}
}

func (c *Consumer) setupRabbitMQ(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		c.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		notificationQueue, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // args
	)
	if err != nil {
		return err
	}

	return ch.QueueBind(
		q.Name,     // queue name
		"notify.*", // routing key
		c.exchange, // exchange
		false,
		nil,
	)
}
