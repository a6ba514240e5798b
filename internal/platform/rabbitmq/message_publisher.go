package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"workdocs-ai/internal/model"
)

type MessagePublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewMessagePublisher(conn *amqp.Connection, queueName string) *MessagePublisher {
	return &MessagePublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *MessagePublisher) Publish(ctx context.Context, msg model.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message payload failed: %w", err)
	}
	return publish(ctx, p.conn, p.queueName, payload)
}

// publish opens a short-lived channel, declares the durable queue, and
// pushes one persistent JSON payload.
func publish(ctx context.Context, conn *amqp.Connection, queueName string, payload []byte) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish message failed: %w", err)
	}
	return nil
}
