package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// New dials the broker and proves it is usable by opening and closing a
// channel. Publishers and workers open their own channels off the
// shared connection.
func New(ctx context.Context, url string) (*amqp.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	if err := ch.Close(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("close rabbitmq check channel failed: %w", err)
	}
	return conn, nil
}
