package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// IndexJob asks the index worker to push one document into the vector
// index. The worker re-reads everything else from the document row.
type IndexJob struct {
	DocumentID uint `json:"document_id"`
}

type IndexJobPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewIndexJobPublisher(conn *amqp.Connection, queueName string) *IndexJobPublisher {
	return &IndexJobPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *IndexJobPublisher) PublishIndexJob(ctx context.Context, documentID uint) error {
	payload, err := json.Marshal(IndexJob{DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("marshal index job failed: %w", err)
	}
	return publish(ctx, p.conn, p.queueName, payload)
}
