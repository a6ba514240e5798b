package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"workdocs-ai/internal/model"
	"workdocs-ai/internal/platform/gcs"
	"workdocs-ai/internal/platform/rabbitmq"
	"workdocs-ai/internal/repository"
	"workdocs-ai/internal/vectorindex"
)

// IndexWorker drains the document-index queue: it loads the document
// row, resolves the target index, pulls the bytes back from storage,
// and attaches the file with its owner attributes. Documents bound to a
// session get that session's lazily created index.
type IndexWorker struct {
	conn          *amqp.Connection
	docs          *repository.DocumentRepository
	sessions      *repository.SessionRepository
	blobs         *gcs.Client
	index         *vectorindex.Client
	queueName     string
	myDocsIndexID string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIndexWorker(
	conn *amqp.Connection,
	docs *repository.DocumentRepository,
	sessions *repository.SessionRepository,
	blobs *gcs.Client,
	index *vectorindex.Client,
	queueName string,
	myDocsIndexID string,
) *IndexWorker {
	return &IndexWorker{
		conn:          conn,
		docs:          docs,
		sessions:      sessions,
		blobs:         blobs,
		index:         index,
		queueName:     queueName,
		myDocsIndexID: myDocsIndexID,
	}
}

func (w *IndexWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	deliveries, ch, err := consume(w.conn, w.queueName)
	if err != nil {
		cancel()
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *IndexWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *IndexWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job rabbitmq.IndexJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Printf("index worker decode job failed: %v", err)
		_ = d.Nack(false, false)
		return
	}

	doc, err := w.docs.GetByID(job.DocumentID)
	if err != nil {
		log.Printf("index worker load document %d failed: %v", job.DocumentID, err)
		_ = d.Nack(false, true)
		return
	}
	if doc == nil {
		// Deleted between upload and indexing; nothing left to do.
		_ = d.Ack(false)
		return
	}
	if doc.Indexed() {
		_ = d.Ack(false)
		return
	}

	if err := w.indexDocument(ctx, doc); err != nil {
		log.Printf("index worker document %d failed: %v", doc.ID, err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (w *IndexWorker) indexDocument(ctx context.Context, doc *model.Document) error {
	indexID, err := w.resolveIndexID(ctx, doc)
	if err != nil {
		return err
	}

	data, err := w.blobs.Get(ctx, doc.StoragePath)
	if err != nil {
		return fmt.Errorf("fetch document bytes failed: %w", err)
	}

	attributes := map[string]string{
		"owner_id": strconv.FormatUint(uint64(doc.UserID), 10),
		"doc_type": doc.DocType,
	}
	if !doc.IsPersistent() {
		attributes["session_id"] = strconv.FormatUint(uint64(doc.SessionID), 10)
	}

	result, err := w.index.Upload(ctx, data, doc.FileName, doc.MimeType, indexID, attributes)
	if err != nil {
		return err
	}

	if err := w.docs.SetIndexRefs(doc.ID, result.FileID, result.IndexFileID, doc.IndexTag); err != nil {
		return fmt.Errorf("record index refs failed: %w", err)
	}
	return nil
}

// resolveIndexID maps a document to the index it belongs in. Persistent
// documents share the configured index; session documents use the
// session's own index, created on first use. SetVectorIndexID only
// writes an empty column, so concurrent first uploads converge on one
// winner and the reload below picks it up.
func (w *IndexWorker) resolveIndexID(ctx context.Context, doc *model.Document) (string, error) {
	if doc.IndexTag == model.IndexTagMyDocs {
		if w.myDocsIndexID == "" {
			return "", fmt.Errorf("no persistent index configured")
		}
		return w.myDocsIndexID, nil
	}

	session, err := w.sessions.GetByID(doc.SessionID)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", fmt.Errorf("session %d not found", doc.SessionID)
	}
	if session.VectorIndexID != "" {
		return session.VectorIndexID, nil
	}

	indexID, err := w.index.CreateIndex(ctx, fmt.Sprintf("chat-session-%d", session.ID))
	if err != nil {
		return "", err
	}
	if err := w.sessions.SetVectorIndexID(session.ID, indexID); err != nil {
		return "", err
	}

	session, err = w.sessions.GetByID(session.ID)
	if err != nil {
		return "", err
	}
	if session == nil || session.VectorIndexID == "" {
		return "", fmt.Errorf("session %d lost its index assignment", doc.SessionID)
	}
	return session.VectorIndexID, nil
}
