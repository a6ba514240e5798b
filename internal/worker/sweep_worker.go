package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"workdocs-ai/internal/app"
)

// SweepWorker periodically deletes ephemeral documents whose retention
// deadline has passed. Each tick processes one bounded batch; leftovers
// wait for the next tick.
type SweepWorker struct {
	cleanup   *app.CleanupService
	interval  time.Duration
	batchSize int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweepWorker(cleanup *app.CleanupService, interval time.Duration, batchSize int) *SweepWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SweepWorker{
		cleanup:   cleanup,
		interval:  interval,
		batchSize: batchSize,
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
	if w.cancel != nil {
		return
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				w.sweep(workerCtx)
			}
		}
	}()
}

func (w *SweepWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *SweepWorker) sweep(ctx context.Context) {
	result, scanned, err := w.cleanup.SweepExpired(ctx, w.batchSize)
	if err != nil {
		log.Printf("sweep worker list expired documents failed: %v", err)
		return
	}
	if scanned == 0 {
		return
	}

	log.Printf("sweep worker processed %d expired documents: storage %d/%d, vector store %d/%d, database %d/%d",
		scanned,
		result.Deleted.Storage, result.Failed.Storage,
		result.Deleted.VectorStore, result.Failed.VectorStore,
		result.Deleted.Database, result.Failed.Database,
	)
	for _, e := range result.Errors {
		log.Printf("sweep worker document %d (%s) phase %s: %s", e.DocumentID, e.FileName, e.Phase, e.Error)
	}
}
