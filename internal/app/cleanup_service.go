package app

import (
	"context"
	"fmt"
	"time"

	"workdocs-ai/internal/model"
)

// Cleanup phases, in the fixed order they run per document. The database
// row goes last: after a crash mid-cleanup the row remains the record of
// what still needs reconciling.
const (
	PhaseStorage     = "storage"
	PhaseVectorStore = "vector_store"
	PhaseDatabase    = "database"
)

// PhaseCounts tallies one outcome kind per cleanup phase.
type PhaseCounts struct {
	Storage     int `json:"storage"`
	VectorStore int `json:"vector_store"`
	Database    int `json:"database"`
}

// CleanupError is one failed phase for one document, kept flat so an
// operator can reconcile orphaned blobs or index entries later.
type CleanupError struct {
	DocumentID uint   `json:"document_id"`
	FileName   string `json:"file_name"`
	Phase      string `json:"phase"`
	Error      string `json:"error"`
}

// CleanupResult aggregates a cleanup batch. A failure in one phase or
// one document never aborts the rest of the batch.
type CleanupResult struct {
	Deleted PhaseCounts    `json:"deleted"`
	Failed  PhaseCounts    `json:"failed"`
	Errors  []CleanupError `json:"errors"`
}

func newCleanupResult() *CleanupResult {
	return &CleanupResult{Errors: []CleanupError{}}
}

// CleanupService removes a document's footprint from object storage, the
// vector index, and the database. All three phases are always attempted;
// failures are captured into the result instead of raised.
type CleanupService struct {
	docs          DocumentStore
	sessions      SessionStore
	blobs         BlobStorage
	index         VectorIndex
	myDocsIndexID string
}

func NewCleanupService(
	docs DocumentStore,
	sessions SessionStore,
	blobs BlobStorage,
	index VectorIndex,
	myDocsIndexID string,
) *CleanupService {
	return &CleanupService{
		docs:          docs,
		sessions:      sessions,
		blobs:         blobs,
		index:         index,
		myDocsIndexID: myDocsIndexID,
	}
}

// CleanupSession removes the footprint of every document attached to the
// session. Returns the batch result and the number of documents covered.
func (s *CleanupService) CleanupSession(ctx context.Context, session *model.Session) (*CleanupResult, int, error) {
	docs, err := s.docs.ListEphemeralBySessionID(session.ID)
	if err != nil {
		return nil, 0, err
	}
	return s.cleanupBatch(ctx, docs), len(docs), nil
}

// SweepExpired reclaims up to limit documents past their TTL. Persistent
// documents are never selected. Safe to call repeatedly: each pass only
// sees rows still present and still expired.
func (s *CleanupService) SweepExpired(ctx context.Context, limit int) (*CleanupResult, int, error) {
	docs, err := s.docs.ListExpired(time.Now(), limit)
	if err != nil {
		return nil, 0, err
	}
	return s.cleanupBatch(ctx, docs), len(docs), nil
}

// CleanupDocument runs the three phases for a single document.
func (s *CleanupService) CleanupDocument(ctx context.Context, doc *model.Document) *CleanupResult {
	result := newCleanupResult()
	s.cleanupOne(ctx, *doc, result)
	return result
}

func (s *CleanupService) cleanupBatch(ctx context.Context, docs []model.Document) *CleanupResult {
	result := newCleanupResult()
	for _, doc := range docs {
		s.cleanupOne(ctx, doc, result)
	}
	return result
}

func (s *CleanupService) cleanupOne(ctx context.Context, doc model.Document, result *CleanupResult) {
	// Phase 1: storage. The client treats missing blobs as removed.
	if doc.StoragePath != "" {
		if err := s.blobs.Remove(ctx, []string{doc.StoragePath}); err != nil {
			result.Failed.Storage++
			result.Errors = append(result.Errors, CleanupError{
				DocumentID: doc.ID, FileName: doc.FileName, Phase: PhaseStorage, Error: err.Error(),
			})
		} else {
			result.Deleted.Storage++
		}
	} else {
		result.Deleted.Storage++
	}

	// Phase 2: vector index. Skipped when indexing never completed;
	// nothing to remove counts as removed.
	if doc.Indexed() {
		if err := s.deleteFromIndex(ctx, &doc); err != nil {
			result.Failed.VectorStore++
			result.Errors = append(result.Errors, CleanupError{
				DocumentID: doc.ID, FileName: doc.FileName, Phase: PhaseVectorStore, Error: err.Error(),
			})
		} else {
			result.Deleted.VectorStore++
		}
	} else {
		result.Deleted.VectorStore++
	}

	// Phase 3: database. Always attempted; only this removes the entity
	// from the system of record.
	if err := s.docs.Delete(doc.ID); err != nil {
		result.Failed.Database++
		result.Errors = append(result.Errors, CleanupError{
			DocumentID: doc.ID, FileName: doc.FileName, Phase: PhaseDatabase, Error: err.Error(),
		})
	} else {
		result.Deleted.Database++
	}
}

// deleteFromIndex resolves the concrete index from the document's tag
// and removes both file references.
func (s *CleanupService) deleteFromIndex(ctx context.Context, doc *model.Document) error {
	indexID, err := s.resolveIndexID(doc)
	if err != nil {
		return err
	}
	return s.index.Delete(ctx, indexID, doc.IndexFileID, doc.VectorFileID)
}

func (s *CleanupService) resolveIndexID(doc *model.Document) (string, error) {
	switch doc.IndexTag {
	case model.IndexTagMyDocs:
		if s.myDocsIndexID == "" {
			return "", fmt.Errorf("mydocs index not configured")
		}
		return s.myDocsIndexID, nil
	case model.IndexTagSession:
		// Session rows expire but are never deleted, so the index
		// reference outlives cleanup of the session itself.
		session, err := s.sessions.GetByID(doc.SessionID)
		if err != nil {
			return "", err
		}
		if session == nil || session.VectorIndexID == "" {
			return "", fmt.Errorf("no index recorded for session %d", doc.SessionID)
		}
		return session.VectorIndexID, nil
	default:
		return "", fmt.Errorf("unknown index tag %q", doc.IndexTag)
	}
}
