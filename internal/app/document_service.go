package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"workdocs-ai/internal/model"
	"workdocs-ai/internal/repository"
)

const maxUploadSize = 10 << 20 // 10 MB

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentTooLarge = errors.New("document exceeds the size limit")
)

var knownDocTypes = map[string]bool{
	"contract":    true,
	"payslip":     true,
	"certificate": true,
	"other":       true,
}

// DocumentCleaner removes one document's footprint across all backends.
type DocumentCleaner interface {
	CleanupDocument(ctx context.Context, doc *model.Document) *CleanupResult
}

// DocumentService is the registry of uploaded documents: creation with a
// verified-active session, owner-scoped reads, deletion through the
// cleanup pipeline.
type DocumentService struct {
	docs       DocumentStore
	sessions   SessionStore
	blobs      BlobStorage
	cleaner    DocumentCleaner
	publisher  IndexJobPublisher
	pathPrefix string
}

func NewDocumentService(
	docs DocumentStore,
	sessions SessionStore,
	blobs BlobStorage,
	cleaner DocumentCleaner,
	publisher IndexJobPublisher,
	pathPrefix string,
) *DocumentService {
	return &DocumentService{
		docs:       docs,
		sessions:   sessions,
		blobs:      blobs,
		cleaner:    cleaner,
		publisher:  publisher,
		pathPrefix: pathPrefix,
	}
}

type UploadInput struct {
	UserID    uint
	SessionID uint // 0 = persistent "my docs" upload
	FileName  string
	DocType   string
	MimeType  string
	Data      []byte
}

// Upload validates the target session before any backend write, stores
// the blob, creates the row, and queues async indexing. Creation is
// all-or-nothing from the caller's view: a failure after the blob write
// compensates by removing the blob again.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*model.Document, error) {
	if in.UserID == 0 || len(in.Data) == 0 {
		return nil, ErrInvalidInput
	}
	if len(in.Data) > maxUploadSize {
		return nil, ErrDocumentTooLarge
	}
	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		return nil, ErrInvalidInput
	}
	docType := strings.ToLower(strings.TrimSpace(in.DocType))
	if docType == "" {
		docType = "other"
	}
	if !knownDocTypes[docType] {
		return nil, ErrInvalidInput
	}

	var expiresAt *time.Time
	indexTag := model.IndexTagMyDocs
	if in.SessionID != 0 {
		session, err := s.sessions.GetByIDAndUserID(in.SessionID, in.UserID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		if !session.Active(time.Now()) {
			return nil, ErrSessionExpired
		}
		expiry := session.ExpiresAt
		expiresAt = &expiry
		indexTag = model.IndexTagSession
	}

	storagePath := s.buildStoragePath(in.UserID, fileName)
	if err := s.blobs.Put(ctx, storagePath, in.Data, in.MimeType); err != nil {
		return nil, fmt.Errorf("store document blob failed: %w", err)
	}

	doc := &model.Document{
		UserID:      in.UserID,
		SessionID:   in.SessionID,
		FileName:    fileName,
		DocType:     docType,
		StoragePath: storagePath,
		IndexTag:    indexTag,
		MimeType:    in.MimeType,
		SizeBytes:   int64(len(in.Data)),
		ExpiresAt:   expiresAt,
	}
	if err := s.docs.Create(doc); err != nil {
		s.compensateBlob(ctx, storagePath)
		return nil, err
	}

	if err := s.publisher.PublishIndexJob(ctx, doc.ID); err != nil {
		// Without the job the document would never become searchable;
		// roll the creation back entirely.
		if delErr := s.docs.Delete(doc.ID); delErr != nil {
			log.Printf("compensate document row %d failed: %v", doc.ID, delErr)
		}
		s.compensateBlob(ctx, storagePath)
		return nil, fmt.Errorf("enqueue index job failed: %w", err)
	}

	return doc, nil
}

func (s *DocumentService) Get(userID, documentID uint) (*model.Document, error) {
	if userID == 0 || documentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docs.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) List(userID uint, filter repository.ListFilter) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docs.List(userID, filter)
}

// Delete runs the three-phase cleanup for one owned document and reports
// the per-phase outcome.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID uint) (*CleanupResult, error) {
	doc, err := s.Get(userID, documentID)
	if err != nil {
		return nil, err
	}
	return s.cleaner.CleanupDocument(ctx, doc), nil
}

func (s *DocumentService) buildStoragePath(userID uint, fileName string) string {
	base := path.Base(fileName)
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	return fmt.Sprintf("%susers/%d/%s_%s", s.pathPrefix, userID, uuid.NewString(), base)
}

func (s *DocumentService) compensateBlob(ctx context.Context, storagePath string) {
	if err := s.blobs.Remove(ctx, []string{storagePath}); err != nil {
		log.Printf("compensate blob %s failed: %v", storagePath, err)
	}
}
