package app

import (
	"context"
	"time"

	"workdocs-ai/internal/model"
	"workdocs-ai/internal/repository"
	"workdocs-ai/internal/vectorindex"
)

// Backend boundaries are declared here, on the consumer side, so every
// service takes explicit collaborators and tests can substitute fakes.

type SessionStore interface {
	Create(session *model.Session) error
	ExtendActive(userID uint, now, expiresAt time.Time) (*model.Session, error)
	GetByIDAndUserID(sessionID, userID uint) (*model.Session, error)
	GetByID(sessionID uint) (*model.Session, error)
	SetExpiresAt(sessionID uint, expiresAt time.Time) error
	SetVectorIndexID(sessionID uint, indexID string) error
}

type DocumentStore interface {
	Create(doc *model.Document) error
	GetByIDAndUserID(id, userID uint) (*model.Document, error)
	GetByVectorFileIDAndUserID(vectorFileID string, userID uint) (*model.Document, error)
	List(userID uint, filter repository.ListFilter) ([]model.Document, error)
	ListEphemeralBySessionID(sessionID uint) ([]model.Document, error)
	ListExpired(now time.Time, limit int) ([]model.Document, error)
	ExtendSessionExpiry(sessionID uint, expiresAt time.Time) error
	Delete(id uint) error
}

type RegulationStore interface {
	List() ([]model.Regulation, error)
	GetByVectorFileID(vectorFileID string) (*model.Regulation, error)
}

type MessageStore interface {
	ListBySessionID(sessionID uint, limit int) ([]model.Message, error)
	ListRecentBySessionID(sessionID uint, limit int) ([]model.Message, error)
}

// BlobStorage is the object-storage backend. Remove must treat missing
// objects as removed.
type BlobStorage interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Get(ctx context.Context, path string) ([]byte, error)
	Remove(ctx context.Context, paths []string) error
}

// VectorIndex is the slice of the index backend cleanup needs; Delete
// must treat already-deleted files as success.
type VectorIndex interface {
	Delete(ctx context.Context, indexID, indexFileID, fileID string) error
}

// IndexJobPublisher hands a freshly created document to the async
// indexing pipeline.
type IndexJobPublisher interface {
	PublishIndexJob(ctx context.Context, documentID uint) error
}

var _ VectorIndex = (*vectorindex.Client)(nil)
