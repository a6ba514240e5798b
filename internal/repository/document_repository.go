package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"workdocs-ai/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByIDAndUserID(id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by id failed: %w", err)
	}
	return &doc, nil
}

// GetByVectorFileIDAndUserID resolves a retrieval citation back to the
// requesting user's document. The owner scoping in the WHERE clause is
// the citation security boundary; it must never be relaxed.
func (r *DocumentRepository) GetByVectorFileIDAndUserID(vectorFileID string, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("vector_file_id = ? AND user_id = ?", vectorFileID, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by vector file failed: %w", err)
	}
	return &doc, nil
}

// ListFilter narrows List; zero values mean "no constraint".
type ListFilter struct {
	SessionID  uint
	DocType    string
	Persistent *bool
}

func (r *DocumentRepository) List(userID uint, filter ListFilter) ([]model.Document, error) {
	q := r.db.Where("user_id = ?", userID)
	if filter.SessionID != 0 {
		q = q.Where("session_id = ?", filter.SessionID)
	}
	if filter.DocType != "" {
		q = q.Where("doc_type = ?", filter.DocType)
	}
	if filter.Persistent != nil {
		if *filter.Persistent {
			q = q.Where("session_id = 0")
		} else {
			q = q.Where("session_id <> 0")
		}
	}

	var docs []model.Document
	if err := q.Order("created_at DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

// ListEphemeralBySessionID returns the session's documents for cleanup.
func (r *DocumentRepository) ListEphemeralBySessionID(sessionID uint) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.Where("session_id = ?", sessionID).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list session documents failed: %w", err)
	}
	return docs, nil
}

// ListExpired returns up to limit documents past their TTL. Persistent
// documents carry no expiry and a zero session id, so both predicates
// keep them out of the sweep.
func (r *DocumentRepository) ListExpired(now time.Time, limit int) ([]model.Document, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var docs []model.Document
	if err := r.db.Where("session_id <> 0 AND expires_at IS NOT NULL AND expires_at <= ?", now).
		Order("expires_at ASC").Limit(limit).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list expired documents failed: %w", err)
	}
	return docs, nil
}

// ExtendSessionExpiry pushes the retention deadline of every document
// attached to the session. Called when a session's own expiry moves
// forward so the sweep never reclaims documents of a still-active
// session.
func (r *DocumentRepository) ExtendSessionExpiry(sessionID uint, expiresAt time.Time) error {
	if err := r.db.Model(&model.Document{}).
		Where("session_id = ?", sessionID).
		Update("expires_at", expiresAt).Error; err != nil {
		return fmt.Errorf("extend session document expiry failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Delete(id uint) error {
	if err := r.db.Delete(&model.Document{}, id).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

// SetIndexRefs stamps the document once async indexing completes.
func (r *DocumentRepository) SetIndexRefs(id uint, vectorFileID, indexFileID, indexTag string) error {
	updates := map[string]any{
		"vector_file_id": vectorFileID,
		"index_file_id":  indexFileID,
		"index_tag":      indexTag,
	}
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("set document index refs failed: %w", err)
	}
	return nil
}
