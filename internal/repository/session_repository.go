package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"workdocs-ai/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(session *model.Session) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

// ExtendActive pushes the expiry of the user's active session forward in
// a single conditional UPDATE and returns the refreshed row, or nil when
// no session was active. Doing the update first keeps the
// one-active-session invariant out of a read-then-write race for the
// common reuse path.
func (r *SessionRepository) ExtendActive(userID uint, now, expiresAt time.Time) (*model.Session, error) {
	res := r.db.Model(&model.Session{}).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Update("expires_at", expiresAt)
	if res.Error != nil {
		return nil, fmt.Errorf("extend active session failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var session model.Session
	if err := r.db.Where("user_id = ? AND expires_at > ?", userID, now).
		Order("expires_at DESC").First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load extended session failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) GetByIDAndUserID(sessionID, userID uint) (*model.Session, error) {
	var session model.Session
	if err := r.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) GetByID(sessionID uint) (*model.Session, error) {
	var session model.Session
	if err := r.db.First(&session, sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by id failed: %w", err)
	}
	return &session, nil
}

// SetExpiresAt terminates or reschedules a session; End passes the
// current instant so the session drops out of every active-window query.
func (r *SessionRepository) SetExpiresAt(sessionID uint, expiresAt time.Time) error {
	if err := r.db.Model(&model.Session{}).Where("id = ?", sessionID).
		Update("expires_at", expiresAt).Error; err != nil {
		return fmt.Errorf("set session expiry failed: %w", err)
	}
	return nil
}

// SetVectorIndexID stores the lazily created per-session index id, only
// if none has been assigned yet (two concurrent first uploads race for
// the slot; the second write must not clobber the first).
func (r *SessionRepository) SetVectorIndexID(sessionID uint, indexID string) error {
	if err := r.db.Model(&model.Session{}).
		Where("id = ? AND (vector_index_id = '' OR vector_index_id IS NULL)", sessionID).
		Update("vector_index_id", indexID).Error; err != nil {
		return fmt.Errorf("set session vector index failed: %w", err)
	}
	return nil
}
