package model

import "time"

// Session is a time-boxed chat context. A session is active while
// ExpiresAt lies in the future; expiry is derived from the clock, never
// stored as a flag. VectorIndexID stays empty until the first ephemeral
// document upload creates the per-session index.
type Session struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	VectorIndexID string    `gorm:"size:64" json:"vector_index_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ExpiresAt     time.Time `gorm:"not null;index" json:"expires_at"`
}

// Active reports whether the session has not yet expired at the given instant.
func (s *Session) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
