package model

import "time"

// Index tags name the vector index family a document was indexed into.
// Cleanup resolves the concrete index id from the tag: "mydocs" maps to
// the shared persistent index, "session" to the owning session's index.
const (
	IndexTagSession = "session"
	IndexTagMyDocs  = "mydocs"
)

// Document is an uploaded employment document. SessionID 0 means the
// document lives in the user's persistent space and never expires;
// otherwise it is ephemeral and ExpiresAt mirrors the session TTL.
// VectorFileID and IndexFileID stay empty until async indexing completes.
type Document struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	SessionID    uint       `gorm:"index" json:"session_id"` // 0 = persistent
	FileName     string     `gorm:"size:256;not null" json:"file_name"`
	DocType      string     `gorm:"size:32;index" json:"doc_type"`
	StoragePath  string     `gorm:"size:512;not null" json:"-"`
	VectorFileID string     `gorm:"size:64;index" json:"vector_file_id,omitempty"`
	IndexFileID  string     `gorm:"size:64" json:"index_file_id,omitempty"`
	IndexTag     string     `gorm:"size:16" json:"index_tag,omitempty"`
	MimeType     string     `gorm:"size:128" json:"mime_type"`
	SizeBytes    int64      `json:"size_bytes"`
	ExpiresAt    *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsPersistent reports whether the document belongs to the user's
// permanent space rather than a session.
func (d *Document) IsPersistent() bool {
	return d.SessionID == 0
}

// Indexed reports whether async indexing has completed for the document.
func (d *Document) Indexed() bool {
	return d.IndexFileID != ""
}
