package model

import "time"

// Regulation is public reference material in the shared regulations
// index. Regulations have no owner; citation classification may resolve
// against them without user scoping.
type Regulation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:256;not null" json:"title"`
	Reference    string    `gorm:"size:128" json:"reference"` // e.g. statute article number
	VectorFileID string    `gorm:"size:64;uniqueIndex" json:"vector_file_id"`
	IndexFileID  string    `gorm:"size:64" json:"index_file_id"`
	CreatedAt    time.Time `json:"created_at"`
}
