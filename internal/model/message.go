package model

import "time"

// Message roles as stored and as sent to the model.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a session transcript. Rows are written by the
// async persist worker, so a just-sent message may not be queryable yet.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID uint      `gorm:"index;not null" json:"session_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
