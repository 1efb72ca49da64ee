package models

import "time"

// MessageRole identifies who produced a conversation turn.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single turn in a session's conversation. Messages are
// immutable once created; creation-timestamp order is the conversation
// order used to rebuild API context.
type Message struct {
	ID        string      `gorm:"primaryKey;size:36"`
	SessionID string      `gorm:"size:36;not null;index"`
	Role      MessageRole `gorm:"size:16;not null"`
	Content   string      `gorm:"type:text;not null"`
	Tokens    int         `gorm:"default:0"`
	CreatedAt time.Time   `gorm:"index"`
}
