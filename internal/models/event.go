package models

import "time"

// EventType classifies session audit events.
type EventType string

const (
	EventSessionCreated   EventType = "session_created"
	EventSessionStarted   EventType = "session_started"
	EventSessionPaused    EventType = "session_paused"
	EventSessionResumed   EventType = "session_resumed"
	EventSessionCompleted EventType = "session_completed"
	EventSessionExpired   EventType = "session_expired"
	EventTimeExtended     EventType = "time_extended"
	EventTokensExtended   EventType = "tokens_extended"
	EventMessageSent      EventType = "message_sent"
)

// SessionEvent is an append-only audit record of a lifecycle or exchange
// event. Events are never mutated after creation.
type SessionEvent struct {
	ID          string    `gorm:"primaryKey;size:36"`
	SessionID   string    `gorm:"size:36;not null;index"`
	Type        EventType `gorm:"size:32;not null;index"`
	Description string    `gorm:"type:text"`
	Data        string    `gorm:"type:json"` // JSON object with event details
	CreatedAt   time.Time `gorm:"index"`
}
