package models

import "time"

// SessionStatus is the lifecycle state of an interview session.
type SessionStatus string

const (
	StatusCreated   SessionStatus = "created"
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
	StatusExpired   SessionStatus = "expired"
	StatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status permits no further lifecycle
// transitions.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Session is one timed, token-budgeted interview conversation between a
// candidate and the AI assistant. Configuration fields are immutable after
// creation except through the explicit extend operations.
type Session struct {
	ID string `gorm:"primaryKey;size:36"`

	CandidateName  string `gorm:"size:255;not null"`
	CandidateEmail string `gorm:"size:255;index"`

	TimeLimit   int    `gorm:"not null"` // seconds
	TokenBudget int    `gorm:"not null"`
	ModelName   string `gorm:"size:50;not null;default:gpt-4"`

	Status              SessionStatus `gorm:"size:16;default:created;index"`
	StartTime           *time.Time
	EndTime             *time.Time
	PausedAt            *time.Time // set only while paused
	TotalPausedDuration int        `gorm:"default:0"` // cumulative seconds spent paused

	TokensUsed   int `gorm:"default:0"`
	InputTokens  int `gorm:"default:0"`
	OutputTokens int `gorm:"default:0"`
	MessageCount int `gorm:"default:0"`

	ChallengeID   *string `gorm:"size:36"`
	ChallengeText string  `gorm:"type:text"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Messages []Message      `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Events   []SessionEvent `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}
