// Package session owns the interview session lifecycle: creation, the
// start/pause/resume/end state machine, and the extend operations. Every
// state change commits together with its audit event in one transaction.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/parleyhq/parley/internal/models"
	"github.com/parleyhq/parley/internal/timer"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no session exists for the given id.
var ErrNotFound = errors.New("session: not found")

// Config holds parameters for creating a new session.
type Config struct {
	CandidateName  string
	CandidateEmail string
	TimeLimit      int // seconds
	TokenBudget    int
	ModelName      string
	ChallengeID    string
	ChallengeText  string
}

func (c Config) validate() error {
	if c.CandidateName == "" {
		return fmt.Errorf("session: candidate name is required")
	}
	if c.TimeLimit <= 0 {
		return fmt.Errorf("session: time limit must be positive")
	}
	if c.TokenBudget <= 0 {
		return fmt.Errorf("session: token budget must be positive")
	}
	if c.ModelName == "" {
		return fmt.Errorf("session: model name is required")
	}
	return nil
}

// Create builds a new session in CREATED state and records the creation
// event in the same transaction.
func Create(db *gorm.DB, cfg Config) (*models.Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &models.Session{
		ID:             models.NewID(),
		CandidateName:  cfg.CandidateName,
		CandidateEmail: cfg.CandidateEmail,
		TimeLimit:      cfg.TimeLimit,
		TokenBudget:    cfg.TokenBudget,
		ModelName:      cfg.ModelName,
		ChallengeText:  cfg.ChallengeText,
		Status:         models.StatusCreated,
	}
	if cfg.ChallengeID != "" {
		s.ChallengeID = &cfg.ChallengeID
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(s).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return AppendEvent(tx, s.ID, models.EventSessionCreated,
			fmt.Sprintf("Session created for %s", cfg.CandidateName),
			map[string]interface{}{
				"time_limit":   s.TimeLimit,
				"token_budget": s.TokenBudget,
				"model":        s.ModelName,
			})
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	log.Printf("session: created %s for %s (time: %ds, budget: %d tokens)",
		s.ID, s.CandidateName, s.TimeLimit, s.TokenBudget)
	return s, nil
}

// Get returns the session with the given id, or ErrNotFound.
func Get(db *gorm.DB, id string) (*models.Session, error) {
	var s models.Session
	if err := db.First(&s, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: get %s: %w", id, err)
	}
	return &s, nil
}

// Start transitions a CREATED session to ACTIVE and stamps the start time.
// Starting a session in any other state is a no-op returning the session
// unchanged, so UI retries are harmless.
func Start(db *gorm.DB, id string) (*models.Session, error) {
	var s *models.Session
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		s, err = Get(tx, id)
		if err != nil {
			return err
		}
		if s.Status != models.StatusCreated {
			return nil
		}

		now := time.Now().UTC()
		s.Status = models.StatusActive
		s.StartTime = &now
		if err := tx.Model(s).Updates(map[string]interface{}{
			"status":     s.Status,
			"start_time": now,
		}).Error; err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		return AppendEvent(tx, id, models.EventSessionStarted, "Session started", nil)
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return s, nil
}

// Pause transitions an ACTIVE session to PAUSED, stamping the pause start.
// Pausing a non-ACTIVE session is a no-op.
func Pause(db *gorm.DB, id string) (*models.Session, error) {
	var s *models.Session
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		s, err = Get(tx, id)
		if err != nil {
			return err
		}
		if s.Status != models.StatusActive {
			return nil
		}

		now := time.Now().UTC()
		s.Status = models.StatusPaused
		s.PausedAt = &now
		if err := tx.Model(s).Updates(map[string]interface{}{
			"status":    s.Status,
			"paused_at": now,
		}).Error; err != nil {
			return fmt.Errorf("pause session: %w", err)
		}
		return AppendEvent(tx, id, models.EventSessionPaused, "Session paused", nil)
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return s, nil
}

// Resume transitions a PAUSED session back to ACTIVE, folding the completed
// pause into the accumulated paused duration. Resuming a non-PAUSED session
// is a no-op.
func Resume(db *gorm.DB, id string) (*models.Session, error) {
	var s *models.Session
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		s, err = Get(tx, id)
		if err != nil {
			return err
		}
		if s.Status != models.StatusPaused {
			return nil
		}

		now := time.Now().UTC()
		if s.PausedAt != nil {
			s.TotalPausedDuration += int(now.Sub(*s.PausedAt).Seconds())
		}
		s.Status = models.StatusActive
		s.PausedAt = nil
		if err := tx.Model(s).Updates(map[string]interface{}{
			"status":                s.Status,
			"paused_at":             nil,
			"total_paused_duration": s.TotalPausedDuration,
		}).Error; err != nil {
			return fmt.Errorf("resume session: %w", err)
		}
		return AppendEvent(tx, id, models.EventSessionResumed, "Session resumed", nil)
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return s, nil
}

// End completes a session from any non-terminal state, stamping the end
// time and recording a summary event. An in-progress pause is folded into
// the paused total first so elapsed time stays accurate. Ending a session
// that is already terminal is a no-op.
func End(db *gorm.DB, id string) (*models.Session, error) {
	var s *models.Session
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		s, err = Get(tx, id)
		if err != nil {
			return err
		}
		if s.Status.Terminal() {
			return nil
		}

		now := time.Now().UTC()
		if s.PausedAt != nil {
			s.TotalPausedDuration += int(now.Sub(*s.PausedAt).Seconds())
			s.PausedAt = nil
		}
		s.Status = models.StatusCompleted
		s.EndTime = &now
		if err := tx.Model(s).Updates(map[string]interface{}{
			"status":                s.Status,
			"end_time":              now,
			"paused_at":             nil,
			"total_paused_duration": s.TotalPausedDuration,
		}).Error; err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		return AppendEvent(tx, id, models.EventSessionCompleted, "Session completed",
			map[string]interface{}{
				"duration":      timer.Elapsed(s, now),
				"tokens_used":   s.TokensUsed,
				"message_count": s.MessageCount,
			})
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return s, nil
}

// ExtendTime grants additional seconds to a session's time limit. Refused
// (as a no-op) once the session is COMPLETED.
func ExtendTime(db *gorm.DB, id string, seconds int) (*models.Session, error) {
	if seconds <= 0 {
		return nil, fmt.Errorf("session: extension must be positive")
	}
	var s *models.Session
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		s, err = Get(tx, id)
		if err != nil {
			return err
		}
		if s.Status == models.StatusCompleted {
			return nil
		}

		s.TimeLimit += seconds
		if err := tx.Model(s).Update("time_limit", s.TimeLimit).Error; err != nil {
			return fmt.Errorf("extend time: %w", err)
		}
		return AppendEvent(tx, id, models.EventTimeExtended,
			fmt.Sprintf("Time limit extended by %d seconds", seconds),
			map[string]interface{}{"added_seconds": seconds, "new_limit": s.TimeLimit})
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return s, nil
}

// ExtendBudget grants additional tokens to a session's budget. Refused (as
// a no-op) once the session is COMPLETED.
func ExtendBudget(db *gorm.DB, id string, tokensToAdd int) (*models.Session, error) {
	if tokensToAdd <= 0 {
		return nil, fmt.Errorf("session: extension must be positive")
	}
	var s *models.Session
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		s, err = Get(tx, id)
		if err != nil {
			return err
		}
		if s.Status == models.StatusCompleted {
			return nil
		}

		s.TokenBudget += tokensToAdd
		if err := tx.Model(s).Update("token_budget", s.TokenBudget).Error; err != nil {
			return fmt.Errorf("extend budget: %w", err)
		}
		return AppendEvent(tx, id, models.EventTokensExtended,
			fmt.Sprintf("Token budget extended by %d tokens", tokensToAdd),
			map[string]interface{}{"added_tokens": tokensToAdd, "new_budget": s.TokenBudget})
	})
	if err != nil {
		return nil, wrapTxErr(err)
	}
	return s, nil
}

// List returns sessions newest first, optionally filtered by status.
func List(db *gorm.DB, status models.SessionStatus, limit, offset int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := db.Model(&models.Session{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var sessions []models.Session
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	return sessions, nil
}

// Messages returns the session's conversation in creation order.
func Messages(db *gorm.DB, sessionID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := db.Where("session_id = ?", sessionID).Order("created_at ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("session: messages for %s: %w", sessionID, err)
	}
	return msgs, nil
}

// Events returns the session's audit trail in creation order.
func Events(db *gorm.DB, sessionID string) ([]models.SessionEvent, error) {
	var events []models.SessionEvent
	if err := db.Where("session_id = ?", sessionID).Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("session: events for %s: %w", sessionID, err)
	}
	return events, nil
}

// AppendEvent records an audit event within the caller's transaction.
func AppendEvent(tx *gorm.DB, sessionID string, eventType models.EventType, description string, data map[string]interface{}) error {
	payload := "{}"
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s event data: %w", eventType, err)
		}
		payload = string(b)
	}
	event := &models.SessionEvent{
		ID:          models.NewID(),
		SessionID:   sessionID,
		Type:        eventType,
		Description: description,
		Data:        payload,
	}
	if err := tx.Create(event).Error; err != nil {
		return fmt.Errorf("append %s event: %w", eventType, err)
	}
	return nil
}

// wrapTxErr keeps ErrNotFound recognizable while prefixing everything else.
func wrapTxErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("session: %w", err)
}
