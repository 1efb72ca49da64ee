// Package timer computes elapsed and remaining wall-clock time for a
// session. All functions are pure over the session fields plus an explicit
// clock reading, so they are safe to call from polling loops without
// synchronization.
package timer

import (
	"fmt"
	"math"
	"time"

	"github.com/parleyhq/parley/internal/models"
)

// Warning thresholds, as percent of the resource remaining. The budget
// ledger shares these so both gauges agree on when to escalate.
const (
	WarningPct  = 25
	CriticalPct = 10
)

// Level classifies how much of a resource remains.
type Level int

const (
	LevelNormal Level = iota
	LevelWarning
	LevelCritical
	LevelExpired
)

func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelExpired:
		return "expired"
	}
	return "unknown"
}

// LevelForRemaining maps a remaining percentage to a warning level.
func LevelForRemaining(pct float64) Level {
	switch {
	case pct <= 0:
		return LevelExpired
	case pct <= CriticalPct:
		return LevelCritical
	case pct <= WarningPct:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// State describes the timer independent of warning severity.
type State string

const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateExpired    State = "expired"
)

// Elapsed returns active seconds since the session started, excluding all
// paused time. The clock stops at PausedAt while a pause is in progress and
// at EndTime once the session has ended. Returns 0 if the session has never
// started.
func Elapsed(s *models.Session, now time.Time) int {
	if s.StartTime == nil {
		return 0
	}

	end := now
	switch {
	case s.EndTime != nil:
		end = *s.EndTime
	case s.PausedAt != nil:
		end = *s.PausedAt
	}

	elapsed := int(end.Sub(*s.StartTime).Seconds()) - s.TotalPausedDuration
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Remaining returns seconds left before the time limit, floored at 0.
func Remaining(s *models.Session, now time.Time) int {
	remaining := s.TimeLimit - Elapsed(s, now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired reports whether the session's time is up. A completed or
// expired session always reads as expired; a session that never started
// never does.
func IsExpired(s *models.Session, now time.Time) bool {
	if s.StartTime == nil {
		return false
	}
	if s.Status == models.StatusCompleted || s.Status == models.StatusExpired {
		return true
	}
	return Elapsed(s, now) >= s.TimeLimit
}

// TimerState returns the current coarse state of the session clock.
func TimerState(s *models.Session, now time.Time) State {
	if s.StartTime == nil {
		return StateNotStarted
	}
	switch s.Status {
	case models.StatusPaused:
		return StatePaused
	case models.StatusCompleted, models.StatusExpired:
		return StateExpired
	case models.StatusActive:
		if IsExpired(s, now) {
			return StateExpired
		}
		return StateRunning
	}
	return StateNotStarted
}

// Warning returns the warning level for remaining time.
func Warning(s *models.Session, now time.Time) Level {
	if IsExpired(s, now) {
		return LevelExpired
	}
	if s.TimeLimit <= 0 {
		return LevelNormal
	}
	pct := float64(Remaining(s, now)) / float64(s.TimeLimit) * 100
	return LevelForRemaining(pct)
}

// FormatClock renders seconds as HH:MM:SS, dropping the hour component only
// when it is zero.
func FormatClock(seconds int) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// Snapshot is a point-in-time view of a session's clock for callers
// outside the core.
type Snapshot struct {
	SessionID        string  `json:"session_id"`
	State            State   `json:"state"`
	ElapsedSeconds   int     `json:"elapsed_seconds"`
	RemainingSeconds int     `json:"remaining_seconds"`
	TimeLimit        int     `json:"time_limit"`
	Expired          bool    `json:"is_expired"`
	Formatted        string  `json:"formatted_remaining"`
	PercentUsed      float64 `json:"percentage_used"`
	Warning          string  `json:"warning_level"`
}

// Snap assembles a Snapshot for the session at the given instant.
func Snap(s *models.Session, now time.Time) Snapshot {
	elapsed := Elapsed(s, now)
	remaining := Remaining(s, now)

	pct := 0.0
	if s.TimeLimit > 0 {
		pct = math.Round(float64(elapsed)/float64(s.TimeLimit)*100*100) / 100
	}

	return Snapshot{
		SessionID:        s.ID,
		State:            TimerState(s, now),
		ElapsedSeconds:   elapsed,
		RemainingSeconds: remaining,
		TimeLimit:        s.TimeLimit,
		Expired:          IsExpired(s, now),
		Formatted:        FormatClock(remaining),
		PercentUsed:      pct,
		Warning:          Warning(s, now).String(),
	}
}
