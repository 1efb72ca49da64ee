package timer

import (
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/models"
)

func sessionStartedAt(start time.Time) *models.Session {
	return &models.Session{
		ID:        "s-1",
		TimeLimit: 3600,
		Status:    models.StatusActive,
		StartTime: &start,
	}
}

func TestElapsed_NotStarted(t *testing.T) {
	s := &models.Session{TimeLimit: 3600, Status: models.StatusCreated}
	if got := Elapsed(s, time.Now()); got != 0 {
		t.Errorf("Elapsed = %d, want 0", got)
	}
	if IsExpired(s, time.Now()) {
		t.Error("session that never started should not be expired")
	}
}

func TestElapsed_Running(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	s := sessionStartedAt(start)
	now := start.Add(10 * time.Minute)

	if got := Elapsed(s, now); got != 600 {
		t.Errorf("Elapsed = %d, want 600", got)
	}
	if got := Remaining(s, now); got != 3000 {
		t.Errorf("Remaining = %d, want 3000", got)
	}
}

func TestElapsed_ExcludesCompletedPauses(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	s := sessionStartedAt(start)
	s.TotalPausedDuration = 300
	now := start.Add(20 * time.Minute)

	if got := Elapsed(s, now); got != 900 {
		t.Errorf("Elapsed = %d, want 900 (1200s wall minus 300s paused)", got)
	}
}

func TestElapsed_FreezesDuringPause(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	pausedAt := start.Add(15 * time.Minute)
	s := sessionStartedAt(start)
	s.Status = models.StatusPaused
	s.PausedAt = &pausedAt

	// However long the pause runs, the clock reads the same.
	for _, after := range []time.Duration{time.Second, time.Hour, 48 * time.Hour} {
		if got := Elapsed(s, pausedAt.Add(after)); got != 900 {
			t.Errorf("Elapsed after %v of pause = %d, want 900", after, got)
		}
	}
}

func TestElapsed_StopsAtEndTime(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)
	s := sessionStartedAt(start)
	s.Status = models.StatusCompleted
	s.EndTime = &end

	if got := Elapsed(s, end.Add(5*time.Hour)); got != 1800 {
		t.Errorf("Elapsed = %d, want 1800", got)
	}
}

func TestIsExpired(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	s := sessionStartedAt(start)
	if IsExpired(s, start.Add(59*time.Minute)) {
		t.Error("59 minutes into a 60 minute session should not be expired")
	}
	if !IsExpired(s, start.Add(60*time.Minute)) {
		t.Error("exactly at the limit should be expired")
	}

	// Terminal statuses always read expired regardless of the clock.
	s = sessionStartedAt(start)
	s.Status = models.StatusCompleted
	if !IsExpired(s, start.Add(time.Minute)) {
		t.Error("completed session should read as expired")
	}
}

func TestRemaining_FlooredAtZero(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	s := sessionStartedAt(start)
	if got := Remaining(s, start.Add(2*time.Hour)); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
}

func TestLevelForRemaining_Boundaries(t *testing.T) {
	tests := []struct {
		pct  float64
		want Level
	}{
		{100, LevelNormal},
		{26, LevelNormal},
		{25, LevelWarning},
		{11, LevelWarning},
		{10, LevelCritical},
		{1, LevelCritical},
		{0, LevelExpired},
		{-5, LevelExpired},
	}
	for _, tt := range tests {
		if got := LevelForRemaining(tt.pct); got != tt.want {
			t.Errorf("LevelForRemaining(%v) = %s, want %s", tt.pct, got, tt.want)
		}
	}
}

func TestWarning_UsesRemainingTime(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	s := sessionStartedAt(start)

	if got := Warning(s, start.Add(30*time.Minute)); got != LevelNormal {
		t.Errorf("Warning at 50%% remaining = %s, want normal", got)
	}
	if got := Warning(s, start.Add(48*time.Minute)); got != LevelWarning {
		t.Errorf("Warning at 20%% remaining = %s, want warning", got)
	}
	if got := Warning(s, start.Add(57*time.Minute)); got != LevelCritical {
		t.Errorf("Warning at 5%% remaining = %s, want critical", got)
	}
	if got := Warning(s, start.Add(61*time.Minute)); got != LevelExpired {
		t.Errorf("Warning past limit = %s, want expired", got)
	}
}

func TestTimerState(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	s := &models.Session{TimeLimit: 3600, Status: models.StatusCreated}
	if got := TimerState(s, start); got != StateNotStarted {
		t.Errorf("TimerState = %s, want not_started", got)
	}

	s = sessionStartedAt(start)
	if got := TimerState(s, start.Add(time.Minute)); got != StateRunning {
		t.Errorf("TimerState = %s, want running", got)
	}

	s.Status = models.StatusPaused
	pausedAt := start.Add(time.Minute)
	s.PausedAt = &pausedAt
	if got := TimerState(s, start.Add(2*time.Minute)); got != StatePaused {
		t.Errorf("TimerState = %s, want paused", got)
	}

	s = sessionStartedAt(start)
	if got := TimerState(s, start.Add(2*time.Hour)); got != StateExpired {
		t.Errorf("TimerState = %s, want expired", got)
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{59, "00:59"},
		{90, "01:30"},
		{3599, "59:59"},
		{3600, "01:00:00"},
		{5025, "01:23:45"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestSnap(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	s := sessionStartedAt(start)
	snap := Snap(s, start.Add(15*time.Minute))

	if snap.SessionID != "s-1" {
		t.Errorf("SessionID = %q, want s-1", snap.SessionID)
	}
	if snap.ElapsedSeconds != 900 || snap.RemainingSeconds != 2700 {
		t.Errorf("elapsed/remaining = %d/%d, want 900/2700", snap.ElapsedSeconds, snap.RemainingSeconds)
	}
	if snap.State != StateRunning {
		t.Errorf("State = %s, want running", snap.State)
	}
	if snap.PercentUsed != 25 {
		t.Errorf("PercentUsed = %v, want 25", snap.PercentUsed)
	}
	if snap.Formatted != "45:00" {
		t.Errorf("Formatted = %q, want 45:00", snap.Formatted)
	}
}
