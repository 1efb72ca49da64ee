// Package sweep expires overrunning sessions in the background so a
// session whose candidate walked away still transitions to EXPIRED.
package sweep

import (
	"fmt"
	"log"
	"time"

	"github.com/parleyhq/parley/internal/models"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/timer"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Sweeper periodically marks active sessions whose time limit has run out.
type Sweeper struct {
	db   *gorm.DB
	cron *cron.Cron
}

// New builds a Sweeper bound to db.
func New(db *gorm.DB) *Sweeper {
	return &Sweeper{db: db, cron: cron.New()}
}

// Start schedules the sweep every minute and runs one immediately so a
// restart catches up on sessions that expired while the process was down.
func (sw *Sweeper) Start() error {
	if _, err := sw.cron.AddFunc("@every 1m", sw.run); err != nil {
		return fmt.Errorf("sweep: schedule: %w", err)
	}
	sw.cron.Start()
	go sw.run()
	log.Printf("sweep: expiry sweeper started")
	return nil
}

// Stop halts the schedule. Does not wait for an in-flight sweep.
func (sw *Sweeper) Stop() {
	sw.cron.Stop()
}

func (sw *Sweeper) run() {
	n, err := SweepExpired(sw.db, time.Now().UTC())
	if err != nil {
		log.Printf("sweep: %v", err)
		return
	}
	if n > 0 {
		log.Printf("sweep: expired %d sessions", n)
	}
}

// SweepExpired scans active sessions and transitions those past their time
// limit to EXPIRED, each in its own transaction with an audit event.
func SweepExpired(db *gorm.DB, now time.Time) (int, error) {
	var active []models.Session
	if err := db.Where("status = ?", models.StatusActive).Find(&active).Error; err != nil {
		return 0, fmt.Errorf("sweep: list active sessions: %w", err)
	}

	expired := 0
	for i := range active {
		s := &active[i]
		if !timer.IsExpired(s, now) {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(s).Updates(map[string]interface{}{
				"status":   models.StatusExpired,
				"end_time": now,
			}).Error; err != nil {
				return fmt.Errorf("mark expired: %w", err)
			}
			return session.AppendEvent(tx, s.ID, models.EventSessionExpired,
				"Session time limit reached",
				map[string]interface{}{
					"time_limit":  s.TimeLimit,
					"tokens_used": s.TokensUsed,
				})
		})
		if err != nil {
			return expired, fmt.Errorf("sweep: expire %s: %w", s.ID, err)
		}
		expired++
	}
	return expired, nil
}
