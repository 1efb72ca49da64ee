package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parleyhq/parley/internal/budget"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/timer"
	"gorm.io/gorm"
)

// monitorEvent is the combined clock and budget view pushed to watchers.
type monitorEvent struct {
	Timer  timer.Snapshot       `json:"timer"`
	Budget budget.UsageSnapshot `json:"budget"`
	Status string               `json:"status"`
}

// handleMonitor streams timer and budget snapshots for a session over SSE,
// for interviewer dashboards that watch a session live.
func handleMonitor(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := session.Get(db, id); err != nil {
			respondSessionErr(c, err)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		writeSSE(c.Writer, "connected", map[string]string{"session_id": id})
		c.Writer.Flush()

		ctx := c.Request.Context()
		ticker := time.NewTicker(2 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				s, err := session.Get(db, id)
				if err != nil {
					return
				}
				now := time.Now().UTC()
				writeSSE(c.Writer, "snapshot", monitorEvent{
					Timer: timer.Snap(s, now),
					Budget: budget.UsageSnapshot{
						InputTokens:     s.InputTokens,
						OutputTokens:    s.OutputTokens,
						TotalTokens:     s.TokensUsed,
						RemainingBudget: budget.Remaining(s),
						PercentUsed:     budget.PercentUsed(s),
					},
					Status: string(s.Status),
				})
				c.Writer.Flush()

				// Nothing more will change once the session is terminal.
				if s.Status.Terminal() {
					return
				}
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
