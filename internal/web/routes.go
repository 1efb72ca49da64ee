package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parleyhq/parley/internal/budget"
	"github.com/parleyhq/parley/internal/challenge"
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/models"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/timer"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, chatSvc *chat.Service, defaults config.Config) {
	api := router.Group("/api")

	api.POST("/sessions", handleCreateSession(db, defaults))
	api.GET("/sessions", handleListSessions(db))
	api.GET("/sessions/:id", handleGetSession(db))

	api.POST("/sessions/:id/start", handleTransition(db, session.Start))
	api.POST("/sessions/:id/pause", handleTransition(db, session.Pause))
	api.POST("/sessions/:id/resume", handleTransition(db, session.Resume))
	api.POST("/sessions/:id/end", handleTransition(db, session.End))
	api.POST("/sessions/:id/extend", handleExtend(db))

	api.GET("/sessions/:id/timer", handleTimer(db))
	api.GET("/sessions/:id/usage", handleUsage(db))
	api.GET("/sessions/:id/messages", handleListMessages(db))
	api.GET("/sessions/:id/events", handleListEvents(db))
	api.POST("/sessions/:id/messages", handleSendMessage(db, chatSvc))

	api.GET("/sessions/:id/monitor", handleMonitor(db))

	api.GET("/challenges", handleListChallenges(db))
}

// sessionView is the JSON shape of a session.
type sessionView struct {
	ID                  string     `json:"id"`
	CandidateName       string     `json:"candidate_name"`
	CandidateEmail      string     `json:"candidate_email,omitempty"`
	TimeLimit           int        `json:"time_limit"`
	TokenBudget         int        `json:"token_budget"`
	ModelName           string     `json:"model_name"`
	Status              string     `json:"status"`
	StartTime           *time.Time `json:"start_time,omitempty"`
	EndTime             *time.Time `json:"end_time,omitempty"`
	PausedAt            *time.Time `json:"paused_at,omitempty"`
	TotalPausedDuration int        `json:"total_paused_duration"`
	TokensUsed          int        `json:"tokens_used"`
	InputTokens         int        `json:"input_tokens"`
	OutputTokens        int        `json:"output_tokens"`
	MessageCount        int        `json:"message_count"`
	ChallengeID         *string    `json:"challenge_id,omitempty"`
	ChallengeText       string     `json:"challenge_text,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

func viewOf(s *models.Session) sessionView {
	return sessionView{
		ID:                  s.ID,
		CandidateName:       s.CandidateName,
		CandidateEmail:      s.CandidateEmail,
		TimeLimit:           s.TimeLimit,
		TokenBudget:         s.TokenBudget,
		ModelName:           s.ModelName,
		Status:              string(s.Status),
		StartTime:           s.StartTime,
		EndTime:             s.EndTime,
		PausedAt:            s.PausedAt,
		TotalPausedDuration: s.TotalPausedDuration,
		TokensUsed:          s.TokensUsed,
		InputTokens:         s.InputTokens,
		OutputTokens:        s.OutputTokens,
		MessageCount:        s.MessageCount,
		ChallengeID:         s.ChallengeID,
		ChallengeText:       s.ChallengeText,
		CreatedAt:           s.CreatedAt,
	}
}

func handleCreateSession(db *gorm.DB, defaults config.Config) gin.HandlerFunc {
	type request struct {
		CandidateName  string `json:"candidate_name"`
		CandidateEmail string `json:"candidate_email"`
		TimeLimit      int    `json:"time_limit"`
		TokenBudget    int    `json:"token_budget"`
		ModelName      string `json:"model_name"`
		ChallengeID    string `json:"challenge_id"`
		ChallengeText  string `json:"challenge_text"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.TimeLimit == 0 {
			req.TimeLimit = defaults.Session.DefaultDuration
		}
		if req.TokenBudget == 0 {
			req.TokenBudget = defaults.Session.DefaultTokenBudget
		}
		if req.ModelName == "" {
			req.ModelName = defaults.OpenAI.Model
		}

		if req.ChallengeID != "" {
			if _, err := challenge.Get(db, req.ChallengeID); err != nil {
				if errors.Is(err, challenge.ErrNotFound) {
					c.JSON(http.StatusBadRequest, gin.H{"error": "unknown challenge_id"})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
		}

		s, err := session.Create(db, session.Config{
			CandidateName:  req.CandidateName,
			CandidateEmail: req.CandidateEmail,
			TimeLimit:      req.TimeLimit,
			TokenBudget:    req.TokenBudget,
			ModelName:      req.ModelName,
			ChallengeID:    req.ChallengeID,
			ChallengeText:  req.ChallengeText,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, viewOf(s))
	}
}

func handleListSessions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		status := models.SessionStatus(c.Query("status"))

		sessions, err := session.List(db, status, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		views := make([]sessionView, len(sessions))
		for i := range sessions {
			views[i] = viewOf(&sessions[i])
		}
		c.JSON(http.StatusOK, gin.H{"sessions": views, "count": len(views)})
	}
}

func handleGetSession(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := session.Get(db, c.Param("id"))
		if err != nil {
			respondSessionErr(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOf(s))
	}
}

// handleTransition adapts a lifecycle operation into a handler. The
// operations are idempotent, so a retried POST returns 200 with the current
// state.
func handleTransition(db *gorm.DB, op func(*gorm.DB, string) (*models.Session, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := op(db, c.Param("id"))
		if err != nil {
			respondSessionErr(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOf(s))
	}
}

func handleExtend(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		Seconds int `json:"seconds"`
		Tokens  int `json:"tokens"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Seconds <= 0 && req.Tokens <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "seconds or tokens must be positive"})
			return
		}

		id := c.Param("id")
		var s *models.Session
		var err error
		if req.Seconds > 0 {
			if s, err = session.ExtendTime(db, id, req.Seconds); err != nil {
				respondSessionErr(c, err)
				return
			}
		}
		if req.Tokens > 0 {
			if s, err = session.ExtendBudget(db, id, req.Tokens); err != nil {
				respondSessionErr(c, err)
				return
			}
		}
		c.JSON(http.StatusOK, viewOf(s))
	}
}

func handleTimer(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := session.Get(db, c.Param("id"))
		if err != nil {
			respondSessionErr(c, err)
			return
		}
		c.JSON(http.StatusOK, timer.Snap(s, time.Now().UTC()))
	}
}

func handleUsage(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := session.Get(db, c.Param("id"))
		if err != nil {
			respondSessionErr(c, err)
			return
		}
		c.JSON(http.StatusOK, budget.StatsFor(s))
	}
}

type messageView struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Tokens    int       `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
}

func handleListMessages(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := session.Get(db, id); err != nil {
			respondSessionErr(c, err)
			return
		}
		msgs, err := session.Messages(db, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		views := make([]messageView, len(msgs))
		for i, m := range msgs {
			views[i] = messageView{
				ID:        m.ID,
				Role:      string(m.Role),
				Content:   m.Content,
				Tokens:    m.Tokens,
				CreatedAt: m.CreatedAt,
			}
		}
		c.JSON(http.StatusOK, gin.H{"messages": views, "count": len(views)})
	}
}

type eventView struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Data        string    `json:"data"`
	CreatedAt   time.Time `json:"created_at"`
}

func handleListEvents(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := session.Get(db, id); err != nil {
			respondSessionErr(c, err)
			return
		}
		events, err := session.Events(db, id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		views := make([]eventView, len(events))
		for i, e := range events {
			views[i] = eventView{
				ID:          e.ID,
				Type:        string(e.Type),
				Description: e.Description,
				Data:        e.Data,
				CreatedAt:   e.CreatedAt,
			}
		}
		c.JSON(http.StatusOK, gin.H{"events": views, "count": len(views)})
	}
}

func handleSendMessage(db *gorm.DB, chatSvc *chat.Service) gin.HandlerFunc {
	type request struct {
		Content string `json:"content"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		reply, err := chatSvc.SendMessage(c.Request.Context(), db, c.Param("id"), req.Content)
		if err != nil {
			var rej *chat.Rejection
			switch {
			case errors.As(err, &rej):
				c.JSON(http.StatusBadRequest, gin.H{"error": rej.Reason})
			case errors.Is(err, session.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}
		c.JSON(http.StatusOK, reply)
	}
}

type challengeView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Difficulty   string `json:"difficulty"`
	Instructions string `json:"instructions"`
	StarterCode  string `json:"starter_code,omitempty"`
}

func handleListChallenges(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := models.ChallengeCategory(c.Query("category"))
		challenges, err := challenge.List(db, category)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		views := make([]challengeView, len(challenges))
		for i, ch := range challenges {
			views[i] = challengeView{
				ID:           ch.ID,
				Title:        ch.Title,
				Description:  ch.Description,
				Category:     string(ch.Category),
				Difficulty:   string(ch.Difficulty),
				Instructions: ch.Instructions,
				StarterCode:  ch.StarterCode,
			}
		}
		c.JSON(http.StatusOK, gin.H{"challenges": views, "count": len(views)})
	}
}

// respondSessionErr maps session lookup failures to HTTP statuses.
func respondSessionErr(c *gin.Context, err error) {
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
