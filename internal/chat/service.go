// Package chat orchestrates one message exchange: validation, pre-flight
// budget check, the completion call, and the transactional commit of the
// reply plus the consumption debit.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/budget"
	"github.com/parleyhq/parley/internal/completion"
	"github.com/parleyhq/parley/internal/models"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/timer"
	"github.com/parleyhq/parley/internal/tokens"
	"gorm.io/gorm"
)

// replyFactor multiplies the user message's estimated tokens to approximate
// the full exchange cost (prompt plus reply) for the pre-flight gate.
const replyFactor = 3

// Rejection reports a message refused before any completion call was made.
// No tokens were spent and no state changed.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return "chat: rejected: " + r.Reason }

func reject(format string, args ...interface{}) error {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

// ErrExchangeFailed wraps completion failures that happened after the user
// message was already committed.
var ErrExchangeFailed = errors.New("chat: exchange failed")

// Reply is the assistant's answer to one exchange.
type Reply struct {
	Role      models.MessageRole    `json:"role"`
	Content   string                `json:"content"`
	Tokens    int                   `json:"tokens"`
	CreatedAt time.Time             `json:"created_at"`
	Usage     *budget.UsageSnapshot `json:"usage,omitempty"`
}

// Opts configures a chat Service.
type Opts struct {
	Client           completion.Client
	Counter          *tokens.Counter
	MaxMessageLength int
	Temperature      float64
	MaxOutputTokens  int
}

// Service runs message exchanges. Sends for the same session are serialized
// so two concurrent messages cannot both pass the pre-flight check against
// the same remaining budget.
type Service struct {
	client           completion.Client
	counter          *tokens.Counter
	maxMessageLength int
	temperature      float64
	maxOutputTokens  int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New builds a chat Service.
func New(opts Opts) *Service {
	return &Service{
		client:           opts.Client,
		counter:          opts.Counter,
		maxMessageLength: opts.MaxMessageLength,
		temperature:      opts.Temperature,
		maxOutputTokens:  opts.MaxOutputTokens,
		locks:            make(map[string]*sync.Mutex),
	}
}

func (svc *Service) sessionLock(id string) *sync.Mutex {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	l, ok := svc.locks[id]
	if !ok {
		l = &sync.Mutex{}
		svc.locks[id] = l
	}
	return l
}

// validateSession checks the session can accept a new message right now.
func validateSession(s *models.Session, now time.Time) error {
	if s.Status != models.StatusActive && s.Status != models.StatusPaused {
		return reject("Session is %s. Cannot send messages.", s.Status)
	}
	if s.StartTime == nil {
		return reject("Session has not been started yet.")
	}
	if budget.Exhausted(s) {
		return reject("Token budget exhausted. Cannot send more messages.")
	}
	if s.Status == models.StatusActive && timer.IsExpired(s, now) {
		return reject("Session time has expired.")
	}
	return nil
}

// SendMessage runs one full exchange for the session and returns the
// assistant reply. Rejections (validation or budget pre-flight) leave the
// session untouched; a completion failure after the user message committed
// returns ErrExchangeFailed with the user message preserved.
func (svc *Service) SendMessage(ctx context.Context, db *gorm.DB, sessionID, content string) (*Reply, error) {
	lock := svc.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	s, err := session.Get(db, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := validateSession(s, now); err != nil {
		log.Printf("chat: validation failed for %s: %v", sessionID, err)
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, reject("Message cannot be empty.")
	}
	if len(content) > svc.maxMessageLength {
		return nil, reject("Message too long. Maximum %d characters.", svc.maxMessageLength)
	}

	// Pre-flight: the reply is unknown, so charge a multiple of the user
	// message as the projected exchange cost.
	estimated := svc.counter.CountText(content, s.ModelName)
	projected := estimated * replyFactor
	remaining := budget.Remaining(s)
	if projected > remaining {
		return nil, reject("Insufficient token budget. Need ~%d tokens, have %d.", projected, remaining)
	}

	// The user message commits on its own so it survives a failed
	// completion call.
	userMsg := &models.Message{
		ID:        models.NewID(),
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   content,
		Tokens:    estimated,
	}
	if err := db.Create(userMsg).Error; err != nil {
		return nil, fmt.Errorf("chat: save user message: %w", err)
	}
	log.Printf("chat: user message saved for %s: %d tokens (estimated)", sessionID, estimated)

	history, system, err := buildContext(db, s)
	if err != nil {
		return nil, err
	}
	apiMsgs := make([]completion.Message, 0, len(history)+1)
	countMsgs := make([]tokens.Message, 0, len(history)+1)
	apiMsgs = append(apiMsgs, completion.Message{Role: "system", Content: system})
	countMsgs = append(countMsgs, tokens.Message{Role: "system", Content: system})
	for _, m := range history {
		apiMsgs = append(apiMsgs, completion.Message{Role: string(m.Role), Content: m.Content})
		countMsgs = append(countMsgs, tokens.Message{Role: string(m.Role), Content: m.Content})
	}
	promptEstimate := svc.counter.CountMessages(countMsgs, s.ModelName)

	maxTokens := svc.maxOutputTokens
	if budgetCap := remaining - estimated; budgetCap < maxTokens {
		maxTokens = budgetCap
	}

	log.Printf("chat: calling completion API for %s (%d messages, ~%d prompt tokens)",
		sessionID, len(apiMsgs), promptEstimate)
	result, err := svc.client.Complete(ctx, completion.Request{
		Model:       s.ModelName,
		Messages:    apiMsgs,
		Temperature: svc.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		log.Printf("chat: completion failed for %s: %v", sessionID, err)
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	var reply *Reply
	err = db.Transaction(func(tx *gorm.DB) error {
		aiMsg := &models.Message{
			ID:        models.NewID(),
			SessionID: sessionID,
			Role:      models.RoleAssistant,
			Content:   result.Content,
			Tokens:    result.CompletionTokens,
		}
		if err := tx.Create(aiMsg).Error; err != nil {
			return fmt.Errorf("save assistant message: %w", err)
		}

		usage, err := budget.UpdateConsumption(tx, s, result.PromptTokens, result.CompletionTokens)
		if err != nil {
			return err
		}

		s.MessageCount += 2
		if err := tx.Model(s).Update("message_count", s.MessageCount).Error; err != nil {
			return fmt.Errorf("update message count: %w", err)
		}

		if err := session.AppendEvent(tx, sessionID, models.EventMessageSent,
			fmt.Sprintf("Message exchange: %d tokens used", result.TotalTokens),
			map[string]interface{}{
				"prompt_tokens":     result.PromptTokens,
				"completion_tokens": result.CompletionTokens,
				"total_tokens":      result.TotalTokens,
				"message_count":     s.MessageCount,
			}); err != nil {
			return err
		}

		reply = &Reply{
			Role:      models.RoleAssistant,
			Content:   result.Content,
			Tokens:    result.CompletionTokens,
			CreatedAt: aiMsg.CreatedAt,
			Usage:     usage,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chat: commit exchange for %s: %w", sessionID, err)
	}

	log.Printf("chat: exchange complete for %s: %d/%d tokens used",
		sessionID, s.TokensUsed, s.TokenBudget)
	return reply, nil
}

// Conversation returns the stored exchange history for a session.
func (svc *Service) Conversation(db *gorm.DB, sessionID string) ([]models.Message, error) {
	return session.Messages(db, sessionID)
}
