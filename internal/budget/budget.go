// Package budget tracks token consumption against a session's budget.
// Reads are pure functions of the session fields; UpdateConsumption is the
// only mutator of the token counters and must run inside the caller's
// transaction so the debit commits together with the rest of the exchange.
package budget

import (
	"fmt"

	"github.com/parleyhq/parley/internal/models"
	"github.com/parleyhq/parley/internal/timer"
	"gorm.io/gorm"
)

// Remaining returns the unspent token budget, floored at 0 even when usage
// has overshot the budget.
func Remaining(s *models.Session) int {
	remaining := s.TokenBudget - s.TokensUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PercentUsed returns consumed budget as a percentage. May exceed 100 when
// the final exchange pushed usage over the cap.
func PercentUsed(s *models.Session) float64 {
	if s.TokenBudget <= 0 {
		return 0
	}
	return float64(s.TokensUsed) / float64(s.TokenBudget) * 100
}

// Check reports whether the estimated spend fits the remaining budget. Used
// as the pre-flight gate before paying for a completion call.
func Check(s *models.Session, estimated int) bool {
	return estimated <= Remaining(s)
}

// Exhausted reports whether the budget is fully spent.
func Exhausted(s *models.Session) bool {
	return Remaining(s) <= 0
}

// Warning returns the warning level for remaining budget, using the same
// bands as the timer.
func Warning(s *models.Session) timer.Level {
	if s.TokenBudget <= 0 {
		return timer.LevelNormal
	}
	pct := float64(Remaining(s)) / float64(s.TokenBudget) * 100
	return timer.LevelForRemaining(pct)
}

// UsageSnapshot reports cumulative consumption after an update.
type UsageSnapshot struct {
	InputTokens     int     `json:"input_tokens"`
	OutputTokens    int     `json:"output_tokens"`
	TotalTokens     int     `json:"total_tokens"`
	RemainingBudget int     `json:"remaining_budget"`
	PercentUsed     float64 `json:"budget_percentage_used"`
}

// UpdateConsumption debits actual token usage, as reported by the
// completion API, against the session. It mutates the in-memory session and
// persists the counters through tx; callers run it in the same transaction
// as the message-count increment so the two can never drift.
func UpdateConsumption(tx *gorm.DB, s *models.Session, inputTokens, outputTokens int) (*UsageSnapshot, error) {
	s.InputTokens += inputTokens
	s.OutputTokens += outputTokens
	s.TokensUsed += inputTokens + outputTokens

	err := tx.Model(s).Updates(map[string]interface{}{
		"input_tokens":  s.InputTokens,
		"output_tokens": s.OutputTokens,
		"tokens_used":   s.TokensUsed,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("budget: update consumption for %s: %w", s.ID, err)
	}

	return &UsageSnapshot{
		InputTokens:     s.InputTokens,
		OutputTokens:    s.OutputTokens,
		TotalTokens:     s.TokensUsed,
		RemainingBudget: Remaining(s),
		PercentUsed:     PercentUsed(s),
	}, nil
}

// EstimateRemainingExchanges projects how many more user/assistant pairs
// the budget can fund, based on the running average cost per pair. Returns
// nil when there is no message history to average over.
func EstimateRemainingExchanges(s *models.Session) *int {
	pairs := s.MessageCount / 2
	if pairs == 0 || s.TokensUsed == 0 {
		return nil
	}
	avgPerPair := float64(s.TokensUsed) / float64(pairs)
	n := int(float64(Remaining(s)) / avgPerPair)
	return &n
}

// Stats is a detailed usage report for a session.
type Stats struct {
	SessionID           string  `json:"session_id"`
	TokenBudget         int     `json:"token_budget"`
	TokensUsed          int     `json:"tokens_used"`
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	RemainingBudget     int     `json:"remaining_budget"`
	PercentUsed         float64 `json:"percentage_used"`
	MessageCount        int     `json:"message_count"`
	AvgTokensPerMessage float64 `json:"avg_tokens_per_message"`
	RemainingExchanges  *int    `json:"estimated_remaining_exchanges"`
	Warning             string  `json:"warning_level"`
}

// StatsFor assembles usage statistics for the session.
func StatsFor(s *models.Session) Stats {
	avg := 0.0
	if s.MessageCount > 0 {
		avg = float64(s.TokensUsed) / float64(s.MessageCount)
	}
	return Stats{
		SessionID:           s.ID,
		TokenBudget:         s.TokenBudget,
		TokensUsed:          s.TokensUsed,
		InputTokens:         s.InputTokens,
		OutputTokens:        s.OutputTokens,
		RemainingBudget:     Remaining(s),
		PercentUsed:         PercentUsed(s),
		MessageCount:        s.MessageCount,
		AvgTokensPerMessage: avg,
		RemainingExchanges:  EstimateRemainingExchanges(s),
		Warning:             Warning(s).String(),
	}
}
