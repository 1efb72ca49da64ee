package chat

import (
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/challenge"
	"github.com/parleyhq/parley/internal/models"
	"gorm.io/gorm"
)

const guidelines = `Guidelines:
- Provide helpful guidance without giving away complete solutions
- Ask clarifying questions to understand the candidate's approach
- Offer hints when the candidate is stuck
- Encourage the candidate to explain their thinking
- Help debug issues in their code
- Be supportive and constructive

Remember to track token usage and time limits.`

// systemPrompt assembles the interviewer context injected at the head of
// every API call. Challenge text on the session wins; otherwise the linked
// challenge's instructions are used.
func systemPrompt(db *gorm.DB, s *models.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an AI interviewer assistant helping a candidate with their coding interview.\n\n")
	fmt.Fprintf(&b, "Candidate: %s\n", s.CandidateName)
	fmt.Fprintf(&b, "Time Limit: %d minutes\n", s.TimeLimit/60)
	fmt.Fprintf(&b, "Token Budget: %d tokens\n\n", s.TokenBudget)

	text := s.ChallengeText
	if text == "" && s.ChallengeID != nil {
		if c, err := challenge.Get(db, *s.ChallengeID); err == nil {
			text = c.Instructions
		}
	}
	if text != "" {
		fmt.Fprintf(&b, "Challenge:\n%s\n\n", text)
	}

	b.WriteString(guidelines)
	return b.String()
}

// buildContext assembles the full API message list: system prompt followed
// by the stored conversation in order.
func buildContext(db *gorm.DB, s *models.Session) ([]models.Message, string, error) {
	var history []models.Message
	err := db.Where("session_id = ?", s.ID).Order("created_at ASC").Find(&history).Error
	if err != nil {
		return nil, "", fmt.Errorf("chat: load history for %s: %w", s.ID, err)
	}
	return history, systemPrompt(db, s), nil
}
