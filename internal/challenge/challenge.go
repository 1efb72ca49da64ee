// Package challenge manages the coding challenge catalog that sessions can
// be bound to.
package challenge

import (
	"errors"
	"fmt"
	"log"

	"github.com/parleyhq/parley/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no challenge exists for the given id.
var ErrNotFound = errors.New("challenge: not found")

// Get returns the challenge with the given id, or ErrNotFound.
func Get(db *gorm.DB, id string) (*models.Challenge, error) {
	var c models.Challenge
	if err := db.First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("challenge: get %s: %w", id, err)
	}
	return &c, nil
}

// List returns active challenges, optionally filtered by category.
func List(db *gorm.DB, category models.ChallengeCategory) ([]models.Challenge, error) {
	query := db.Model(&models.Challenge{}).Where("is_active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var challenges []models.Challenge
	if err := query.Order("created_at ASC").Find(&challenges).Error; err != nil {
		return nil, fmt.Errorf("challenge: list: %w", err)
	}
	return challenges, nil
}

// Create stores a new challenge.
func Create(db *gorm.DB, c *models.Challenge) error {
	if c.Title == "" {
		return fmt.Errorf("challenge: title is required")
	}
	if c.Instructions == "" {
		return fmt.Errorf("challenge: instructions are required")
	}
	if c.ID == "" {
		c.ID = models.NewID()
	}
	c.IsActive = true
	if err := db.Create(c).Error; err != nil {
		return fmt.Errorf("challenge: create: %w", err)
	}
	return nil
}

// SeedTemplates inserts the built-in challenge templates if none exist yet.
// Safe to call on every startup.
func SeedTemplates(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Challenge{}).Where("is_template = ?", true).Count(&count).Error; err != nil {
		return fmt.Errorf("challenge: count templates: %w", err)
	}
	if count > 0 {
		return nil
	}

	templates := []models.Challenge{
		{
			ID:          models.NewID(),
			Title:       "Rate Limiter",
			Description: "Implement a per-client rate limiter for an API gateway.",
			Category:    models.CategoryAlgorithms,
			Difficulty: models.DifficultyMedium,
			Instructions: "Design and implement a rate limiter that allows at most N requests " +
				"per rolling time window per client. Discuss the trade-offs between fixed " +
				"windows, sliding windows, and token buckets, then implement the approach " +
				"you consider best for an API gateway.",
			StarterCode: "type RateLimiter interface {\n\tAllow(clientID string) bool\n}\n",
			Hints:       `["Think about what state you need per client.","How does memory grow with the number of clients?"]`,
			IsTemplate:  true,
			IsActive:    true,
		},
		{
			ID:          models.NewID(),
			Title:       "Log File Aggregator",
			Description: "Design a near-real-time log aggregation pipeline.",
			Category:    models.CategorySystemDesign,
			Difficulty: models.DifficultyMedium,
			Instructions: "You receive log lines from hundreds of servers. Design a system " +
				"that aggregates them into per-minute error-rate metrics with at most one " +
				"minute of delay. Walk through ingestion, ordering, late arrivals, and " +
				"failure handling.",
			Hints:      `["Start with the data volume.","What happens when one server clock is skewed?"]`,
			IsTemplate: true,
			IsActive:   true,
		},
		{
			ID:          models.NewID(),
			Title:       "Flaky Test Debugging",
			Description: "Diagnose an intermittently failing CI test suite.",
			Category:    models.CategoryDebugging,
			Difficulty: models.DifficultyHard,
			Instructions: "A test suite passes locally but fails roughly one run in five on " +
				"CI, always in a different test. Describe, step by step, how you would " +
				"track down the cause. Cover shared state, timing, and environment " +
				"differences, and say what evidence would confirm each hypothesis.",
			Hints:      `["What changes between runs?","Can the tests observe each other?"]`,
			IsTemplate: true,
			IsActive:   true,
		},
	}

	for i := range templates {
		if err := db.Create(&templates[i]).Error; err != nil {
			return fmt.Errorf("challenge: seed %q: %w", templates[i].Title, err)
		}
	}
	log.Printf("challenge: seeded %d templates", len(templates))
	return nil
}
