package models

import "time"

// ChallengeCategory groups challenges by subject area.
type ChallengeCategory string

const (
	CategoryAlgorithms     ChallengeCategory = "algorithms"
	CategoryDataStructures ChallengeCategory = "data_structures"
	CategorySystemDesign   ChallengeCategory = "system_design"
	CategoryCoding         ChallengeCategory = "coding"
	CategoryDebugging      ChallengeCategory = "debugging"
	CategoryOptimization   ChallengeCategory = "optimization"
	CategoryOther          ChallengeCategory = "other"
)

// ChallengeDifficulty rates a challenge.
type ChallengeDifficulty string

const (
	DifficultyEasy   ChallengeDifficulty = "easy"
	DifficultyMedium ChallengeDifficulty = "medium"
	DifficultyHard   ChallengeDifficulty = "hard"
)

// Challenge is an interview exercise referenced by sessions. The core reads
// challenges when assembling system context; it never writes them.
type Challenge struct {
	ID          string              `gorm:"primaryKey;size:36"`
	Title       string              `gorm:"size:255;not null"`
	Description string              `gorm:"type:text;not null"`
	Category    ChallengeCategory   `gorm:"size:32;not null;index"`
	Difficulty  ChallengeDifficulty `gorm:"size:16;not null;index"`

	Instructions string `gorm:"type:text"`
	StarterCode  string `gorm:"type:text"`
	Hints        string `gorm:"type:json"` // JSON array of hint strings

	IsTemplate bool `gorm:"default:false;index"`
	IsActive   bool `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
