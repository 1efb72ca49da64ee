package challenge

import (
	"errors"
	"testing"

	"github.com/parleyhq/parley/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openChallengeTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Challenge{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func TestCreateAndGet(t *testing.T) {
	db := openChallengeTestDB(t)
	c := &models.Challenge{
		Title:        "Two Sum",
		Description:  "Classic warmup",
		Category:     models.CategoryAlgorithms,
		Difficulty:   models.DifficultyEasy,
		Instructions: "Find two numbers that sum to the target.",
	}
	if err := Create(db, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := Get(db, c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Two Sum" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := openChallengeTestDB(t)
	if err := Create(db, &models.Challenge{Instructions: "x"}); err == nil {
		t.Error("expected error for missing title")
	}
	if err := Create(db, &models.Challenge{Title: "x"}); err == nil {
		t.Error("expected error for missing instructions")
	}
}

func TestGet_NotFound(t *testing.T) {
	db := openChallengeTestDB(t)
	if _, err := Get(db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSeedTemplates_Idempotent(t *testing.T) {
	db := openChallengeTestDB(t)
	if err := SeedTemplates(db); err != nil {
		t.Fatalf("SeedTemplates: %v", err)
	}
	if err := SeedTemplates(db); err != nil {
		t.Fatalf("second SeedTemplates: %v", err)
	}

	var count int64
	db.Model(&models.Challenge{}).Count(&count)
	if count != 3 {
		t.Errorf("challenges = %d, want 3", count)
	}
}

func TestList_FiltersByCategory(t *testing.T) {
	db := openChallengeTestDB(t)
	if err := SeedTemplates(db); err != nil {
		t.Fatalf("SeedTemplates: %v", err)
	}

	all, err := List(db, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len = %d, want 3", len(all))
	}

	debugging, err := List(db, models.CategoryDebugging)
	if err != nil {
		t.Fatalf("List debugging: %v", err)
	}
	if len(debugging) != 1 {
		t.Errorf("len = %d, want 1", len(debugging))
	}

	// Inactive challenges are hidden.
	if err := db.Model(&models.Challenge{}).
		Where("category = ?", models.CategoryDebugging).
		Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	debugging, err = List(db, models.CategoryDebugging)
	if err != nil {
		t.Fatalf("List after deactivate: %v", err)
	}
	if len(debugging) != 0 {
		t.Errorf("len = %d, want 0", len(debugging))
	}
}
