package models

import "github.com/google/uuid"

// NewID generates a unique identifier for a new record.
func NewID() string {
	return uuid.New().String()
}
