package models

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType distinguishes multiple-choice questions from free-text ones.
type QuestionType string

const (
	QuestionChoice   QuestionType = "choice"
	QuestionFreeText QuestionType = "free_text"
)

// TestQuestion is static reference data, read-only to the engine.
type TestQuestion struct {
	ID        uuid.UUID    `json:"id"`
	Text      string       `json:"text"`
	Type      QuestionType `json:"type"`
	Options   []string     `json:"options,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
