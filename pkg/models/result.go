package models

import (
	"time"

	"github.com/google/uuid"
)

// Insight is a single strength or weakness area in an analysis.
type Insight struct {
	Area    string `json:"area"`
	Details string `json:"details"`
}

// Suggestion is a single actionable recommendation in an analysis.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Analysis is the structured output of the scoring oracle (or its fallback).
type Analysis struct {
	Score       int          `json:"score"`
	Strengths   []Insight    `json:"strengths"`
	Weaknesses  []Insight    `json:"weaknesses"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Result is the persisted compatibility report, 1:1 with a completed session.
// Created exactly once, immutable thereafter.
type Result struct {
	ID          uuid.UUID    `json:"id"`
	SessionID   uuid.UUID    `json:"session_id"`
	Score       int          `json:"score"`
	Strengths   []Insight    `json:"strengths"`
	Weaknesses  []Insight    `json:"weaknesses"`
	Suggestions []Suggestion `json:"suggestions"`
	CreatedAt   time.Time    `json:"created_at"`
}
