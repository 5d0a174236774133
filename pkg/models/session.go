package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle status of a compatibility test session.
type SessionStatus string

const (
	// SessionInProgress means responses are still being collected.
	SessionInProgress SessionStatus = "in_progress"
	// SessionScoring is a transient internal state: one submission has
	// claimed the session for scoring. Only one concurrent caller can hold
	// the claim; stale claims expire and may be re-claimed.
	SessionScoring SessionStatus = "scoring"
	// SessionCompleted means a result has been persisted. Terminal.
	SessionCompleted SessionStatus = "completed"
)

// Session is one compatibility test attempt, tied 1:1 to an accepted
// relationship. Completion flags follow the relationship's fixed role
// assignment: PartyA is the request sender, PartyB the receiver.
type Session struct {
	ID              uuid.UUID     `json:"id"`
	RelationshipID  uuid.UUID     `json:"relationship_id"`
	Status          SessionStatus `json:"status"`
	PartyACompleted bool          `json:"party_a_completed"`
	PartyBCompleted bool          `json:"party_b_completed"`
	Score           int           `json:"score"`
	ClaimedAt       *time.Time    `json:"claimed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// BothCompleted reports whether both parties have finished submitting.
func (s *Session) BothCompleted() bool {
	return s.PartyACompleted && s.PartyBCompleted
}

// CompletedFor reports whether the given role has finished submitting.
func (s *Session) CompletedFor(role Role) bool {
	if role == RolePartyA {
		return s.PartyACompleted
	}
	return s.PartyBCompleted
}
