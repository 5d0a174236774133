// Package models contains domain types for pairlink-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipStatus is the lifecycle status of a pairing between two users.
type RelationshipStatus string

const (
	// RelationshipPending means a request was sent and awaits the receiver's decision.
	RelationshipPending RelationshipStatus = "pending"
	// RelationshipAccepted means both users are actively paired.
	RelationshipAccepted RelationshipStatus = "accepted"
	// RelationshipEnded means a previously accepted pairing was ended.
	// Ended records are retained as history.
	RelationshipEnded RelationshipStatus = "ended"
)

// Role identifies which side of a relationship a user is on.
// The sender is always PartyA and the receiver PartyB; the assignment is
// fixed at request time and never changes.
type Role string

const (
	RolePartyA Role = "party_a"
	RolePartyB Role = "party_b"
)

// Relationship is a pairing record between two users.
//
// Valid transitions: pending → accepted (receiver accepts),
// accepted → ended (either party ends). A declined pending request is
// deleted, not retained.
type Relationship struct {
	ID         uuid.UUID          `json:"id"`
	SenderID   uuid.UUID          `json:"sender_id"`
	ReceiverID uuid.UUID          `json:"receiver_id"`
	Status     RelationshipStatus `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// Involves reports whether the user is a party to this relationship.
func (r *Relationship) Involves(userID uuid.UUID) bool {
	return r.SenderID == userID || r.ReceiverID == userID
}

// RoleOf resolves the user's role in this relationship.
// The second return value is false if the user is not a party.
func (r *Relationship) RoleOf(userID uuid.UUID) (Role, bool) {
	switch userID {
	case r.SenderID:
		return RolePartyA, true
	case r.ReceiverID:
		return RolePartyB, true
	default:
		return "", false
	}
}

// OtherParty returns the id of the other user in the relationship.
func (r *Relationship) OtherParty(userID uuid.UUID) uuid.UUID {
	if r.SenderID == userID {
		return r.ReceiverID
	}
	return r.SenderID
}
