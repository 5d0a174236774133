package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a message delivered to a user after a state transition.
// Delivery is fire-and-forget from the command path; failures never block it.
type Notification struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Message        string     `json:"message"`
	Type           string     `json:"type,omitempty"`
	RelationshipID *uuid.UUID `json:"relationship_id,omitempty"`
	Read           bool       `json:"read"`
	CreatedAt      time.Time  `json:"created_at"`
}
