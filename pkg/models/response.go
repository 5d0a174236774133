package models

import (
	"time"

	"github.com/google/uuid"
)

// Response is one user's answer to one question within a session.
// Unique per (session, user, question); resubmission overwrites.
type Response struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"session_id"`
	UserID         uuid.UUID `json:"user_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	ResponseText   string    `json:"response_text,omitempty"`
	SelectedOption string    `json:"selected_option,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Answer returns the effective answer text: the selected option for choice
// questions, otherwise the free-text response.
func (r *Response) Answer() string {
	if r.SelectedOption != "" {
		return r.SelectedOption
	}
	return r.ResponseText
}

// PairedResponse is one question both parties answered, in scoring input form.
type PairedResponse struct {
	QuestionID   uuid.UUID `json:"question_id"`
	PartyAAnswer string    `json:"party_a_answer"`
	PartyBAnswer string    `json:"party_b_answer"`
}
