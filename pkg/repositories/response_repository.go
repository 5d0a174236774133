package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pairlink-inc/pairlink-engine/pkg/database"
	"github.com/pairlink-inc/pairlink-engine/pkg/models"
)

// ResponseRepository defines data access for test responses.
type ResponseRepository interface {
	// Upsert writes a response keyed by (session, user, question),
	// overwriting any prior answer to the same question.
	Upsert(ctx context.Context, response *models.Response) error

	// ListBySession returns all responses across both users.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Response, error)

	// ListBySessionAndUser returns one user's responses (resume support).
	ListBySessionAndUser(ctx context.Context, sessionID, userID uuid.UUID) ([]*models.Response, error)
}

type responseRepository struct {
	db *database.DB
}

// NewResponseRepository creates a new response repository.
func NewResponseRepository(db *database.DB) ResponseRepository {
	return &responseRepository{db: db}
}

var _ ResponseRepository = (*responseRepository)(nil)

func (r *responseRepository) Upsert(ctx context.Context, response *models.Response) error {
	if response.QuestionID == uuid.Nil {
		return fmt.Errorf("question id is required")
	}
	if response.ID == uuid.Nil {
		response.ID = uuid.New()
	}
	now := time.Now()

	query := `
		INSERT INTO responses (id, session_id, user_id, question_id, response_text, selected_option, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (session_id, user_id, question_id) DO UPDATE
		SET response_text = EXCLUDED.response_text,
		    selected_option = EXCLUDED.selected_option,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		response.ID,
		response.SessionID,
		response.UserID,
		response.QuestionID,
		response.ResponseText,
		response.SelectedOption,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert response: %w", err)
	}

	return nil
}

func (r *responseRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Response, error) {
	query := `
		SELECT id, session_id, user_id, question_id, response_text, selected_option, created_at, updated_at
		FROM responses
		WHERE session_id = $1
		ORDER BY created_at`

	return r.list(ctx, query, sessionID)
}

func (r *responseRepository) ListBySessionAndUser(ctx context.Context, sessionID, userID uuid.UUID) ([]*models.Response, error) {
	query := `
		SELECT id, session_id, user_id, question_id, response_text, selected_option, created_at, updated_at
		FROM responses
		WHERE session_id = $1 AND user_id = $2
		ORDER BY created_at`

	return r.list(ctx, query, sessionID, userID)
}

func (r *responseRepository) list(ctx context.Context, query string, args ...any) ([]*models.Response, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	var responses []*models.Response
	for rows.Next() {
		var resp models.Response
		if err := rows.Scan(&resp.ID, &resp.SessionID, &resp.UserID, &resp.QuestionID, &resp.ResponseText, &resp.SelectedOption, &resp.CreatedAt, &resp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		responses = append(responses, &resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read responses: %w", err)
	}

	return responses, nil
}
