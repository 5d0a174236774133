package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pairlink-inc/pairlink-engine/pkg/apperrors"
	"github.com/pairlink-inc/pairlink-engine/pkg/database"
	"github.com/pairlink-inc/pairlink-engine/pkg/models"
)

// ResultRepository defines read access to persisted results. Creation happens
// inside the session repository's scoring transaction; results are immutable
// afterwards.
type ResultRepository interface {
	GetBySession(ctx context.Context, sessionID uuid.UUID) (*models.Result, error)
}

type resultRepository struct {
	db *database.DB
}

// NewResultRepository creates a new result repository.
func NewResultRepository(db *database.DB) ResultRepository {
	return &resultRepository{db: db}
}

var _ ResultRepository = (*resultRepository)(nil)

func (r *resultRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*models.Result, error) {
	query := `
		SELECT id, session_id, score, strengths, weaknesses, suggestions, created_at
		FROM results
		WHERE session_id = $1`

	var result models.Result
	var strengths, weaknesses, suggestions []byte

	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&result.ID,
		&result.SessionID,
		&result.Score,
		&strengths,
		&weaknesses,
		&suggestions,
		&result.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	if err := json.Unmarshal(strengths, &result.Strengths); err != nil {
		return nil, fmt.Errorf("failed to unmarshal strengths: %w", err)
	}
	if err := json.Unmarshal(weaknesses, &result.Weaknesses); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weaknesses: %w", err)
	}
	if err := json.Unmarshal(suggestions, &result.Suggestions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal suggestions: %w", err)
	}

	return &result, nil
}
