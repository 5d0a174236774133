package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pairlink-inc/pairlink-engine/pkg/apperrors"
	"github.com/pairlink-inc/pairlink-engine/pkg/database"
	"github.com/pairlink-inc/pairlink-engine/pkg/models"
)

// TopCouple is one leaderboard row: a completed session joined to its
// relationship's party ids.
type TopCouple struct {
	SessionID      uuid.UUID `json:"session_id"`
	RelationshipID uuid.UUID `json:"relationship_id"`
	PartyAID       uuid.UUID `json:"party_a_id"`
	PartyBID       uuid.UUID `json:"party_b_id"`
	Score          int       `json:"score"`
	CompletedAt    time.Time `json:"completed_at"`
}

// SessionRepository defines data access for compatibility test sessions.
// All state transitions are conditional updates so concurrent submissions
// serialize at the storage layer, not in process memory.
type SessionRepository interface {
	// FindOrCreate returns the session for the relationship, creating it
	// atomically if absent. Safe under concurrent calls from both partners.
	FindOrCreate(ctx context.Context, relationshipID uuid.UUID) (*models.Session, error)

	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetByRelationship(ctx context.Context, relationshipID uuid.UUID) (*models.Session, error)

	// MarkCompleted sets the completion flag for the given role. Flipping a
	// flag that is already true is a no-op, not an error.
	MarkCompleted(ctx context.Context, sessionID uuid.UUID, role models.Role) error

	// ClaimScoring attempts the conditional in_progress → scoring transition.
	// A stale claim older than claimExpiry may be re-claimed (self-healing
	// after a crash mid-scoring). Returns false if another caller holds the claim
	// or the session is already completed.
	ClaimScoring(ctx context.Context, sessionID uuid.UUID, claimExpiry time.Duration) (bool, error)

	// ReleaseClaim reverts scoring → in_progress. Used only when persisting
	// the result fails after a claim was taken.
	ReleaseClaim(ctx context.Context, sessionID uuid.UUID) error

	// CompleteWithResult persists the result and transitions scoring →
	// completed in a single transaction. Returns apperrors.ErrDuplicateResult
	// if a result already exists for the session.
	CompleteWithResult(ctx context.Context, sessionID uuid.UUID, analysis *models.Analysis) (*models.Result, error)

	// TopCouples returns the highest-scoring completed sessions.
	TopCouples(ctx context.Context, limit int) ([]TopCouple, error)
}

type sessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *database.DB) SessionRepository {
	return &sessionRepository{db: db}
}

var _ SessionRepository = (*sessionRepository)(nil)

const sessionColumns = `id, relationship_id, status, party_a_completed, party_b_completed, score, claimed_at, created_at, updated_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(
		&s.ID,
		&s.RelationshipID,
		&s.Status,
		&s.PartyACompleted,
		&s.PartyBCompleted,
		&s.Score,
		&s.ClaimedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &s, nil
}

func (r *sessionRepository) FindOrCreate(ctx context.Context, relationshipID uuid.UUID) (*models.Session, error) {
	// The unique constraint on relationship_id makes the insert race-safe:
	// concurrent callers both reach the select and see the same row.
	insert := `
		INSERT INTO sessions (id, relationship_id)
		VALUES ($1, $2)
		ON CONFLICT (relationship_id) DO NOTHING`

	if _, err := r.db.Exec(ctx, insert, uuid.New(), relationshipID); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return r.GetByRelationship(ctx, relationshipID)
}

func (r *sessionRepository) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSession(r.db.QueryRow(ctx, query, id))
}

func (r *sessionRepository) GetByRelationship(ctx context.Context, relationshipID uuid.UUID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE relationship_id = $1`
	return scanSession(r.db.QueryRow(ctx, query, relationshipID))
}

func (r *sessionRepository) MarkCompleted(ctx context.Context, sessionID uuid.UUID, role models.Role) error {
	column := "party_a_completed"
	if role == models.RolePartyB {
		column = "party_b_completed"
	}

	// Conditional on the flag being false so resubmission is a clean no-op.
	query := fmt.Sprintf(`
		UPDATE sessions
		SET %s = TRUE, updated_at = now()
		WHERE id = $1 AND %s = FALSE`, column, column)

	if _, err := r.db.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to mark completion: %w", err)
	}
	return nil
}

func (r *sessionRepository) ClaimScoring(ctx context.Context, sessionID uuid.UUID, claimExpiry time.Duration) (bool, error) {
	staleBefore := time.Now().Add(-claimExpiry)

	query := `
		UPDATE sessions
		SET status = 'scoring', claimed_at = now(), updated_at = now()
		WHERE id = $1
		  AND (status = 'in_progress'
		    OR (status = 'scoring' AND claimed_at < $2))`

	result, err := r.db.Exec(ctx, query, sessionID, staleBefore)
	if err != nil {
		return false, fmt.Errorf("failed to claim session for scoring: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

func (r *sessionRepository) ReleaseClaim(ctx context.Context, sessionID uuid.UUID) error {
	query := `
		UPDATE sessions
		SET status = 'in_progress', claimed_at = NULL, updated_at = now()
		WHERE id = $1 AND status = 'scoring'`

	if _, err := r.db.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to release scoring claim: %w", err)
	}
	return nil
}

func (r *sessionRepository) CompleteWithResult(ctx context.Context, sessionID uuid.UUID, analysis *models.Analysis) (*models.Result, error) {
	strengths, err := json.Marshal(analysis.Strengths)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal strengths: %w", err)
	}
	weaknesses, err := json.Marshal(analysis.Weaknesses)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal weaknesses: %w", err)
	}
	suggestions, err := json.Marshal(analysis.Suggestions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal suggestions: %w", err)
	}

	result := &models.Result{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Score:       analysis.Score,
		Strengths:   analysis.Strengths,
		Weaknesses:  analysis.Weaknesses,
		Suggestions: analysis.Suggestions,
		CreatedAt:   time.Now(),
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insert := `
		INSERT INTO results (id, session_id, score, strengths, weaknesses, suggestions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := tx.Exec(ctx, insert, result.ID, result.SessionID, result.Score, strengths, weaknesses, suggestions, result.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, apperrors.ErrDuplicateResult
		}
		return nil, fmt.Errorf("failed to insert result: %w", err)
	}

	update := `
		UPDATE sessions
		SET status = 'completed', score = $2, claimed_at = NULL, updated_at = now()
		WHERE id = $1 AND status = 'scoring'`

	updated, err := tx.Exec(ctx, update, sessionID, result.Score)
	if err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}
	if updated.RowsAffected() == 0 {
		return nil, apperrors.ErrConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit scoring transaction: %w", err)
	}

	return result, nil
}

func (r *sessionRepository) TopCouples(ctx context.Context, limit int) ([]TopCouple, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT s.id, s.relationship_id, r.sender_id, r.receiver_id, s.score, s.updated_at
		FROM sessions s
		JOIN relationships r ON r.id = s.relationship_id
		WHERE s.status = 'completed'
		ORDER BY s.score DESC, s.updated_at ASC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top couples: %w", err)
	}
	defer rows.Close()

	var couples []TopCouple
	for rows.Next() {
		var c TopCouple
		if err := rows.Scan(&c.SessionID, &c.RelationshipID, &c.PartyAID, &c.PartyBID, &c.Score, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan top couple: %w", err)
		}
		couples = append(couples, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read top couples: %w", err)
	}

	return couples, nil
}
