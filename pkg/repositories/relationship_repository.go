package repositories

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pairlink-inc/pairlink-engine/pkg/apperrors"
	"github.com/pairlink-inc/pairlink-engine/pkg/database"
	"github.com/pairlink-inc/pairlink-engine/pkg/models"
)

// RelationshipRepository defines data access for relationship records.
type RelationshipRepository interface {
	Create(ctx context.Context, relationship *models.Relationship) error
	Get(ctx context.Context, id uuid.UUID) (*models.Relationship, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Relationship, error)

	// HasAccepted reports whether the user is a party to any accepted relationship.
	HasAccepted(ctx context.Context, userID uuid.UUID) (bool, error)

	// PendingBetween reports whether an unresolved pending request exists
	// between the two users, in either direction.
	PendingBetween(ctx context.Context, userA, userB uuid.UUID) (bool, error)

	// Accept flips pending → accepted with a conditional statement that
	// re-checks, at the storage layer, that neither party currently holds an
	// accepted relationship. The same transaction sets both parties' paired
	// projection in user_status. Returns apperrors.ErrConflict when the
	// compare-and-set loses (the record is no longer pending, or one of the
	// parties became paired since the request was sent).
	Accept(ctx context.Context, id uuid.UUID) error

	// End flips accepted → ended and clears both parties' paired projection
	// in the same transaction. Returns apperrors.ErrConflict when the record
	// is not currently accepted.
	End(ctx context.Context, id uuid.UUID) error

	// Delete removes the record (decline path - declined requests are not retained).
	Delete(ctx context.Context, id uuid.UUID) error
}

type relationshipRepository struct {
	db *database.DB
}

// NewRelationshipRepository creates a new relationship repository.
func NewRelationshipRepository(db *database.DB) RelationshipRepository {
	return &relationshipRepository{db: db}
}

var _ RelationshipRepository = (*relationshipRepository)(nil)

func (r *relationshipRepository) Create(ctx context.Context, relationship *models.Relationship) error {
	if relationship.ID == uuid.Nil {
		relationship.ID = uuid.New()
	}
	now := time.Now()
	relationship.CreatedAt = now
	relationship.UpdatedAt = now
	if relationship.Status == "" {
		relationship.Status = models.RelationshipPending
	}

	query := `
		INSERT INTO relationships (id, sender_id, receiver_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		relationship.ID,
		relationship.SenderID,
		relationship.ReceiverID,
		relationship.Status,
		relationship.CreatedAt,
		relationship.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create relationship: %w", err)
	}

	return nil
}

func (r *relationshipRepository) Get(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	query := `
		SELECT id, sender_id, receiver_id, status, created_at, updated_at
		FROM relationships
		WHERE id = $1`

	var rel models.Relationship
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rel.ID,
		&rel.SenderID,
		&rel.ReceiverID,
		&rel.Status,
		&rel.CreatedAt,
		&rel.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}

	return &rel, nil
}

func (r *relationshipRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Relationship, error) {
	query := `
		SELECT id, sender_id, receiver_id, status, created_at, updated_at
		FROM relationships
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	var relationships []*models.Relationship
	for rows.Next() {
		var rel models.Relationship
		if err := rows.Scan(&rel.ID, &rel.SenderID, &rel.ReceiverID, &rel.Status, &rel.CreatedAt, &rel.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		relationships = append(relationships, &rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read relationships: %w", err)
	}

	return relationships, nil
}

func (r *relationshipRepository) HasAccepted(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM relationships
			WHERE status = 'accepted' AND (sender_id = $1 OR receiver_id = $1)
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check accepted relationship: %w", err)
	}
	return exists, nil
}

func (r *relationshipRepository) PendingBetween(ctx context.Context, userA, userB uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM relationships
			WHERE status = 'pending'
			  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, userA, userB).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending relationship: %w", err)
	}
	return exists, nil
}

// Accept re-validates the single-active-partner invariant inside the UPDATE
// itself. Two concurrent accepts involving the same user serialize on the
// parties' user_status rows and exactly one can win.
func (r *relationshipRepository) Accept(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE relationships r
		SET status = 'accepted', updated_at = now()
		WHERE r.id = $1
		  AND r.status = 'pending'
		  AND NOT EXISTS (
			SELECT 1 FROM relationships o
			WHERE o.status = 'accepted'
			  AND (o.sender_id IN (r.sender_id, r.receiver_id)
			    OR o.receiver_id IN (r.sender_id, r.receiver_id))
		  )`

	return r.transition(ctx, id, query, true)
}

func (r *relationshipRepository) End(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE relationships
		SET status = 'ended', updated_at = now()
		WHERE id = $1 AND status = 'accepted'`

	return r.transition(ctx, id, query, false)
}

// transition runs a conditional relationship status change and the paired
// projection update in one transaction. The projection upsert goes first: it
// row-locks both parties' user_status rows, so concurrent transitions that
// share a user serialize here and the conditional UPDATE that follows sees
// the winner's committed state. A lost condition rolls the projection write
// back and returns apperrors.ErrConflict.
func (r *relationshipRepository) transition(ctx context.Context, id uuid.UUID, query string, paired bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var senderID, receiverID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT sender_id, receiver_id FROM relationships WHERE id = $1`, id).
		Scan(&senderID, &receiverID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to load relationship parties: %w", err)
	}

	// Status rows are always locked in the same order so transitions that
	// share a user cannot deadlock.
	userA, userB := orderUsers(senderID, receiverID)
	if _, err := tx.Exec(ctx, setPairedStatusQuery, userA, userB, paired); err != nil {
		return fmt.Errorf("failed to update paired status: %w", err)
	}

	result, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update relationship: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit relationship transition: %w", err)
	}
	return nil
}

func orderUsers(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

func (r *relationshipRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM relationships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
