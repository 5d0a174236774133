package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pairlink-inc/pairlink-engine/pkg/database"
)

// setPairedStatusQuery upserts both parties' paired flag in one statement.
// The relationship repository runs it inside the same transaction as the
// accept/end status change, so the relationship record and the projection
// cannot drift apart.
const setPairedStatusQuery = `
	INSERT INTO user_status (user_id, paired, updated_at)
	VALUES ($1, $3, now()), ($2, $3, now())
	ON CONFLICT (user_id) DO UPDATE
	SET paired = EXCLUDED.paired, updated_at = EXCLUDED.updated_at`

// UserStatusRepository reads the "paired" projection of the profile
// aggregate. The write side lives in the relationship repository, which
// flips the flag transactionally with the accept and end transitions.
type UserStatusRepository interface {
	// IsPaired reads a user's current paired status. Unknown users are unpaired.
	IsPaired(ctx context.Context, userID uuid.UUID) (bool, error)
}

type userStatusRepository struct {
	db *database.DB
}

// NewUserStatusRepository creates a new user status repository.
func NewUserStatusRepository(db *database.DB) UserStatusRepository {
	return &userStatusRepository{db: db}
}

var _ UserStatusRepository = (*userStatusRepository)(nil)

func (r *userStatusRepository) IsPaired(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `SELECT COALESCE((SELECT paired FROM user_status WHERE user_id = $1), FALSE)`

	var paired bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&paired); err != nil {
		return false, fmt.Errorf("failed to read paired status: %w", err)
	}
	return paired, nil
}
