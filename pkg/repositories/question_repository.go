package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pairlink-inc/pairlink-engine/pkg/database"
	"github.com/pairlink-inc/pairlink-engine/pkg/models"
)

// QuestionRepository provides read-only access to the static test questions.
type QuestionRepository interface {
	List(ctx context.Context) ([]*models.TestQuestion, error)
}

type questionRepository struct {
	db *database.DB
}

// NewQuestionRepository creates a new question repository.
func NewQuestionRepository(db *database.DB) QuestionRepository {
	return &questionRepository{db: db}
}

var _ QuestionRepository = (*questionRepository)(nil)

func (r *questionRepository) List(ctx context.Context) ([]*models.TestQuestion, error) {
	query := `
		SELECT id, question_text, question_type, options, created_at
		FROM test_questions
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []*models.TestQuestion
	for rows.Next() {
		var q models.TestQuestion
		var options []byte
		if err := rows.Scan(&q.ID, &q.Text, &q.Type, &options, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if len(options) > 0 {
			if err := json.Unmarshal(options, &q.Options); err != nil {
				return nil, fmt.Errorf("failed to unmarshal question options: %w", err)
			}
		}
		questions = append(questions, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	return questions, nil
}
