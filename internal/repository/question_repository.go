package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testnest/cbt-backend/internal/model"
)

// QuestionRepository is the read-only Question Bank used by the evaluator.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// GetDefinition retrieves a question's stored definition, including the
// correctness data the evaluator checks against.
func (r *QuestionRepository) GetDefinition(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, subject_id, question_text, question_type, options, correct_value, points
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.SubjectID, &q.QuestionText, &q.QuestionType, &q.Options, &q.CorrectValue, &q.Points)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return q, nil
}
