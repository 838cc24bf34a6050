package service

import (
	"strings"

	"github.com/testnest/cbt-backend/internal/model"
)

// evaluateAnswer grades a single submission against the stored question
// definition. Pure function, no side effects.
//
// Multiple choice is correct iff the submitted value equals the id of the
// option flagged correct. True/false compares case-insensitively after
// trimming. Every other type returns ErrRequiresManualGrading so the
// caller fails loudly instead of recording a silent zero.
func evaluateAnswer(q *model.Question, submittedValue string) (isCorrect bool, pointsAwarded float64, err error) {
	switch q.QuestionType {
	case model.QuestionTypeMultipleChoice:
		isCorrect = strings.TrimSpace(submittedValue) == q.CorrectValue
	case model.QuestionTypeTrueFalse:
		isCorrect = strings.EqualFold(
			strings.TrimSpace(submittedValue),
			strings.TrimSpace(q.CorrectValue),
		)
	default:
		return false, 0, ErrRequiresManualGrading
	}

	if isCorrect {
		pointsAwarded = q.Points
	}
	return isCorrect, pointsAwarded, nil
}
