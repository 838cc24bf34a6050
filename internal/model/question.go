package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuestionType enumerates supported question formats. Only multiple choice
// and true/false are auto-gradable; the rest require manual grading.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionTypeEssay          QuestionType = "ESSAY"
	QuestionTypeFillBlank      QuestionType = "FILL_BLANK"
)

// Question is a question-bank entry as seen by the evaluator: the stored
// definition plus correctness data. Options is the raw option list for
// multiple choice (ids and text); CorrectValue is the correct option id
// for multiple choice or the correct boolean string for true/false.
type Question struct {
	ID           uuid.UUID       `json:"id"`
	SubjectID    uuid.UUID       `json:"subject_id"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Options      json.RawMessage `json:"options,omitempty"`
	CorrectValue string          `json:"-"`
	Points       float64         `json:"points"`
}
