package service

import (
	"errors"
	"testing"

	"github.com/testnest/cbt-backend/internal/model"
)

func TestEvaluateAnswer_MultipleChoice(t *testing.T) {
	tests := []struct {
		name      string
		correct   string
		submitted string
		points    float64
		isCorrect bool
		earned    float64
	}{
		{name: "exact match", correct: "opt-b", submitted: "opt-b", points: 2, isCorrect: true, earned: 2},
		{name: "wrong option", correct: "opt-b", submitted: "opt-a", points: 2, isCorrect: false, earned: 0},
		{name: "whitespace trimmed", correct: "opt-b", submitted: "  opt-b  ", points: 1, isCorrect: true, earned: 1},
		{name: "case sensitive", correct: "opt-b", submitted: "OPT-B", points: 1, isCorrect: false, earned: 0},
		{name: "empty submission", correct: "opt-b", submitted: "", points: 1, isCorrect: false, earned: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := &model.Question{
				QuestionType: model.QuestionTypeMultipleChoice,
				CorrectValue: tc.correct,
				Points:       tc.points,
			}
			isCorrect, earned, err := evaluateAnswer(q, tc.submitted)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if isCorrect != tc.isCorrect {
				t.Errorf("isCorrect = %v, want %v", isCorrect, tc.isCorrect)
			}
			if earned != tc.earned {
				t.Errorf("pointsAwarded = %v, want %v", earned, tc.earned)
			}
		})
	}
}

func TestEvaluateAnswer_TrueFalse(t *testing.T) {
	tests := []struct {
		name      string
		correct   string
		submitted string
		isCorrect bool
	}{
		{name: "exact match", correct: "true", submitted: "true", isCorrect: true},
		{name: "case insensitive", correct: "true", submitted: "TRUE", isCorrect: true},
		{name: "mixed case with spaces", correct: "False", submitted: " false ", isCorrect: true},
		{name: "wrong answer", correct: "true", submitted: "false", isCorrect: false},
		{name: "empty submission", correct: "true", submitted: "", isCorrect: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := &model.Question{
				QuestionType: model.QuestionTypeTrueFalse,
				CorrectValue: tc.correct,
				Points:       1,
			}
			isCorrect, _, err := evaluateAnswer(q, tc.submitted)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if isCorrect != tc.isCorrect {
				t.Errorf("isCorrect = %v, want %v", isCorrect, tc.isCorrect)
			}
		})
	}
}

func TestEvaluateAnswer_ManualGradingTypes(t *testing.T) {
	for _, qt := range []model.QuestionType{
		model.QuestionTypeShortAnswer,
		model.QuestionTypeEssay,
		model.QuestionTypeFillBlank,
	} {
		t.Run(string(qt), func(t *testing.T) {
			q := &model.Question{QuestionType: qt, CorrectValue: "anything", Points: 5}
			isCorrect, earned, err := evaluateAnswer(q, "anything")
			if !errors.Is(err, ErrRequiresManualGrading) {
				t.Fatalf("err = %v, want ErrRequiresManualGrading", err)
			}
			if isCorrect || earned != 0 {
				t.Errorf("got isCorrect=%v earned=%v, want false/0", isCorrect, earned)
			}
		})
	}
}
