package model

import (
	"time"

	"github.com/google/uuid"
)

// TestStatus enumerates the possible states of a test.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
	TestStatusArchived  TestStatus = "ARCHIVED"
)

// QuestionSelection enumerates how a test picks its question set.
type QuestionSelection string

const (
	// SelectionManual uses the curated test_questions list in order.
	SelectionManual QuestionSelection = "MANUAL"
	// SelectionRandom samples question_count questions from the subject bank.
	SelectionRandom QuestionSelection = "RANDOM"
	// SelectionMixed uses the manual list and fills the remainder randomly.
	SelectionMixed QuestionSelection = "MIXED"
)

// Test is the catalog configuration for a timed test. The session engine
// treats it as immutable for the lifetime of a session; only the rolling
// Stats block is written after creation, and only through atomic updates.
type Test struct {
	ID                uuid.UUID         `json:"id"`
	OwnerID           int               `json:"owner_id"`
	SubjectID         *uuid.UUID        `json:"subject_id,omitempty"`
	Title             string            `json:"title"`
	Status            TestStatus        `json:"status"`
	DurationMinutes   int               `json:"duration_minutes"`
	PassingScore      int               `json:"passing_score"`
	AccessCode        string            `json:"access_code,omitempty"`
	ScheduledStart    *time.Time        `json:"scheduled_start,omitempty"`
	ScheduledEnd      *time.Time        `json:"scheduled_end,omitempty"`
	QuestionSelection QuestionSelection `json:"question_selection"`
	QuestionCount     int               `json:"question_count"`
	Stats             TestStats         `json:"stats"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// TestStats is the rolling score statistic block maintained per test.
// Mean and M2 follow Welford's online algorithm so variance stays
// numerically stable over many completions.
type TestStats struct {
	Attempts     int     `json:"attempts"`
	MeanScore    float64 `json:"mean_score"`
	M2           float64 `json:"-"`
	HighestScore float64 `json:"highest_score"`
	LowestScore  float64 `json:"lowest_score"`
}

// Variance returns the sample variance of recorded scores.
func (s TestStats) Variance() float64 {
	if s.Attempts < 2 {
		return 0
	}
	return s.M2 / float64(s.Attempts-1)
}

// RequiresAccessCode reports whether the test gates entry behind a code.
func (t *Test) RequiresAccessCode() bool {
	return t.AccessCode != ""
}

// DurationSeconds returns the session time budget in seconds.
func (t *Test) DurationSeconds() int {
	return t.DurationMinutes * 60
}
