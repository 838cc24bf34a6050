package model

import "github.com/google/uuid"

// TestAnalytics is the aggregate view over all sessions of one test.
// A test with no sessions yields the zero value, never NaN.
type TestAnalytics struct {
	TestID            uuid.UUID `json:"test_id"`
	TotalSessions     int       `json:"total_sessions"`
	CompletedSessions int       `json:"completed_sessions"`
	AbandonedSessions int       `json:"abandoned_sessions"`
	ExpiredSessions   int       `json:"expired_sessions"`
	InProgress        int       `json:"in_progress_sessions"`
	AverageScore      float64   `json:"average_score"`
	HighestScore      float64   `json:"highest_score"`
	LowestScore       float64   `json:"lowest_score"`
	PassRate          float64   `json:"pass_rate"`
	AbandonmentRate   float64   `json:"abandonment_rate"`
	AverageDuration   float64   `json:"average_duration_seconds"`
}

// QuestionStat is the per-question breakdown over completed sessions,
// sorted hardest-first for instructor review.
type QuestionStat struct {
	QuestionID       uuid.UUID `json:"question_id"`
	Attempts         int       `json:"attempts"`
	CorrectCount     int       `json:"correct_count"`
	SuccessRate      float64   `json:"success_rate"`
	AverageTimeSpent float64   `json:"average_time_spent_seconds"`
}
