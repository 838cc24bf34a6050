package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/testnest/cbt-backend/internal/model"
)

// analyticsReader serves the test-level aggregate query.
type analyticsReader interface {
	GetTestAggregates(ctx context.Context, testID uuid.UUID, ownerID int) (*model.TestAnalytics, error)
}

// completedSessionReader streams completed sessions for the per-question
// breakdown.
type completedSessionReader interface {
	ListCompletedByTest(ctx context.Context, testID uuid.UUID) ([]model.TestSession, error)
}

// AnalyticsService derives test-level and question-level statistics from
// completed sessions. Strictly read-only: it never mutates session state.
type AnalyticsService struct {
	reader   analyticsReader
	sessions completedSessionReader
	catalog  testCatalog
	log      zerolog.Logger
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(reader analyticsReader, sessions completedSessionReader, catalog testCatalog, log zerolog.Logger) *AnalyticsService {
	return &AnalyticsService{
		reader:   reader,
		sessions: sessions,
		catalog:  catalog,
		log:      log.With().Str("component", "analytics_service").Logger(),
	}
}

// GetTestAnalytics returns the aggregate summary for an owned test. A test
// with no sessions yields a well-defined zero-valued record.
func (s *AnalyticsService) GetTestAnalytics(ctx context.Context, testID uuid.UUID, ownerID int) (*model.TestAnalytics, error) {
	if err := s.checkOwnership(ctx, testID, ownerID); err != nil {
		return nil, err
	}
	a, err := s.reader.GetTestAggregates(ctx, testID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return a, nil
}

// GetQuestionBreakdown computes per-question attempt/correct counts and
// average time spent across every completed session's answers, sorted
// ascending by success rate so the hardest questions come first.
func (s *AnalyticsService) GetQuestionBreakdown(ctx context.Context, testID uuid.UUID, ownerID int) ([]model.QuestionStat, error) {
	if err := s.checkOwnership(ctx, testID, ownerID); err != nil {
		return nil, err
	}

	sessions, err := s.sessions.ListCompletedByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	type acc struct {
		attempts  int
		correct   int
		totalTime int
	}
	byQuestion := make(map[uuid.UUID]*acc)
	for _, sess := range sessions {
		for qid, answer := range sess.Answers {
			a := byQuestion[qid]
			if a == nil {
				a = &acc{}
				byQuestion[qid] = a
			}
			a.attempts++
			if answer.IsCorrect {
				a.correct++
			}
			a.totalTime += answer.TimeSpentSeconds
		}
	}

	stats := make([]model.QuestionStat, 0, len(byQuestion))
	for qid, a := range byQuestion {
		stat := model.QuestionStat{
			QuestionID:   qid,
			Attempts:     a.attempts,
			CorrectCount: a.correct,
		}
		if a.attempts > 0 {
			stat.SuccessRate = float64(a.correct) / float64(a.attempts)
			stat.AverageTimeSpent = float64(a.totalTime) / float64(a.attempts)
		}
		stats = append(stats, stat)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].SuccessRate != stats[j].SuccessRate {
			return stats[i].SuccessRate < stats[j].SuccessRate
		}
		if stats[i].Attempts != stats[j].Attempts {
			return stats[i].Attempts > stats[j].Attempts
		}
		return stats[i].QuestionID.String() < stats[j].QuestionID.String()
	})
	return stats, nil
}

// checkOwnership verifies the test exists and belongs to ownerID,
// reporting both failures as ErrNotFound.
func (s *AnalyticsService) checkOwnership(ctx context.Context, testID uuid.UUID, ownerID int) error {
	t, err := s.catalog.GetTestConfigFresh(ctx, testID)
	if err != nil {
		return err
	}
	if t.OwnerID != ownerID {
		return ErrNotFound
	}
	return nil
}
