package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testnest/cbt-backend/internal/config"
	"github.com/testnest/cbt-backend/internal/model"
	"github.com/testnest/cbt-backend/internal/repository"
)

// testStore is the slice of the catalog storage the service needs.
type testStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
	SelectQuestionIDs(ctx context.Context, t *model.Test) ([]uuid.UUID, error)
}

// CatalogService is the Test Catalog reader: test configuration lookups
// (cached), startability gating, one-shot question selection, and the
// outcome notification queue consumed by the outcome worker.
type CatalogService struct {
	tests testStore
	rdb   *redis.Client
	cfg   *config.Config
	log   zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(tests testStore, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *CatalogService {
	return &CatalogService{
		tests: tests,
		rdb:   rdb,
		cfg:   cfg,
		log:   log.With().Str("component", "catalog_service").Logger(),
	}
}

// GetTestConfig returns the test configuration through a short-TTL Redis
// read-through cache. Cache failures degrade to the database, never to an
// error. Not suitable for completion-time scoring reads — use
// GetTestConfigFresh there.
func (s *CatalogService) GetTestConfig(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	key := config.CacheKey.TestConfigKey(testID.String())

	if s.rdb != nil {
		if data, err := s.rdb.Get(ctx, key).Bytes(); err == nil {
			var t model.Test
			if err := json.Unmarshal(data, &t); err == nil {
				return &t, nil
			}
			// Corrupt entry: drop it and fall through.
			_ = s.rdb.Del(ctx, key).Err()
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("test config cache read failed")
		}
	}

	t, err := s.GetTestConfigFresh(ctx, testID)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if data, err := json.Marshal(t); err == nil {
			if err := s.rdb.Set(ctx, key, data, s.cfg.TestConfigTTL).Err(); err != nil {
				s.log.Warn().Err(err).Msg("test config cache write failed")
			}
		}
	}
	return t, nil
}

// GetTestConfigFresh reads the test configuration straight from storage.
func (s *CatalogService) GetTestConfigFresh(ctx context.Context, testID uuid.UUID) (*model.Test, error) {
	t, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return t, nil
}

// Startable checks the test's own gating: it must be published, inside its
// schedule window, and carry a sane question-count configuration.
func (s *CatalogService) Startable(t *model.Test, now time.Time) error {
	if t.Status != model.TestStatusPublished {
		return ErrTestNotStartable
	}
	if t.ScheduledStart != nil && now.Before(*t.ScheduledStart) {
		return ErrTestNotStartable
	}
	if t.ScheduledEnd != nil && now.After(*t.ScheduledEnd) {
		return ErrTestNotStartable
	}
	if t.DurationMinutes <= 0 {
		return ErrTestNotStartable
	}
	if t.QuestionSelection != model.SelectionManual && t.QuestionCount <= 0 {
		return ErrTestNotStartable
	}
	return nil
}

// SelectQuestions resolves the assigned question set for a new session.
// Called exactly once per session, at creation; resume never re-selects.
func (s *CatalogService) SelectQuestions(ctx context.Context, t *model.Test) ([]uuid.UUID, error) {
	ids, err := s.tests.SelectQuestionIDs(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, ErrTestNotStartable
	}
	return ids, nil
}

// RecordSessionOutcome enqueues the completed-session notification for the
// outcome worker. The session engine calls this exactly once per
// completion (only the CAS winner reaches it); delivery downstream is
// at-least-once with the reconcile pass bounding any drift.
func (s *CatalogService) RecordSessionOutcome(ctx context.Context, outcome model.SessionOutcome) error {
	if s.rdb == nil {
		return fmt.Errorf("%w: outcome queue not configured", ErrStorageUnavailable)
	}
	raw, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.SessionOutcomesQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue outcome: %w", err)
	}
	return nil
}
