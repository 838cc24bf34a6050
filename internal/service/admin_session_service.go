package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/testnest/cbt-backend/internal/model"
)

// adminSessionStore is the owner-scoped session surface used by admin
// endpoints. *repository.SessionRepository satisfies it.
type adminSessionStore interface {
	ListByTest(ctx context.Context, testID uuid.UUID, ownerID int, status *model.SessionStatus, page, perPage int) ([]model.TestSession, int64, error)
	SetFlag(ctx context.Context, id uuid.UUID, ownerID int, flagged bool) (bool, error)
	SetNotes(ctx context.Context, id uuid.UUID, ownerID int, notes string) (bool, error)
}

// AdminSessionService serves the instructor-facing session views: listing
// sessions per test, flagging suspicious ones, and attaching review notes.
// Every operation is scoped to the requesting admin's own tests.
type AdminSessionService struct {
	store   adminSessionStore
	catalog testCatalog
	log     zerolog.Logger
}

// NewAdminSessionService creates a new AdminSessionService.
func NewAdminSessionService(store adminSessionStore, catalog testCatalog, log zerolog.Logger) *AdminSessionService {
	return &AdminSessionService{
		store:   store,
		catalog: catalog,
		log:     log.With().Str("component", "admin_session_service").Logger(),
	}
}

// ListByTest returns a page of sessions for an owned test, newest first,
// optionally filtered by status.
func (s *AdminSessionService) ListByTest(
	ctx context.Context,
	testID uuid.UUID,
	ownerID int,
	status *model.SessionStatus,
	page, perPage int,
) ([]model.TestSession, int64, error) {
	if err := s.checkOwnership(ctx, testID, ownerID); err != nil {
		return nil, 0, err
	}

	sessions, total, err := s.store.ListByTest(ctx, testID, ownerID, status, page, perPage)
	if err != nil {
		return nil, 0, ErrStorageUnavailable
	}
	if sessions == nil {
		sessions = []model.TestSession{}
	}
	return sessions, total, nil
}

// Flag marks or unmarks a session for review.
func (s *AdminSessionService) Flag(ctx context.Context, sessionID uuid.UUID, ownerID int, flagged bool, reason string) error {
	found, err := s.store.SetFlag(ctx, sessionID, ownerID, flagged)
	if err != nil {
		return ErrStorageUnavailable
	}
	if !found {
		return ErrNotFound
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Bool("flagged", flagged).
		Str("reason", reason).
		Msg("Session flag updated")
	return nil
}

// SetNotes replaces the reviewer notes on a session.
func (s *AdminSessionService) SetNotes(ctx context.Context, sessionID uuid.UUID, ownerID int, notes string) error {
	found, err := s.store.SetNotes(ctx, sessionID, ownerID, notes)
	if err != nil {
		return ErrStorageUnavailable
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// checkOwnership reports a missing or foreign test as ErrNotFound.
func (s *AdminSessionService) checkOwnership(ctx context.Context, testID uuid.UUID, ownerID int) error {
	t, err := s.catalog.GetTestConfigFresh(ctx, testID)
	if err != nil {
		return err
	}
	if t.OwnerID != ownerID {
		return ErrNotFound
	}
	return nil
}
