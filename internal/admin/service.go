package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/hakangoksu/user-management/internal/logging"
	"github.com/hakangoksu/user-management/internal/user"
)

// ErrNoSelection is returned when a bulk operation receives no ids.
// No partial work is attempted.
var ErrNoSelection = errors.New("no users selected")

// SessionRevoker terminates every session of a user. Satisfied by the auth
// session store.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

// Service implements the moderation operations: bulk block/unblock/delete
// and the unverified purge. Every id in a set is processed independently;
// ids that don't resolve to a user are skipped, never errors.
type Service struct {
	users    user.Store
	sessions SessionRevoker
	logger   *logging.Logger
}

func NewService(users user.Store, sessions SessionRevoker, logger *logging.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// BulkResult reports a bulk moderation outcome. Redirect means the acting
// admin's own session is gone and the UI should return to the login flow.
type BulkResult struct {
	Affected int
	Redirect bool
}

// ListUsers returns all users, most recently seen first.
func (s *Service) ListUsers(ctx context.Context) ([]*user.User, error) {
	return s.users.List(ctx)
}

// BlockUsers blocks each resolved user in ids. When the acting admin
// blocks themselves, their sessions are revoked immediately after the
// flip, not at the end of the loop. Redirect is computed from the input
// set, so selecting your own id signals a redirect even if the record was
// already gone.
func (s *Service) BlockUsers(ctx context.Context, actorID uuid.UUID, ids []uuid.UUID) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, ErrNoSelection
	}

	blocked := 0
	for _, id := range ids {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load user %s: %w", id, err)
		}

		u.Block()
		if err := s.users.Update(ctx, u); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				// Deleted between read and write; treat like an unresolved id
				continue
			}
			return nil, fmt.Errorf("failed to block user %s: %w", id, err)
		}
		blocked++

		s.logger.Info("user blocked", "user_id", id, "actor_id", actorID)

		if id == actorID {
			if err := s.sessions.RevokeAll(ctx, actorID); err != nil {
				s.logger.Error("failed to revoke own sessions after self-block", "error", err.Error())
			}
		}
	}

	return &BulkResult{
		Affected: blocked,
		Redirect: slices.Contains(ids, actorID),
	}, nil
}

// UnblockUsers clears the blocked flag on each resolved user that is
// currently blocked and recomputes their status from the confirmation
// flag. Users that were not blocked are left untouched and not counted.
func (s *Service) UnblockUsers(ctx context.Context, actorID uuid.UUID, ids []uuid.UUID) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, ErrNoSelection
	}

	unblocked := 0
	for _, id := range ids {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load user %s: %w", id, err)
		}

		if !u.IsBlocked {
			continue
		}

		u.Unblock()
		if err := s.users.Update(ctx, u); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to unblock user %s: %w", id, err)
		}
		unblocked++

		s.logger.Info("user unblocked", "user_id", id, "actor_id", actorID)
	}

	return &BulkResult{Affected: unblocked}, nil
}

// DeleteUsers hard-deletes each resolved user. Unlike self-block, the
// acting admin's sessions are revoked after the whole set is processed,
// so a self-delete still finishes the remaining ids.
func (s *Service) DeleteUsers(ctx context.Context, actorID uuid.UUID, ids []uuid.UUID) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, ErrNoSelection
	}

	deleted := 0
	for _, id := range ids {
		if err := s.users.Delete(ctx, id); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to delete user %s: %w", id, err)
		}
		deleted++

		s.logger.Info("user deleted", "user_id", id, "actor_id", actorID)
	}

	selfDeleted := slices.Contains(ids, actorID)
	if selfDeleted {
		if err := s.sessions.RevokeAll(ctx, actorID); err != nil {
			s.logger.Error("failed to revoke own sessions after self-delete", "error", err.Error())
		}
	}

	return &BulkResult{
		Affected: deleted,
		Redirect: selfDeleted,
	}, nil
}

// PurgeUnverified deletes every user still waiting on email confirmation
// and returns how many were removed.
func (s *Service) PurgeUnverified(ctx context.Context, actorID uuid.UUID) (int, error) {
	count, err := s.users.PurgeUnverified(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge unverified users: %w", err)
	}

	s.logger.Info("unverified users purged", "count", count, "actor_id", actorID)

	return count, nil
}
