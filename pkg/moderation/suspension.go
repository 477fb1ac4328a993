package moderation

import (
	"errors"
	"fmt"
	"time"

	"coachdesk-backend/pkg/database"
	"coachdesk-backend/pkg/models"

	"github.com/sirupsen/logrus"
)

// Suspend places or renews a suspension for (workspaceID, actorID). If an
// active row exists its reason/expiry/creator are overwritten in place,
// preserving the one-active-row invariant without a uniqueness violation
// path. Self-suspension is rejected before any row access.
func (s *Service) Suspend(workspaceID, actorID, callerID, reason string, until *time.Time) error {
	if actorID == callerID {
		return ErrSelfSuspension
	}

	existing, err := s.db.GetActiveSuspension(workspaceID, actorID)
	switch {
	case err == nil:
		existing.Reason = reason
		existing.SuspendedUntil = until
		existing.CreatedBy = callerID
		if err := s.db.ReviseSuspension(existing); err != nil {
			return fmt.Errorf("suspend: %w", err)
		}
	case errors.Is(err, database.ErrNotFound):
		row := &models.Suspension{
			WorkspaceID:    workspaceID,
			ActorID:        actorID,
			Reason:         reason,
			SuspendedUntil: until,
			CreatedBy:      callerID,
		}
		if err := s.db.CreateSuspension(row); err != nil {
			// A concurrent suspend won the insert; overwrite its row instead.
			if errors.Is(err, database.ErrDuplicate) {
				return s.Suspend(workspaceID, actorID, callerID, reason, until)
			}
			return fmt.Errorf("suspend: %w", err)
		}
	default:
		return fmt.Errorf("suspend: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"actor_id":     actorID,
		"caller_id":    callerID,
		"until":        until,
	}).Info("actor suspended")
	return nil
}

// Lift stamps the active suspension for (workspaceID, actorID) as lifted.
// Lifting when nothing is active is a no-op.
func (s *Service) Lift(workspaceID, actorID, callerID string) error {
	lifted, err := s.db.LiftSuspension(workspaceID, actorID, callerID)
	if err != nil {
		return fmt.Errorf("lift: %w", err)
	}
	if lifted {
		s.log.WithFields(logrus.Fields{
			"workspace_id": workspaceID,
			"actor_id":     actorID,
			"caller_id":    callerID,
		}).Info("suspension lifted")
	}
	return nil
}
