package moderation

import (
	"fmt"

	"coachdesk-backend/pkg/access"
	"coachdesk-backend/pkg/models"

	"github.com/sirupsen/logrus"
)

// CanSendMessage composes the three independent send gates in order: base
// resolver write on the thread's student, no current suspension in the
// thread's workspace, thread not frozen. Any failing gate short-circuits
// with its own reason code; no gate is skipped because an earlier one
// passed.
func (s *Service) CanSendMessage(actorID, actorEmail, threadID string) (access.Verdict, *models.Thread, error) {
	thread, err := s.db.GetThreadByID(threadID)
	if err != nil {
		return access.Verdict{}, nil, fmt.Errorf("send gate: %w", err)
	}

	verdict, err := s.resolver.ResolveAccess(actorID, thread.StudentID, actorEmail, "messaging")
	if err != nil {
		return access.Verdict{}, nil, err
	}
	if !verdict.CanWrite {
		return verdict, thread, nil
	}

	suspended, err := s.db.IsActorSuspended(thread.WorkspaceID, actorID)
	if err != nil {
		return access.Verdict{}, nil, fmt.Errorf("send gate: %w", err)
	}
	if suspended {
		return s.blocked(actorID, threadID, access.ReasonSuspended), thread, nil
	}

	if thread.Frozen() {
		return s.blocked(actorID, threadID, access.ReasonThreadFrozen), thread, nil
	}

	return verdict, thread, nil
}

func (s *Service) blocked(actorID, threadID string, reason access.ReasonCode) access.Verdict {
	s.log.WithFields(logrus.Fields{
		"actor_id":  actorID,
		"thread_id": threadID,
		"reason":    string(reason),
	}).Info("message send blocked")
	return access.Verdict{Reason: reason}
}
