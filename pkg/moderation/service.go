package moderation

import (
	"errors"

	"coachdesk-backend/pkg/access"
	"coachdesk-backend/pkg/database"

	"github.com/sirupsen/logrus"
)

// Errors surfaced by the moderation state machines. Handlers map
// ErrSelfSuspension and ErrInvalidTransition to 4xx; everything else is a
// fault.
var (
	ErrSelfSuspension    = errors.New("actors cannot suspend themselves")
	ErrInvalidTransition = errors.New("invalid report transition")
)

// Service drives the two moderation machines (per-actor suspension and
// report triage) and composes the send-message gate. Both machines push all
// cross-request coordination into the row store; the service itself holds no
// mutable state.
type Service struct {
	db       database.DatabaseInterface
	resolver *access.Resolver
	log      *logrus.Logger
}

// NewService creates the moderation service.
func NewService(db database.DatabaseInterface, resolver *access.Resolver, log *logrus.Logger) *Service {
	return &Service{db: db, resolver: resolver, log: log}
}
