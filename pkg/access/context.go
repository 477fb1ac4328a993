package access

import (
	"errors"
	"fmt"

	"coachdesk-backend/pkg/database"
	"coachdesk-backend/pkg/models"
)

// ActorContext is the resolved identity side of an access decision: the
// profile plus its active workspace. It is never returned partially filled.
type ActorContext struct {
	Actor     *models.Actor
	Workspace *models.Workspace
}

// ResolveActor loads the actor's profile and active workspace in at most two
// reads. A missing profile yields ErrProfileNotFound; any other failure is an
// infrastructure fault.
func (r *Resolver) ResolveActor(actorID string) (*ActorContext, error) {
	actor, err := r.db.GetActorByID(actorID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("resolve actor: %w", err)
	}

	workspace, err := r.db.GetWorkspaceByID(actor.ActiveWorkspaceID)
	if err != nil {
		// A profile pointing at a missing workspace is a data fault, not a
		// denial; no partial context is returned.
		return nil, fmt.Errorf("resolve actor workspace: %w", err)
	}

	return &ActorContext{Actor: actor, Workspace: workspace}, nil
}
