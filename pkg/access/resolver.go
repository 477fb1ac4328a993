package access

import (
	"errors"
	"fmt"

	"coachdesk-backend/pkg/database"
	"coachdesk-backend/pkg/models"

	"github.com/sirupsen/logrus"
)

// Resolver is the tenant-scoped access decision engine. It walks the
// relation kinds in a fixed precedence order and returns exactly one
// reason-coded verdict per call. It holds no mutable state and caches
// nothing: a revoked share must be visible to the very next request.
type Resolver struct {
	db  database.DatabaseInterface
	log *logrus.Logger
}

// NewResolver creates an access resolver over the relation gateway.
func NewResolver(db database.DatabaseInterface, log *logrus.Logger) *Resolver {
	return &Resolver{db: db, log: log}
}

// ResolveAccess computes the capability set for (actorID, studentID).
// actorEmail, when supplied, lets unclaimed email-addressed shares match;
// module scopes parent-link checks to a sub-area ("" means unscoped).
//
// Precedence, short-circuiting:
//  1. student account link        -> SELF (read+write)
//  2. active share (id, then email) -> SHARED (read-only)
//  3. active parent link + module -> PARENT / MODULE_FORBIDDEN (read-only)
//  4. tenant membership path      -> OWNER / MEMBER / FORBIDDEN
//
// Infrastructure faults propagate as errors and are never folded into a
// denial; callers map faults to 5xx and denials to 403.
func (r *Resolver) ResolveAccess(actorID, studentID, actorEmail, module string) (Verdict, error) {
	// 1. Direct link: the sole full-write grant outside tenant membership.
	if _, err := r.db.GetAccountLink(actorID, studentID); err == nil {
		return Verdict{CanRead: true, CanWrite: true, Reason: ReasonSelf}, nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return Verdict{}, fmt.Errorf("resolve access: account link: %w", err)
	}

	// 2. Active share. Shares never grant write; they exist precisely to let
	// a second party observe without assuming tenancy.
	share, err := r.db.GetActiveShareByViewer(studentID, actorID)
	if errors.Is(err, database.ErrNotFound) && actorEmail != "" {
		share, err = r.db.GetActiveShareByEmail(studentID, actorEmail)
	}
	if err == nil && share != nil {
		return Verdict{CanRead: true, CanWrite: false, Reason: ReasonShared}, nil
	}
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return Verdict{}, fmt.Errorf("resolve access: share: %w", err)
	}

	// 3. Parent link. Link existence and module grant are independent checks.
	link, err := r.db.GetActiveParentLink(actorID, studentID)
	if err == nil {
		if !link.Permissions.Allows(module) {
			return r.deny(actorID, studentID, module, ReasonModuleForbidden), nil
		}
		return Verdict{CanRead: true, CanWrite: false, Reason: ReasonParent}, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return Verdict{}, fmt.Errorf("resolve access: parent link: %w", err)
	}

	// 4. Tenant membership path.
	student, err := r.db.GetStudentByID(studentID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// An unknown record is indistinguishable from a forbidden one.
			return r.deny(actorID, studentID, module, ReasonForbidden), nil
		}
		return Verdict{}, fmt.Errorf("resolve access: student: %w", err)
	}

	actorCtx, err := r.ResolveActor(actorID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return r.deny(actorID, studentID, module, ReasonForbidden), nil
		}
		return Verdict{}, err
	}

	// Active workspace must match exactly; membership elsewhere is never
	// sufficient.
	if actorCtx.Actor.ActiveWorkspaceID != student.WorkspaceID {
		return r.deny(actorID, studentID, module, ReasonForbidden), nil
	}

	workspace := actorCtx.Workspace

	// 5. Personal workspace: exactly one authorized actor, no membership
	// table to consult.
	if workspace.Type == models.WorkspacePersonal {
		if actorCtx.Actor.ID == workspace.OwnerActorID {
			return Verdict{CanRead: true, CanWrite: true, Reason: ReasonOwner}, nil
		}
		return r.deny(actorID, studentID, module, ReasonForbidden), nil
	}

	// 6. Org workspace: active membership AND an assignment, both required.
	// An admin without an assignment is denied here; administrative override
	// is the calling endpoint's policy, not the resolver's.
	membership, err := r.db.GetMembership(workspace.ID, actorID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return r.deny(actorID, studentID, module, ReasonForbidden), nil
		}
		return Verdict{}, fmt.Errorf("resolve access: membership: %w", err)
	}
	if membership.Status != models.MemberActive {
		return r.deny(actorID, studentID, module, ReasonForbidden), nil
	}

	if _, err := r.db.GetAssignment(studentID, actorID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return r.deny(actorID, studentID, module, ReasonForbidden), nil
		}
		return Verdict{}, fmt.Errorf("resolve access: assignment: %w", err)
	}

	return Verdict{CanRead: true, CanWrite: true, Reason: ReasonMember}, nil
}

// deny emits the structured denial event and returns the negative verdict.
func (r *Resolver) deny(actorID, studentID, module string, reason ReasonCode) Verdict {
	r.log.WithFields(logrus.Fields{
		"actor_id":   actorID,
		"student_id": studentID,
		"module":     module,
		"reason":     string(reason),
	}).Info("access denied")
	return Verdict{Reason: reason}
}
