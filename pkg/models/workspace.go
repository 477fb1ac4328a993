package models

import "time"

type WorkspaceType string

const (
	WorkspacePersonal WorkspaceType = "personal"
	WorkspaceOrg      WorkspaceType = "org"
)

// Workspace is the tenancy boundary. A personal workspace has exactly one
// authorized actor (its owner); an org workspace is membership-based.
type Workspace struct {
	ID           string        `json:"id" db:"id"`
	Name         string        `json:"name" db:"name"`
	Type         WorkspaceType `json:"type" db:"type"`
	OwnerActorID string        `json:"owner_actor_id,omitempty" db:"owner_actor_id"` // personal only
	PlanTier     string        `json:"plan_tier" db:"plan_tier"`                     // "free", "pro", "team"
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

type MemberRole string

const (
	MemberAdmin MemberRole = "admin"
	MemberCoach MemberRole = "coach"
)

type MemberStatus string

const (
	MemberInvited  MemberStatus = "invited"
	MemberActive   MemberStatus = "active"
	MemberDisabled MemberStatus = "disabled"
)

// Membership relates actors to org workspaces with a role; one row per
// (workspace, actor).
type Membership struct {
	ID          string       `json:"id" db:"id"`
	WorkspaceID string       `json:"workspace_id" db:"workspace_id"`
	ActorID     string       `json:"actor_id" db:"actor_id"`
	Role        MemberRole   `json:"role" db:"role"`
	Status      MemberStatus `json:"status" db:"status"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}
