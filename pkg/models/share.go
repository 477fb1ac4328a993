package models

import "time"

type ShareStatus string

const (
	SharePendingOwner  ShareStatus = "pending_owner"
	SharePendingViewer ShareStatus = "pending_viewer"
	ShareActive        ShareStatus = "active"
	ShareRevoked       ShareStatus = "revoked"
)

// StudentShare is a cross-tenant, email-addressed, read-only grant. The
// viewer is addressed by email until they sign in and claim the share, at
// which point ViewerActorID is bound and the row resolves by id.
type StudentShare struct {
	ID            string      `json:"id" db:"id"`
	StudentID     string      `json:"student_id" db:"student_id"`
	OwnerActorID  string      `json:"owner_actor_id" db:"owner_actor_id"`
	ViewerActorID *string     `json:"viewer_actor_id,omitempty" db:"viewer_actor_id"`
	ViewerEmail   string      `json:"viewer_email" db:"viewer_email"`
	Token         string      `json:"token" db:"token"`
	Status        ShareStatus `json:"status" db:"status"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}
