package models

import "time"

type ParentLinkStatus string

const (
	ParentLinkActive  ParentLinkStatus = "active"
	ParentLinkRevoked ParentLinkStatus = "revoked"
)

// ModulePermissions gates sub-areas of a student record for a parent link.
// Link existence and module grant are independent checks.
type ModulePermissions struct {
	Messaging bool `json:"messaging" db:"perm_messaging"`
	Events    bool `json:"events" db:"perm_events"`
	Reports   bool `json:"reports" db:"perm_reports"`
	Billing   bool `json:"billing" db:"perm_billing"`
}

// Allows reports whether the named module is granted. An empty module name
// means the caller did not scope the check to a sub-area.
func (p ModulePermissions) Allows(module string) bool {
	switch module {
	case "":
		return true
	case "messaging":
		return p.Messaging
	case "events":
		return p.Events
	case "reports":
		return p.Reports
	case "billing":
		return p.Billing
	default:
		return false
	}
}

// ParentLink is a read-only guardian relationship with per-module flags.
type ParentLink struct {
	ID            string            `json:"id" db:"id"`
	ParentActorID string            `json:"parent_actor_id" db:"parent_actor_id"`
	StudentID     string            `json:"student_id" db:"student_id"`
	Status        ParentLinkStatus  `json:"status" db:"status"`
	Permissions   ModulePermissions `json:"permissions"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}
