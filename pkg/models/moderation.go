package models

import "time"

// Suspension gates the send-message capability per (workspace, actor).
// At most one active row (lifted_at IS NULL) exists per pair; reactivation
// updates the active row in place instead of inserting a duplicate.
type Suspension struct {
	ID             string     `json:"id" db:"id"`
	WorkspaceID    string     `json:"workspace_id" db:"workspace_id"`
	ActorID        string     `json:"actor_id" db:"actor_id"`
	Reason         string     `json:"reason" db:"reason"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty" db:"suspended_until"`
	CreatedBy      string     `json:"created_by" db:"created_by"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	LiftedAt       *time.Time `json:"lifted_at,omitempty" db:"lifted_at"`
	LiftedBy       *string    `json:"lifted_by,omitempty" db:"lifted_by"`
}

// Active reports whether the suspension currently bites. Expiry is soft:
// a past suspended_until never rewrites the row, it just stops matching.
func (s *Suspension) Active(now time.Time) bool {
	if s.LiftedAt != nil {
		return false
	}
	return s.SuspendedUntil == nil || s.SuspendedUntil.After(now)
}

// Thread is a message conversation scoped to a student's workspace. Freeze
// is a boolean gate orthogonal to per-actor suspension.
type Thread struct {
	ID           string     `json:"id" db:"id"`
	StudentID    string     `json:"student_id" db:"student_id"`
	WorkspaceID  string     `json:"workspace_id" db:"workspace_id"`
	Subject      string     `json:"subject" db:"subject"`
	FrozenAt     *time.Time `json:"frozen_at,omitempty" db:"frozen_at"`
	FrozenBy     *string    `json:"frozen_by,omitempty" db:"frozen_by"`
	FrozenReason string     `json:"frozen_reason,omitempty" db:"frozen_reason"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Frozen reports whether the thread gate is set.
func (t *Thread) Frozen() bool {
	return t.FrozenAt != nil
}

// Message is a single entry in a thread.
type Message struct {
	ID            string    `json:"id" db:"id"`
	ThreadID      string    `json:"thread_id" db:"thread_id"`
	SenderActorID string    `json:"sender_actor_id" db:"sender_actor_id"`
	Body          string    `json:"body" db:"body"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type ReportStatus string

const (
	ReportOpen     ReportStatus = "open"
	ReportInReview ReportStatus = "in_review"
	ReportResolved ReportStatus = "resolved"
)

// Report is a moderation complaint against a thread or a single message.
// Resolution is terminal for a report; a new report must be filed to
// reopen the conversation.
type Report struct {
	ID            string       `json:"id" db:"id"`
	ThreadID      string       `json:"thread_id" db:"thread_id"`
	MessageID     *string      `json:"message_id,omitempty" db:"message_id"`
	ReporterID    string       `json:"reporter_id" db:"reporter_id"`
	Details       string       `json:"details,omitempty" db:"details"`
	Status        ReportStatus `json:"status" db:"status"`
	FreezeApplied bool         `json:"freeze_applied" db:"freeze_applied"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at" db:"updated_at"`
}
