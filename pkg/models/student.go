package models

import "time"

// Student is the managed subject record protected by the access resolver.
// It belongs to exactly one workspace at any instant; Version backs the
// optimistic mutation guard on every write path.
type Student struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	FullName    string    `json:"full_name" db:"full_name"`
	GradeLevel  string    `json:"grade_level,omitempty" db:"grade_level"`
	Notes       string    `json:"notes,omitempty" db:"notes"`
	Version     int64     `json:"version" db:"version"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Assignment is the durable coach↔student working relationship inside an
// org workspace. Existence is the grant; there is no status column.
type Assignment struct {
	ID           string    `json:"id" db:"id"`
	StudentID    string    `json:"student_id" db:"student_id"`
	CoachActorID string    `json:"coach_actor_id" db:"coach_actor_id"`
	CreatedBy    string    `json:"created_by" db:"created_by"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// StudentAccountLink binds a signed-in actor to the student records that are
// theirs. One actor may link to several records (merged/sibling records);
// this is the strongest grant the resolver knows.
type StudentAccountLink struct {
	ID        string    `json:"id" db:"id"`
	ActorID   string    `json:"actor_id" db:"actor_id"`
	StudentID string    `json:"student_id" db:"student_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
