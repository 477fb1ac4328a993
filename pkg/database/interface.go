package database

import (
	"errors"

	"coachdesk-backend/pkg/models"
)

// Sentinel errors callers branch on. Anything else coming out of the
// gateway is an infrastructure fault and must surface as 5xx, never as
// an access decision.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicate       = errors.New("duplicate row")
	ErrVersionConflict = errors.New("version conflict")
)

// DatabaseInterface is the relation gateway: narrow read functions over the
// relation tables plus the writes owned by the moderation machine and the
// optimistic guard. No business logic lives here.
type DatabaseInterface interface {
	// Profiles & workspaces
	GetActorByID(id string) (*models.Actor, error)
	GetWorkspaceByID(id string) (*models.Workspace, error)

	// Students
	GetStudentByID(id string) (*models.Student, error)
	ListStudentsByWorkspace(workspaceID string) ([]models.Student, error)
	// UpdateStudentCAS applies a version-stamped conditional update. When the
	// expected version no longer matches it re-reads the row and returns the
	// authoritative state alongside ErrVersionConflict.
	UpdateStudentCAS(student *models.Student, expectedVersion int64) (*models.Student, error)

	// Relation reads consumed by the access resolver. Each returns
	// ErrNotFound when no matching row exists.
	GetAccountLink(actorID, studentID string) (*models.StudentAccountLink, error)
	GetActiveShareByViewer(studentID, viewerActorID string) (*models.StudentShare, error)
	GetActiveShareByEmail(studentID, viewerEmail string) (*models.StudentShare, error)
	GetActiveParentLink(parentActorID, studentID string) (*models.ParentLink, error)
	GetMembership(workspaceID, actorID string) (*models.Membership, error)
	GetAssignment(studentID, coachActorID string) (*models.Assignment, error)

	// Share lifecycle
	CreateShare(s *models.StudentShare) error
	GetShareByToken(token string) (*models.StudentShare, error)
	UpdateShare(s *models.StudentShare) error

	// Suspensions
	GetActiveSuspension(workspaceID, actorID string) (*models.Suspension, error)
	CreateSuspension(s *models.Suspension) error
	ReviseSuspension(s *models.Suspension) error
	LiftSuspension(workspaceID, actorID, liftedBy string) (bool, error)
	IsActorSuspended(workspaceID, actorID string) (bool, error)

	// Threads & messages
	CreateThread(t *models.Thread) error
	GetThreadByID(id string) (*models.Thread, error)
	ListThreadMessages(threadID string) ([]models.Message, error)
	CreateMessage(m *models.Message) error
	FreezeThread(threadID, frozenBy, reason string) error
	UnfreezeThread(threadID string) error

	// Reports
	CreateReport(r *models.Report) error
	GetReportByID(id string) (*models.Report, error)
	UpdateReportStatus(r *models.Report) error
	ListReportsByThread(threadID string) ([]models.Report, error)

	// Health
	HealthCheck() error

	// Close the underlying connection
	Close() error
}

// DatabaseConfig holds connection settings for the row store.
type DatabaseConfig struct {
	PostgresDSN string
	UseMemoryDB bool
	Debug       bool
}

// NewDatabase opens the configured row store. PostgreSQL is the production
// backend; the in-memory store exists for local development without a
// database and is rejected by config validation in production.
func NewDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	if config.UseMemoryDB {
		return NewMemoryDatabase(), nil
	}
	if config.PostgresDSN == "" {
		return nil, errors.New("no database configured: set POSTGRES_DSN")
	}
	return NewPostgresDatabase(config.PostgresDSN)
}
