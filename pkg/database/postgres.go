package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"coachdesk-backend/pkg/models"

	"github.com/lib/pq"
)

// PostgresDatabase implements DatabaseInterface over database/sql + lib/pq.
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a PostgreSQL connection with pool settings
// sized for a serverless runtime.
func NewPostgresDatabase(dsn string) (*PostgresDatabase, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresDatabase{db: db}, nil
}

// NewPostgresDatabaseFromDB wraps an existing connection; used by tests.
func NewPostgresDatabaseFromDB(db *sql.DB) *PostgresDatabase {
	return &PostgresDatabase{db: db}
}

// ================= Profiles & Workspaces =================

func (d *PostgresDatabase) GetActorByID(id string) (*models.Actor, error) {
	query := `
		SELECT id, email, COALESCE(name,''), role, active_workspace_id, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	var a models.Actor
	var role string
	err := d.db.QueryRow(query, id).Scan(
		&a.ID, &a.Email, &a.Name, &role, &a.ActiveWorkspaceID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	a.Role = models.ActorRole(role)
	return &a, nil
}

func (d *PostgresDatabase) GetWorkspaceByID(id string) (*models.Workspace, error) {
	query := `
		SELECT id, name, type, COALESCE(owner_actor_id,''), COALESCE(plan_tier,'free'), created_at, updated_at
		FROM workspaces
		WHERE id = $1
	`
	var w models.Workspace
	var wsType string
	err := d.db.QueryRow(query, id).Scan(
		&w.ID, &w.Name, &wsType, &w.OwnerActorID, &w.PlanTier, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("workspace %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	w.Type = models.WorkspaceType(wsType)
	return &w, nil
}

// ================= Students =================

func (d *PostgresDatabase) GetStudentByID(id string) (*models.Student, error) {
	query := `
		SELECT id, workspace_id, full_name, COALESCE(grade_level,''), COALESCE(notes,''), version, created_at, updated_at
		FROM students
		WHERE id = $1
	`
	var s models.Student
	err := d.db.QueryRow(query, id).Scan(
		&s.ID, &s.WorkspaceID, &s.FullName, &s.GradeLevel, &s.Notes, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("student %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return &s, nil
}

func (d *PostgresDatabase) ListStudentsByWorkspace(workspaceID string) ([]models.Student, error) {
	query := `
		SELECT id, workspace_id, full_name, COALESCE(grade_level,''), COALESCE(notes,''), version, created_at, updated_at
		FROM students
		WHERE workspace_id = $1
		ORDER BY full_name ASC, created_at ASC
	`
	rows, err := d.db.Query(query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var result []models.Student
	for rows.Next() {
		var s models.Student
		if err := rows.Scan(&s.ID, &s.WorkspaceID, &s.FullName, &s.GradeLevel, &s.Notes, &s.Version, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// UpdateStudentCAS performs the version compare-and-swap. Zero rows affected
// means a concurrent writer won; the caller gets the winner's row back
// together with ErrVersionConflict so it can surface the authoritative state.
func (d *PostgresDatabase) UpdateStudentCAS(student *models.Student, expectedVersion int64) (*models.Student, error) {
	query := `
		UPDATE students
		SET full_name = $1,
		    grade_level = $2,
		    notes = $3,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $4 AND version = $5
		RETURNING version, updated_at
	`
	err := d.db.QueryRow(query, student.FullName, student.GradeLevel, student.Notes, student.ID, expectedVersion).
		Scan(&student.Version, &student.UpdatedAt)
	if err == nil {
		return student, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to update student: %w", err)
	}

	// Conflict or missing row: re-read to tell the two apart
	current, rerr := d.GetStudentByID(student.ID)
	if rerr != nil {
		return nil, rerr
	}
	return current, ErrVersionConflict
}

// ================= Relation reads =================

func (d *PostgresDatabase) GetAccountLink(actorID, studentID string) (*models.StudentAccountLink, error) {
	query := `
		SELECT id, actor_id, student_id, created_at
		FROM student_account_links
		WHERE actor_id = $1 AND student_id = $2
	`
	var l models.StudentAccountLink
	err := d.db.QueryRow(query, actorID, studentID).Scan(&l.ID, &l.ActorID, &l.StudentID, &l.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account link: %w", err)
	}
	return &l, nil
}

func (d *PostgresDatabase) GetActiveShareByViewer(studentID, viewerActorID string) (*models.StudentShare, error) {
	query := shareSelect + ` WHERE student_id = $1 AND viewer_actor_id = $2 AND status = 'active'`
	return d.scanShare(d.db.QueryRow(query, studentID, viewerActorID))
}

func (d *PostgresDatabase) GetActiveShareByEmail(studentID, viewerEmail string) (*models.StudentShare, error) {
	// Shares are addressed case-insensitively until the invitee signs in
	query := shareSelect + ` WHERE student_id = $1 AND LOWER(viewer_email) = LOWER($2) AND status = 'active'`
	return d.scanShare(d.db.QueryRow(query, studentID, viewerEmail))
}

const shareSelect = `
	SELECT id, student_id, owner_actor_id, viewer_actor_id, viewer_email, token, status, created_at, updated_at
	FROM student_shares`

func (d *PostgresDatabase) scanShare(row *sql.Row) (*models.StudentShare, error) {
	var s models.StudentShare
	var status string
	err := row.Scan(&s.ID, &s.StudentID, &s.OwnerActorID, &s.ViewerActorID, &s.ViewerEmail, &s.Token, &status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get share: %w", err)
	}
	s.Status = models.ShareStatus(status)
	return &s, nil
}

func (d *PostgresDatabase) GetActiveParentLink(parentActorID, studentID string) (*models.ParentLink, error) {
	query := `
		SELECT id, parent_actor_id, student_id, status,
		       perm_messaging, perm_events, perm_reports, perm_billing,
		       created_at, updated_at
		FROM parent_links
		WHERE parent_actor_id = $1 AND student_id = $2 AND status = 'active'
	`
	var l models.ParentLink
	var status string
	err := d.db.QueryRow(query, parentActorID, studentID).Scan(
		&l.ID, &l.ParentActorID, &l.StudentID, &status,
		&l.Permissions.Messaging, &l.Permissions.Events, &l.Permissions.Reports, &l.Permissions.Billing,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get parent link: %w", err)
	}
	l.Status = models.ParentLinkStatus(status)
	return &l, nil
}

func (d *PostgresDatabase) GetMembership(workspaceID, actorID string) (*models.Membership, error) {
	query := `
		SELECT id, workspace_id, actor_id, role, status, created_at
		FROM workspace_members
		WHERE workspace_id = $1 AND actor_id = $2
	`
	var m models.Membership
	var role, status string
	err := d.db.QueryRow(query, workspaceID, actorID).Scan(&m.ID, &m.WorkspaceID, &m.ActorID, &role, &status, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	m.Role = models.MemberRole(role)
	m.Status = models.MemberStatus(status)
	return &m, nil
}

func (d *PostgresDatabase) GetAssignment(studentID, coachActorID string) (*models.Assignment, error) {
	query := `
		SELECT id, student_id, coach_actor_id, created_by, created_at
		FROM coach_assignments
		WHERE student_id = $1 AND coach_actor_id = $2
	`
	var a models.Assignment
	err := d.db.QueryRow(query, studentID, coachActorID).Scan(&a.ID, &a.StudentID, &a.CoachActorID, &a.CreatedBy, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &a, nil
}

// ================= Share lifecycle =================

func (d *PostgresDatabase) CreateShare(s *models.StudentShare) error {
	query := `
		INSERT INTO student_shares (student_id, owner_actor_id, viewer_email, token, status, created_at, updated_at)
		VALUES ($1, $2, LOWER($3), $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := d.db.QueryRow(query, s.StudentID, s.OwnerActorID, s.ViewerEmail, s.Token, string(s.Status)).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("share for %s: %w", s.ViewerEmail, ErrDuplicate)
		}
		return fmt.Errorf("failed to create share: %w", err)
	}
	return nil
}

func (d *PostgresDatabase) GetShareByToken(token string) (*models.StudentShare, error) {
	query := shareSelect + ` WHERE token = $1`
	return d.scanShare(d.db.QueryRow(query, token))
}

func (d *PostgresDatabase) UpdateShare(s *models.StudentShare) error {
	query := `
		UPDATE student_shares
		SET viewer_actor_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`
	res, err := d.db.Exec(query, s.ViewerActorID, string(s.Status), s.ID)
	if err != nil {
		return fmt.Errorf("failed to update share: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("share %s: %w", s.ID, ErrNotFound)
	}
	return nil
}

// ================= Suspensions =================

// GetActiveSuspension returns the single row with lifted_at IS NULL for the
// pair, regardless of expiry. Expiry is applied by IsActorSuspended at read
// time, never by rewriting the row.
func (d *PostgresDatabase) GetActiveSuspension(workspaceID, actorID string) (*models.Suspension, error) {
	query := `
		SELECT id, workspace_id, actor_id, reason, suspended_until, created_by, created_at, lifted_at, lifted_by
		FROM suspensions
		WHERE workspace_id = $1 AND actor_id = $2 AND lifted_at IS NULL
	`
	var s models.Suspension
	err := d.db.QueryRow(query, workspaceID, actorID).Scan(
		&s.ID, &s.WorkspaceID, &s.ActorID, &s.Reason, &s.SuspendedUntil,
		&s.CreatedBy, &s.CreatedAt, &s.LiftedAt, &s.LiftedBy,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active suspension: %w", err)
	}
	return &s, nil
}

func (d *PostgresDatabase) CreateSuspension(s *models.Suspension) error {
	query := `
		INSERT INTO suspensions (workspace_id, actor_id, reason, suspended_until, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at
	`
	err := d.db.QueryRow(query, s.WorkspaceID, s.ActorID, s.Reason, s.SuspendedUntil, s.CreatedBy).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		// Partial unique index on (workspace_id, actor_id) WHERE lifted_at IS NULL
		// backs the one-active-row invariant as defense-in-depth.
		if isUniqueViolation(err) {
			return fmt.Errorf("active suspension exists for (%s,%s): %w", s.WorkspaceID, s.ActorID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create suspension: %w", err)
	}
	return nil
}

// ReviseSuspension overwrites reason/expiry/creator on the currently active
// row and clears any stale lift fields.
func (d *PostgresDatabase) ReviseSuspension(s *models.Suspension) error {
	query := `
		UPDATE suspensions
		SET reason = $1, suspended_until = $2, created_by = $3, lifted_at = NULL, lifted_by = NULL
		WHERE id = $4 AND lifted_at IS NULL
	`
	res, err := d.db.Exec(query, s.Reason, s.SuspendedUntil, s.CreatedBy, s.ID)
	if err != nil {
		return fmt.Errorf("failed to revise suspension: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("suspension %s: %w", s.ID, ErrNotFound)
	}
	return nil
}

// LiftSuspension stamps lifted_at/lifted_by on the active row. Returns false
// without error when none is active, making lift idempotent.
func (d *PostgresDatabase) LiftSuspension(workspaceID, actorID, liftedBy string) (bool, error) {
	query := `
		UPDATE suspensions
		SET lifted_at = NOW(), lifted_by = $1
		WHERE workspace_id = $2 AND actor_id = $3 AND lifted_at IS NULL
	`
	res, err := d.db.Exec(query, liftedBy, workspaceID, actorID)
	if err != nil {
		return false, fmt.Errorf("failed to lift suspension: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// IsActorSuspended evaluates the soft-expiry predicate at query time; no
// background sweeper rewrites expired rows.
func (d *PostgresDatabase) IsActorSuspended(workspaceID, actorID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM suspensions
			WHERE workspace_id = $1 AND actor_id = $2
			  AND lifted_at IS NULL
			  AND (suspended_until IS NULL OR suspended_until > NOW())
		)
	`
	var suspended bool
	if err := d.db.QueryRow(query, workspaceID, actorID).Scan(&suspended); err != nil {
		return false, fmt.Errorf("failed to check suspension: %w", err)
	}
	return suspended, nil
}

// ================= Threads & Messages =================

func (d *PostgresDatabase) CreateThread(t *models.Thread) error {
	query := `
		INSERT INTO threads (student_id, workspace_id, subject, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := d.db.QueryRow(query, t.StudentID, t.WorkspaceID, t.Subject).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	return nil
}

func (d *PostgresDatabase) GetThreadByID(id string) (*models.Thread, error) {
	query := `
		SELECT id, student_id, workspace_id, subject, frozen_at, frozen_by, COALESCE(frozen_reason,''), created_at, updated_at
		FROM threads
		WHERE id = $1
	`
	var t models.Thread
	err := d.db.QueryRow(query, id).Scan(
		&t.ID, &t.StudentID, &t.WorkspaceID, &t.Subject, &t.FrozenAt, &t.FrozenBy, &t.FrozenReason, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return &t, nil
}

func (d *PostgresDatabase) ListThreadMessages(threadID string) ([]models.Message, error) {
	query := `
		SELECT id, thread_id, sender_actor_id, body, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY created_at ASC
	`
	rows, err := d.db.Query(query, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var result []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderActorID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (d *PostgresDatabase) CreateMessage(m *models.Message) error {
	query := `
		INSERT INTO messages (thread_id, sender_actor_id, body, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at
	`
	err := d.db.QueryRow(query, m.ThreadID, m.SenderActorID, m.Body).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (d *PostgresDatabase) FreezeThread(threadID, frozenBy, reason string) error {
	query := `
		UPDATE threads
		SET frozen_at = NOW(), frozen_by = $1, frozen_reason = $2, updated_at = NOW()
		WHERE id = $3
	`
	res, err := d.db.Exec(query, frozenBy, reason, threadID)
	if err != nil {
		return fmt.Errorf("failed to freeze thread: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}
	return nil
}

func (d *PostgresDatabase) UnfreezeThread(threadID string) error {
	query := `
		UPDATE threads
		SET frozen_at = NULL, frozen_by = NULL, frozen_reason = NULL, updated_at = NOW()
		WHERE id = $1
	`
	res, err := d.db.Exec(query, threadID)
	if err != nil {
		return fmt.Errorf("failed to unfreeze thread: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}
	return nil
}

// ================= Reports =================

func (d *PostgresDatabase) CreateReport(r *models.Report) error {
	query := `
		INSERT INTO reports (thread_id, message_id, reporter_id, details, status, freeze_applied, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := d.db.QueryRow(query, r.ThreadID, r.MessageID, r.ReporterID, r.Details, string(r.Status), r.FreezeApplied).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (d *PostgresDatabase) GetReportByID(id string) (*models.Report, error) {
	query := `
		SELECT id, thread_id, message_id, reporter_id, COALESCE(details,''), status, freeze_applied, created_at, updated_at
		FROM reports
		WHERE id = $1
	`
	var r models.Report
	var status string
	err := d.db.QueryRow(query, id).Scan(
		&r.ID, &r.ThreadID, &r.MessageID, &r.ReporterID, &r.Details, &status, &r.FreezeApplied, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	r.Status = models.ReportStatus(status)
	return &r, nil
}

func (d *PostgresDatabase) UpdateReportStatus(r *models.Report) error {
	query := `
		UPDATE reports
		SET status = $1, freeze_applied = $2, updated_at = NOW()
		WHERE id = $3
	`
	res, err := d.db.Exec(query, string(r.Status), r.FreezeApplied, r.ID)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("report %s: %w", r.ID, ErrNotFound)
	}
	return nil
}

func (d *PostgresDatabase) ListReportsByThread(threadID string) ([]models.Report, error) {
	query := `
		SELECT id, thread_id, message_id, reporter_id, COALESCE(details,''), status, freeze_applied, created_at, updated_at
		FROM reports
		WHERE thread_id = $1
		ORDER BY created_at DESC
	`
	rows, err := d.db.Query(query, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var result []models.Report
	for rows.Next() {
		var r models.Report
		var status string
		if err := rows.Scan(&r.ID, &r.ThreadID, &r.MessageID, &r.ReporterID, &r.Details, &status, &r.FreezeApplied, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Status = models.ReportStatus(status)
		result = append(result, r)
	}
	return result, rows.Err()
}

// ================= Health =================

func (d *PostgresDatabase) HealthCheck() error {
	return d.db.Ping()
}

func (d *PostgresDatabase) Close() error {
	return d.db.Close()
}

// isUniqueViolation reports whether err is a postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
