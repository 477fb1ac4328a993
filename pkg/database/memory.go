package database

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"coachdesk-backend/pkg/models"

	"github.com/google/uuid"
)

// MemoryDatabase is an in-memory DatabaseInterface for local development
// without PostgreSQL and for tests. It enforces the same row invariants the
// SQL schema does (one active suspension per pair, unique share tokens) so
// code exercised against it behaves the same against the real store.
type MemoryDatabase struct {
	mu sync.RWMutex

	actors       map[string]*models.Actor
	workspaces   map[string]*models.Workspace
	memberships  []*models.Membership
	students     map[string]*models.Student
	assignments  []*models.Assignment
	accountLinks []*models.StudentAccountLink
	shares       map[string]*models.StudentShare
	parentLinks  []*models.ParentLink
	suspensions  map[string]*models.Suspension
	threads      map[string]*models.Thread
	messages     []*models.Message
	reports      map[string]*models.Report
}

// NewMemoryDatabase creates an empty in-memory store.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		actors:      make(map[string]*models.Actor),
		workspaces:  make(map[string]*models.Workspace),
		students:    make(map[string]*models.Student),
		shares:      make(map[string]*models.StudentShare),
		suspensions: make(map[string]*models.Suspension),
		threads:     make(map[string]*models.Thread),
		reports:     make(map[string]*models.Report),
	}
}

// ================= Seeding (local dev & tests) =================

func (d *MemoryDatabase) PutActor(a *models.Actor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	d.actors[a.ID] = a
}

func (d *MemoryDatabase) PutWorkspace(w *models.Workspace) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	d.workspaces[w.ID] = w
}

func (d *MemoryDatabase) PutMembership(m *models.Membership) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	d.memberships = append(d.memberships, m)
}

func (d *MemoryDatabase) PutStudent(s *models.Student) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	d.students[s.ID] = s
}

func (d *MemoryDatabase) PutAssignment(a *models.Assignment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	d.assignments = append(d.assignments, a)
}

func (d *MemoryDatabase) PutAccountLink(l *models.StudentAccountLink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	d.accountLinks = append(d.accountLinks, l)
}

func (d *MemoryDatabase) PutParentLink(l *models.ParentLink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	d.parentLinks = append(d.parentLinks, l)
}

// ================= Profiles & Workspaces =================

func (d *MemoryDatabase) GetActorByID(id string) (*models.Actor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.actors[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (d *MemoryDatabase) GetWorkspaceByID(id string) (*models.Workspace, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}
	cp := *w
	return &cp, nil
}

// ================= Students =================

func (d *MemoryDatabase) GetStudentByID(id string) (*models.Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.students[id]
	if !ok {
		return nil, fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (d *MemoryDatabase) ListStudentsByWorkspace(workspaceID string) ([]models.Student, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []models.Student
	for _, s := range d.students {
		if s.WorkspaceID == workspaceID {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (d *MemoryDatabase) UpdateStudentCAS(student *models.Student, expectedVersion int64) (*models.Student, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	current, ok := d.students[student.ID]
	if !ok {
		return nil, fmt.Errorf("student %s: %w", student.ID, ErrNotFound)
	}
	if current.Version != expectedVersion {
		cp := *current
		return &cp, ErrVersionConflict
	}
	current.FullName = student.FullName
	current.GradeLevel = student.GradeLevel
	current.Notes = student.Notes
	current.Version++
	current.UpdatedAt = time.Now()
	cp := *current
	return &cp, nil
}

// ================= Relation reads =================

func (d *MemoryDatabase) GetAccountLink(actorID, studentID string) (*models.StudentAccountLink, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, l := range d.accountLinks {
		if l.ActorID == actorID && l.StudentID == studentID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDatabase) GetActiveShareByViewer(studentID, viewerActorID string) (*models.StudentShare, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.shares {
		if s.StudentID == studentID && s.Status == models.ShareActive &&
			s.ViewerActorID != nil && *s.ViewerActorID == viewerActorID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDatabase) GetActiveShareByEmail(studentID, viewerEmail string) (*models.StudentShare, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.shares {
		if s.StudentID == studentID && s.Status == models.ShareActive &&
			strings.EqualFold(s.ViewerEmail, viewerEmail) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDatabase) GetActiveParentLink(parentActorID, studentID string) (*models.ParentLink, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, l := range d.parentLinks {
		if l.ParentActorID == parentActorID && l.StudentID == studentID && l.Status == models.ParentLinkActive {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDatabase) GetMembership(workspaceID, actorID string) (*models.Membership, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, m := range d.memberships {
		if m.WorkspaceID == workspaceID && m.ActorID == actorID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDatabase) GetAssignment(studentID, coachActorID string) (*models.Assignment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, a := range d.assignments {
		if a.StudentID == studentID && a.CoachActorID == coachActorID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ================= Share lifecycle =================

func (d *MemoryDatabase) CreateShare(s *models.StudentShare) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.shares {
		if existing.StudentID == s.StudentID &&
			strings.EqualFold(existing.ViewerEmail, s.ViewerEmail) &&
			existing.Status != models.ShareRevoked {
			return fmt.Errorf("share for %s: %w", s.ViewerEmail, ErrDuplicate)
		}
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.ViewerEmail = strings.ToLower(s.ViewerEmail)
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	d.shares[s.ID] = &cp
	return nil
}

func (d *MemoryDatabase) GetShareByToken(token string) (*models.StudentShare, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.shares {
		if s.Token == token {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (d *MemoryDatabase) UpdateShare(s *models.StudentShare) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.shares[s.ID]; !ok {
		return fmt.Errorf("share %s: %w", s.ID, ErrNotFound)
	}
	s.UpdatedAt = time.Now()
	cp := *s
	d.shares[s.ID] = &cp
	return nil
}

// ================= Suspensions =================

func suspensionKey(workspaceID, actorID string) string {
	return workspaceID + "/" + actorID
}

func (d *MemoryDatabase) GetActiveSuspension(workspaceID, actorID string) (*models.Suspension, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.suspensions[suspensionKey(workspaceID, actorID)]
	if !ok || s.LiftedAt != nil {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (d *MemoryDatabase) CreateSuspension(s *models.Suspension) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := suspensionKey(s.WorkspaceID, s.ActorID)
	if existing, ok := d.suspensions[key]; ok && existing.LiftedAt == nil {
		return fmt.Errorf("active suspension exists for (%s,%s): %w", s.WorkspaceID, s.ActorID, ErrDuplicate)
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	s.CreatedAt = time.Now()
	cp := *s
	d.suspensions[key] = &cp
	return nil
}

func (d *MemoryDatabase) ReviseSuspension(s *models.Suspension) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := suspensionKey(s.WorkspaceID, s.ActorID)
	existing, ok := d.suspensions[key]
	if !ok || existing.LiftedAt != nil || existing.ID != s.ID {
		return fmt.Errorf("suspension %s: %w", s.ID, ErrNotFound)
	}
	existing.Reason = s.Reason
	existing.SuspendedUntil = s.SuspendedUntil
	existing.CreatedBy = s.CreatedBy
	return nil
}

func (d *MemoryDatabase) LiftSuspension(workspaceID, actorID, liftedBy string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.suspensions[suspensionKey(workspaceID, actorID)]
	if !ok || s.LiftedAt != nil {
		return false, nil
	}
	now := time.Now()
	s.LiftedAt = &now
	s.LiftedBy = &liftedBy
	return true, nil
}

func (d *MemoryDatabase) IsActorSuspended(workspaceID, actorID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.suspensions[suspensionKey(workspaceID, actorID)]
	if !ok {
		return false, nil
	}
	return s.Active(time.Now()), nil
}

// ================= Threads & Messages =================

func (d *MemoryDatabase) CreateThread(t *models.Thread) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	d.threads[t.ID] = &cp
	return nil
}

func (d *MemoryDatabase) GetThreadByID(id string) (*models.Thread, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.threads[id]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (d *MemoryDatabase) ListThreadMessages(threadID string) ([]models.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []models.Message
	for _, m := range d.messages {
		if m.ThreadID == threadID {
			result = append(result, *m)
		}
	}
	return result, nil
}

func (d *MemoryDatabase) CreateMessage(m *models.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now()
	cp := *m
	d.messages = append(d.messages, &cp)
	return nil
}

func (d *MemoryDatabase) FreezeThread(threadID, frozenBy, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.threads[threadID]
	if !ok {
		return fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}
	now := time.Now()
	t.FrozenAt = &now
	t.FrozenBy = &frozenBy
	t.FrozenReason = reason
	t.UpdatedAt = now
	return nil
}

func (d *MemoryDatabase) UnfreezeThread(threadID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.threads[threadID]
	if !ok {
		return fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}
	t.FrozenAt = nil
	t.FrozenBy = nil
	t.FrozenReason = ""
	t.UpdatedAt = time.Now()
	return nil
}

// ================= Reports =================

func (d *MemoryDatabase) CreateReport(r *models.Report) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	d.reports[r.ID] = &cp
	return nil
}

func (d *MemoryDatabase) GetReportByID(id string) (*models.Report, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (d *MemoryDatabase) UpdateReportStatus(r *models.Report) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	existing, ok := d.reports[r.ID]
	if !ok {
		return fmt.Errorf("report %s: %w", r.ID, ErrNotFound)
	}
	existing.Status = r.Status
	existing.FreezeApplied = r.FreezeApplied
	existing.UpdatedAt = time.Now()
	return nil
}

func (d *MemoryDatabase) ListReportsByThread(threadID string) ([]models.Report, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []models.Report
	for _, r := range d.reports {
		if r.ThreadID == threadID {
			result = append(result, *r)
		}
	}
	return result, nil
}

// ================= Health =================

func (d *MemoryDatabase) HealthCheck() error {
	return nil
}

func (d *MemoryDatabase) Close() error {
	return nil
}
