package access

import (
	"errors"
	"io"
	"testing"

	"coachdesk-backend/pkg/database"
	"coachdesk-backend/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(db database.DatabaseInterface) *Resolver {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewResolver(db, log)
}

// fixture builds a memory store with one org workspace, one personal
// workspace, and a student in each.
type fixture struct {
	db          *database.MemoryDatabase
	org         *models.Workspace
	personal    *models.Workspace
	orgStudent  *models.Student
	ownStudent  *models.Student
	owner       *models.Actor
	coach       *models.Actor
	parent      *models.Actor
	studentUser *models.Actor
	outsider    *models.Actor
}

func newFixture() *fixture {
	db := database.NewMemoryDatabase()
	f := &fixture{db: db}

	f.owner = &models.Actor{ID: "owner-1", Email: "owner@example.com", Role: models.RoleOwner}
	f.coach = &models.Actor{ID: "coach-1", Email: "coach@example.com", Role: models.RoleCoach}
	f.parent = &models.Actor{ID: "parent-1", Email: "parent@example.com", Role: models.RoleParent}
	f.studentUser = &models.Actor{ID: "student-1", Email: "student@example.com", Role: models.RoleStudent}
	f.outsider = &models.Actor{ID: "outsider-1", Email: "outsider@example.com", Role: models.RoleCoach}

	f.org = &models.Workspace{ID: "ws-org", Name: "Academy", Type: models.WorkspaceOrg}
	f.personal = &models.Workspace{ID: "ws-personal", Name: "Solo", Type: models.WorkspacePersonal, OwnerActorID: f.owner.ID}
	db.PutWorkspace(f.org)
	db.PutWorkspace(f.personal)

	f.owner.ActiveWorkspaceID = f.personal.ID
	f.coach.ActiveWorkspaceID = f.org.ID
	f.parent.ActiveWorkspaceID = f.org.ID
	f.studentUser.ActiveWorkspaceID = f.org.ID
	f.outsider.ActiveWorkspaceID = f.org.ID
	for _, a := range []*models.Actor{f.owner, f.coach, f.parent, f.studentUser, f.outsider} {
		db.PutActor(a)
	}

	f.orgStudent = &models.Student{ID: "stu-org", WorkspaceID: f.org.ID, FullName: "Org Student"}
	f.ownStudent = &models.Student{ID: "stu-own", WorkspaceID: f.personal.ID, FullName: "Own Student"}
	db.PutStudent(f.orgStudent)
	db.PutStudent(f.ownStudent)

	return f
}

func TestResolveAccessTenantPath(t *testing.T) {
	t.Run("personal owner gets read and write", func(t *testing.T) {
		f := newFixture()
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.owner.ID, f.ownStudent.ID, f.owner.Email, "")
		require.NoError(t, err)
		assert.True(t, v.CanRead)
		assert.True(t, v.CanWrite)
		assert.Equal(t, ReasonOwner, v.Reason)
	})

	t.Run("personal non-owner denied", func(t *testing.T) {
		f := newFixture()
		// outsider points their active workspace at the personal one, but
		// is not its owner
		f.outsider.ActiveWorkspaceID = f.personal.ID
		f.db.PutActor(f.outsider)
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.outsider.ID, f.ownStudent.ID, f.outsider.Email, "")
		require.NoError(t, err)
		assert.True(t, v.Denied())
		assert.Equal(t, ReasonForbidden, v.Reason)
	})

	t.Run("org coach with membership and assignment gets member", func(t *testing.T) {
		f := newFixture()
		f.db.PutMembership(&models.Membership{WorkspaceID: f.org.ID, ActorID: f.coach.ID, Role: models.MemberCoach, Status: models.MemberActive})
		f.db.PutAssignment(&models.Assignment{StudentID: f.orgStudent.ID, CoachActorID: f.coach.ID})
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.coach.ID, f.orgStudent.ID, f.coach.Email, "")
		require.NoError(t, err)
		assert.True(t, v.CanRead)
		assert.True(t, v.CanWrite)
		assert.Equal(t, ReasonMember, v.Reason)
	})

	t.Run("org coach without assignment denied", func(t *testing.T) {
		f := newFixture()
		f.db.PutMembership(&models.Membership{WorkspaceID: f.org.ID, ActorID: f.coach.ID, Role: models.MemberCoach, Status: models.MemberActive})
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.coach.ID, f.orgStudent.ID, f.coach.Email, "")
		require.NoError(t, err)
		assert.True(t, v.Denied())
		assert.Equal(t, ReasonForbidden, v.Reason)
	})

	t.Run("org admin without assignment denied", func(t *testing.T) {
		f := newFixture()
		f.db.PutMembership(&models.Membership{WorkspaceID: f.org.ID, ActorID: f.coach.ID, Role: models.MemberAdmin, Status: models.MemberActive})
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.coach.ID, f.orgStudent.ID, f.coach.Email, "")
		require.NoError(t, err)
		assert.Equal(t, ReasonForbidden, v.Reason)
	})

	t.Run("inactive membership denied even with assignment", func(t *testing.T) {
		f := newFixture()
		f.db.PutMembership(&models.Membership{WorkspaceID: f.org.ID, ActorID: f.coach.ID, Role: models.MemberCoach, Status: models.MemberDisabled})
		f.db.PutAssignment(&models.Assignment{StudentID: f.orgStudent.ID, CoachActorID: f.coach.ID})
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.coach.ID, f.orgStudent.ID, f.coach.Email, "")
		require.NoError(t, err)
		assert.Equal(t, ReasonForbidden, v.Reason)
	})

	t.Run("active workspace mismatch denied regardless of relations", func(t *testing.T) {
		f := newFixture()
		f.db.PutMembership(&models.Membership{WorkspaceID: f.org.ID, ActorID: f.coach.ID, Role: models.MemberCoach, Status: models.MemberActive})
		f.db.PutAssignment(&models.Assignment{StudentID: f.orgStudent.ID, CoachActorID: f.coach.ID})
		// Coach is currently switched into a different workspace
		f.coach.ActiveWorkspaceID = f.personal.ID
		f.db.PutActor(f.coach)
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.coach.ID, f.orgStudent.ID, f.coach.Email, "")
		require.NoError(t, err)
		assert.Equal(t, ReasonForbidden, v.Reason)
	})

	t.Run("unknown student denied not errored", func(t *testing.T) {
		f := newFixture()
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.coach.ID, "no-such-student", f.coach.Email, "")
		require.NoError(t, err)
		assert.Equal(t, ReasonForbidden, v.Reason)
	})

	t.Run("unknown actor denied not errored", func(t *testing.T) {
		f := newFixture()
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess("no-such-actor", f.orgStudent.ID, "", "")
		require.NoError(t, err)
		assert.Equal(t, ReasonForbidden, v.Reason)
	})
}

func TestResolveAccessRelationPrecedence(t *testing.T) {
	t.Run("account link wins over everything", func(t *testing.T) {
		f := newFixture()
		f.db.PutAccountLink(&models.StudentAccountLink{ActorID: f.studentUser.ID, StudentID: f.orgStudent.ID})
		// A share for the same actor must not downgrade the verdict
		viewerID := f.studentUser.ID
		require.NoError(t, f.db.CreateShare(&models.StudentShare{
			StudentID: f.orgStudent.ID, OwnerActorID: f.owner.ID,
			ViewerActorID: &viewerID, ViewerEmail: f.studentUser.Email,
			Token: "tok-precedence", Status: models.ShareActive,
		}))
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.studentUser.ID, f.orgStudent.ID, f.studentUser.Email, "")
		require.NoError(t, err)
		assert.True(t, v.CanWrite)
		assert.Equal(t, ReasonSelf, v.Reason)
	})

	t.Run("claimed share grants read only", func(t *testing.T) {
		f := newFixture()
		viewerID := f.outsider.ID
		require.NoError(t, f.db.CreateShare(&models.StudentShare{
			StudentID: f.orgStudent.ID, OwnerActorID: f.owner.ID,
			ViewerActorID: &viewerID, ViewerEmail: f.outsider.Email,
			Token: "tok-claimed", Status: models.ShareActive,
		}))
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.outsider.ID, f.orgStudent.ID, f.outsider.Email, "")
		require.NoError(t, err)
		assert.True(t, v.CanRead)
		assert.False(t, v.CanWrite)
		assert.Equal(t, ReasonShared, v.Reason)
	})

	t.Run("unclaimed share matches by email case-insensitively", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.db.CreateShare(&models.StudentShare{
			StudentID: f.orgStudent.ID, OwnerActorID: f.owner.ID,
			ViewerEmail: "Outsider@Example.COM",
			Token:       "tok-email", Status: models.ShareActive,
		}))
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.outsider.ID, f.orgStudent.ID, "outsider@example.com", "")
		require.NoError(t, err)
		assert.True(t, v.CanRead)
		assert.False(t, v.CanWrite)
		assert.Equal(t, ReasonShared, v.Reason)
	})

	t.Run("revoked share falls through to forbidden", func(t *testing.T) {
		f := newFixture()
		viewerID := f.outsider.ID
		share := &models.StudentShare{
			StudentID: f.orgStudent.ID, OwnerActorID: f.owner.ID,
			ViewerActorID: &viewerID, ViewerEmail: f.outsider.Email,
			Token: "tok-revoked", Status: models.ShareActive,
		}
		require.NoError(t, f.db.CreateShare(share))
		share.Status = models.ShareRevoked
		require.NoError(t, f.db.UpdateShare(share))
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.outsider.ID, f.orgStudent.ID, f.outsider.Email, "")
		require.NoError(t, err)
		assert.Equal(t, ReasonForbidden, v.Reason)
	})

	t.Run("parent link grants module-scoped read only", func(t *testing.T) {
		f := newFixture()
		f.db.PutParentLink(&models.ParentLink{
			ParentActorID: f.parent.ID, StudentID: f.orgStudent.ID,
			Status:      models.ParentLinkActive,
			Permissions: models.ModulePermissions{Messaging: true, Events: true, Reports: true},
		})
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.parent.ID, f.orgStudent.ID, f.parent.Email, "messaging")
		require.NoError(t, err)
		assert.True(t, v.CanRead)
		assert.False(t, v.CanWrite)
		assert.Equal(t, ReasonParent, v.Reason)
	})

	t.Run("parent link denies ungranted module with its own reason", func(t *testing.T) {
		f := newFixture()
		f.db.PutParentLink(&models.ParentLink{
			ParentActorID: f.parent.ID, StudentID: f.orgStudent.ID,
			Status:      models.ParentLinkActive,
			Permissions: models.ModulePermissions{Messaging: true},
		})
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.parent.ID, f.orgStudent.ID, f.parent.Email, "billing")
		require.NoError(t, err)
		assert.True(t, v.Denied())
		assert.Equal(t, ReasonModuleForbidden, v.Reason)
	})

	t.Run("parent link unscoped check allows read", func(t *testing.T) {
		f := newFixture()
		f.db.PutParentLink(&models.ParentLink{
			ParentActorID: f.parent.ID, StudentID: f.orgStudent.ID,
			Status:      models.ParentLinkActive,
			Permissions: models.ModulePermissions{},
		})
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.parent.ID, f.orgStudent.ID, f.parent.Email, "")
		require.NoError(t, err)
		assert.Equal(t, ReasonParent, v.Reason)
	})

	t.Run("unknown module name is never granted", func(t *testing.T) {
		f := newFixture()
		f.db.PutParentLink(&models.ParentLink{
			ParentActorID: f.parent.ID, StudentID: f.orgStudent.ID,
			Status:      models.ParentLinkActive,
			Permissions: models.ModulePermissions{Messaging: true, Events: true, Reports: true, Billing: true},
		})
		r := newTestResolver(f.db)

		v, err := r.ResolveAccess(f.parent.ID, f.orgStudent.ID, f.parent.Email, "homework")
		require.NoError(t, err)
		assert.Equal(t, ReasonModuleForbidden, v.Reason)
	})

	t.Run("resolution is deterministic across repeated calls", func(t *testing.T) {
		f := newFixture()
		viewerID := f.coach.ID
		require.NoError(t, f.db.CreateShare(&models.StudentShare{
			StudentID: f.orgStudent.ID, OwnerActorID: f.owner.ID,
			ViewerActorID: &viewerID, ViewerEmail: f.coach.Email,
			Token: "tok-det", Status: models.ShareActive,
		}))
		f.db.PutMembership(&models.Membership{WorkspaceID: f.org.ID, ActorID: f.coach.ID, Role: models.MemberCoach, Status: models.MemberActive})
		f.db.PutAssignment(&models.Assignment{StudentID: f.orgStudent.ID, CoachActorID: f.coach.ID})
		r := newTestResolver(f.db)

		first, err := r.ResolveAccess(f.coach.ID, f.orgStudent.ID, f.coach.Email, "")
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			v, err := r.ResolveAccess(f.coach.ID, f.orgStudent.ID, f.coach.Email, "")
			require.NoError(t, err)
			assert.Equal(t, first, v)
		}
		// The share outranks the membership path, so write never appears.
		assert.Equal(t, ReasonShared, first.Reason)
		assert.False(t, first.CanWrite)
	})
}

// faultGateway wraps the memory store and fails one lookup to simulate an
// infrastructure fault.
type faultGateway struct {
	database.DatabaseInterface
	err error
}

func (g *faultGateway) GetAccountLink(actorID, studentID string) (*models.StudentAccountLink, error) {
	return nil, g.err
}

func TestResolveAccessFaults(t *testing.T) {
	t.Run("gateway fault surfaces as error not denial", func(t *testing.T) {
		f := newFixture()
		boom := errors.New("connection reset")
		r := newTestResolver(&faultGateway{DatabaseInterface: f.db, err: boom})

		_, err := r.ResolveAccess(f.coach.ID, f.orgStudent.ID, f.coach.Email, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	})
}
