package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"coachdesk-backend/pkg/access"
	"coachdesk-backend/pkg/config"
	"coachdesk-backend/pkg/database"
	"coachdesk-backend/pkg/middleware"
	"coachdesk-backend/pkg/models"
	"coachdesk-backend/pkg/moderation"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	db     *database.MemoryDatabase
	router *chi.Mux

	org     *models.Workspace
	student *models.Student
	thread  *models.Thread
	coach   *models.Actor
	admin   *models.Actor
}

// newAPIEnv mounts the real routes over the memory store with an org
// workspace, an active admin and an assigned coach.
func newAPIEnv(t *testing.T) *apiEnv {
	db := database.NewMemoryDatabase()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{Environment: "development", JWTSecret: "test-secret"}
	resolver := access.NewResolver(db, log)
	modService := moderation.NewService(db, resolver, log)

	students := NewStudentsHandler(cfg, db, resolver)
	messages := NewMessagesHandler(cfg, db, resolver, modService)
	mod := NewModerationHandler(cfg, db, resolver, modService)
	shares := NewSharesHandler(cfg, db, resolver)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Route("/students", func(r chi.Router) {
			r.Get("/{id}", students.GetStudent)
			r.Put("/{id}", students.UpdateStudent)
		})
		r.Route("/threads", func(r chi.Router) {
			r.Post("/", messages.CreateThread)
			r.Post("/{id}/messages", messages.SendMessage)
		})
		r.Route("/shares", func(r chi.Router) {
			r.Post("/", shares.CreateShare)
			r.Post("/claim", shares.ClaimShare)
		})
		r.Route("/moderation", func(r chi.Router) {
			r.Post("/suspensions", mod.Suspend)
		})
		r.Route("/reports", func(r chi.Router) {
			r.Post("/", mod.FileReport)
			r.Put("/{id}", mod.TriageReport)
		})
	})

	env := &apiEnv{db: db, router: router}

	env.org = &models.Workspace{ID: "ws-org", Name: "Academy", Type: models.WorkspaceOrg}
	db.PutWorkspace(env.org)

	env.coach = &models.Actor{ID: "coach-1", Email: "coach@example.com", Role: models.RoleCoach, ActiveWorkspaceID: env.org.ID}
	env.admin = &models.Actor{ID: "admin-1", Email: "admin@example.com", Role: models.RoleStaff, ActiveWorkspaceID: env.org.ID}
	db.PutActor(env.coach)
	db.PutActor(env.admin)
	db.PutMembership(&models.Membership{WorkspaceID: env.org.ID, ActorID: env.coach.ID, Role: models.MemberCoach, Status: models.MemberActive})
	db.PutMembership(&models.Membership{WorkspaceID: env.org.ID, ActorID: env.admin.ID, Role: models.MemberAdmin, Status: models.MemberActive})

	env.student = &models.Student{ID: "stu-1", WorkspaceID: env.org.ID, FullName: "Student", Version: 1}
	db.PutStudent(env.student)
	db.PutAssignment(&models.Assignment{StudentID: env.student.ID, CoachActorID: env.coach.ID})

	env.thread = &models.Thread{StudentID: env.student.ID, WorkspaceID: env.org.ID, Subject: "Progress"}
	require.NoError(t, db.CreateThread(env.thread))

	return env
}

// do issues a request with the given actor injected the way the auth
// middleware would.
func (e *apiEnv) do(t *testing.T, actor *models.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(context.WithValue(req.Context(), middleware.ActorContextKey, actor))

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUpdateStudentVersioning(t *testing.T) {
	t.Run("stale version gets 409 with the authoritative row", func(t *testing.T) {
		env := newAPIEnv(t)

		// First writer wins and bumps the version to 2
		rec := env.do(t, env.coach, http.MethodPut, "/api/students/stu-1", map[string]interface{}{
			"full_name": "First Writer", "version": 1,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		// Second writer still holds version 1
		rec = env.do(t, env.coach, http.MethodPut, "/api/students/stu-1", map[string]interface{}{
			"full_name": "Second Writer", "version": 1,
		})
		require.Equal(t, http.StatusConflict, rec.Code)

		envelope := decodeEnvelope(t, rec)
		errObj := envelope["error"].(map[string]interface{})
		assert.Equal(t, "CONFLICT", errObj["code"])
		current := errObj["details"].(map[string]interface{})["current"].(map[string]interface{})
		assert.Equal(t, "First Writer", current["full_name"])
		assert.Equal(t, float64(2), current["version"])

		// The losing write must not have landed
		student, err := env.db.GetStudentByID("stu-1")
		require.NoError(t, err)
		assert.Equal(t, "First Writer", student.FullName)
	})

	t.Run("missing version is a 400", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(t, env.coach, http.MethodPut, "/api/students/stu-1", map[string]interface{}{
			"full_name": "No Version",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetStudentHidesExistence(t *testing.T) {
	env := newAPIEnv(t)
	stranger := &models.Actor{ID: "stranger-1", Email: "stranger@example.com", ActiveWorkspaceID: env.org.ID}
	env.db.PutActor(stranger)

	foreign := env.do(t, stranger, http.MethodGet, "/api/students/stu-1", nil)
	absent := env.do(t, stranger, http.MethodGet, "/api/students/no-such", nil)

	assert.Equal(t, http.StatusForbidden, foreign.Code)
	assert.Equal(t, http.StatusForbidden, absent.Code)

	// Same reason code either way: an outsider cannot probe for existence
	foreignErr := decodeEnvelope(t, foreign)["error"].(map[string]interface{})
	absentErr := decodeEnvelope(t, absent)["error"].(map[string]interface{})
	assert.Equal(t, foreignErr["code"], absentErr["code"])
}

func TestSendMessageGateCodes(t *testing.T) {
	env := newAPIEnv(t)
	path := fmt.Sprintf("/api/threads/%s/messages", env.thread.ID)

	t.Run("allowed send creates the message", func(t *testing.T) {
		rec := env.do(t, env.coach, http.MethodPost, path, map[string]interface{}{"body": "hello"})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("suspended sender gets SUSPENDED", func(t *testing.T) {
		rec := env.do(t, env.admin, http.MethodPost, "/api/moderation/suspensions", map[string]interface{}{
			"workspace_id": env.org.ID, "actor_id": env.coach.ID, "reason": "spam",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, env.coach, http.MethodPost, path, map[string]interface{}{"body": "hello"})
		require.Equal(t, http.StatusForbidden, rec.Code)
		errObj := decodeEnvelope(t, rec)["error"].(map[string]interface{})
		assert.Equal(t, "SUSPENDED", errObj["code"])
	})

	t.Run("frozen thread gets THREAD_FROZEN after lift", func(t *testing.T) {
		lifted, err := env.db.LiftSuspension(env.org.ID, env.coach.ID, env.admin.ID)
		require.NoError(t, err)
		require.True(t, lifted)
		require.NoError(t, env.db.FreezeThread(env.thread.ID, env.admin.ID, "under review"))

		rec := env.do(t, env.coach, http.MethodPost, path, map[string]interface{}{"body": "hello"})
		require.Equal(t, http.StatusForbidden, rec.Code)
		errObj := decodeEnvelope(t, rec)["error"].(map[string]interface{})
		assert.Equal(t, "THREAD_FROZEN", errObj["code"])
	})
}

func TestModerationEndpoints(t *testing.T) {
	t.Run("non-admin cannot suspend", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(t, env.coach, http.MethodPost, "/api/moderation/suspensions", map[string]interface{}{
			"workspace_id": env.org.ID, "actor_id": env.admin.ID, "reason": "revenge",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("self suspension is a 400", func(t *testing.T) {
		env := newAPIEnv(t)
		rec := env.do(t, env.admin, http.MethodPost, "/api/moderation/suspensions", map[string]interface{}{
			"workspace_id": env.org.ID, "actor_id": env.admin.ID, "reason": "oops",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("triage through the report lifecycle", func(t *testing.T) {
		env := newAPIEnv(t)

		rec := env.do(t, env.coach, http.MethodPost, "/api/reports", map[string]interface{}{
			"thread_id": env.thread.ID, "details": "inappropriate",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		report := decodeEnvelope(t, rec)["data"].(map[string]interface{})["report"].(map[string]interface{})
		reportID := report["id"].(string)

		rec = env.do(t, env.admin, http.MethodPut, "/api/reports/"+reportID, map[string]interface{}{
			"status": "in_review", "freeze_thread": true,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, env.admin, http.MethodPut, "/api/reports/"+reportID, map[string]interface{}{
			"status": "resolved", "unfreeze_thread": true,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		// Resolved is terminal
		rec = env.do(t, env.admin, http.MethodPut, "/api/reports/"+reportID, map[string]interface{}{
			"status": "in_review",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestShareLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	viewer := &models.Actor{ID: "viewer-1", Email: "viewer@example.com", ActiveWorkspaceID: env.org.ID}
	env.db.PutActor(viewer)

	rec := env.do(t, env.coach, http.MethodPost, "/api/shares", map[string]interface{}{
		"student_id": env.student.ID, "viewer_email": "Viewer@Example.COM",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	share := decodeEnvelope(t, rec)["data"].(map[string]interface{})["share"].(map[string]interface{})
	token := share["token"].(string)
	require.NotEmpty(t, token)

	t.Run("wrong email cannot claim", func(t *testing.T) {
		wrong := &models.Actor{ID: "wrong-1", Email: "wrong@example.com", ActiveWorkspaceID: env.org.ID}
		env.db.PutActor(wrong)
		rec := env.do(t, wrong, http.MethodPost, "/api/shares/claim", map[string]interface{}{"token": token})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invitee claims and gains read-only access", func(t *testing.T) {
		rec := env.do(t, viewer, http.MethodPost, "/api/shares/claim", map[string]interface{}{"token": token})
		require.Equal(t, http.StatusOK, rec.Code)

		got := env.do(t, viewer, http.MethodGet, "/api/students/"+env.student.ID, nil)
		require.Equal(t, http.StatusOK, got.Code)
		verdict := decodeEnvelope(t, got)["data"].(map[string]interface{})["verdict"].(map[string]interface{})
		assert.Equal(t, "SHARED", verdict["reason"])
		assert.Equal(t, false, verdict["can_write"])

		// Claimed shares are not claimable twice
		rec = env.do(t, viewer, http.MethodPost, "/api/shares/claim", map[string]interface{}{"token": token})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
