package handlers

import (
	"errors"
	"net/http"
	"strings"

	"coachdesk-backend/pkg/access"
	"coachdesk-backend/pkg/config"
	"coachdesk-backend/pkg/database"
	"coachdesk-backend/pkg/middleware"
	"coachdesk-backend/pkg/models"
	"coachdesk-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type StudentsHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	resolver *access.Resolver
}

func NewStudentsHandler(cfg *config.Config, db database.DatabaseInterface, resolver *access.Resolver) *StudentsHandler {
	return &StudentsHandler{config: cfg, db: db, resolver: resolver}
}

// GET /api/students
// Lists the students of the caller's active workspace. Personal workspaces
// admit only their owner; org workspaces require an active membership.
func (h *StudentsHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	actorCtx, err := h.resolver.ResolveActor(actor.ID)
	if err != nil {
		if errors.Is(err, access.ErrProfileNotFound) {
			utils.WriteForbiddenResponse(w, "Access denied")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to resolve actor")
		return
	}

	workspace := actorCtx.Workspace
	switch workspace.Type {
	case models.WorkspacePersonal:
		if workspace.OwnerActorID != actor.ID {
			utils.WriteForbiddenResponse(w, "Access denied")
			return
		}
	case models.WorkspaceOrg:
		membership, err := h.db.GetMembership(workspace.ID, actor.ID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				utils.WriteForbiddenResponse(w, "Access denied")
				return
			}
			utils.WriteInternalServerErrorResponse(w, "Failed to check membership")
			return
		}
		if membership.Status != models.MemberActive {
			utils.WriteForbiddenResponse(w, "Access denied")
			return
		}
	}

	students, err := h.db.ListStudentsByWorkspace(workspace.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list students")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"students": students,
		"count":    len(students),
	})
}

// GET /api/students/{id}
func (h *StudentsHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	studentID := chiRoute.URLParam(r, "id")
	module := utils.GetQueryParam(r, "module", "")

	verdict, err := h.resolver.ResolveAccess(actor.ID, studentID, actor.Email, module)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to resolve access")
		return
	}
	if !verdict.CanRead {
		// Denials hide existence: same response whether the record is
		// foreign or absent.
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, string(verdict.Reason), "Access denied", nil)
		return
	}

	student, err := h.db.GetStudentByID(studentID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteForbiddenResponse(w, "Access denied")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to get student")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"student": student,
		"verdict": verdict,
	})
}

// PUT /api/students/{id}
// Version-stamped update: the request carries the version the client last
// observed, and a stale version yields 409 with the authoritative row.
func (h *StudentsHandler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	studentID := chiRoute.URLParam(r, "id")

	var req struct {
		FullName   string `json:"full_name"`
		GradeLevel string `json:"grade_level"`
		Notes      string `json:"notes"`
		Version    int64  `json:"version"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.FullName) == "" {
		utils.WriteBadRequestResponse(w, "full_name required")
		return
	}
	if req.Version <= 0 {
		utils.WriteBadRequestResponse(w, "version required")
		return
	}

	verdict, err := h.resolver.ResolveAccess(actor.ID, studentID, actor.Email, "")
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to resolve access")
		return
	}
	if !verdict.CanWrite {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, string(verdict.Reason), "Access denied", nil)
		return
	}

	student := &models.Student{
		ID:         studentID,
		FullName:   strings.TrimSpace(req.FullName),
		GradeLevel: strings.TrimSpace(req.GradeLevel),
		Notes:      req.Notes,
	}

	updated, err := h.db.UpdateStudentCAS(student, req.Version)
	if err != nil {
		if errors.Is(err, database.ErrVersionConflict) {
			// updated carries the winning writer's row for merge/retry
			utils.WriteConflictResponse(w, "Student was modified concurrently", map[string]interface{}{
				"current": updated,
			})
			return
		}
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteForbiddenResponse(w, "Access denied")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to update student")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"student": updated,
	})
}
