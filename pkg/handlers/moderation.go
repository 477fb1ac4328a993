package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"coachdesk-backend/pkg/access"
	"coachdesk-backend/pkg/config"
	"coachdesk-backend/pkg/database"
	"coachdesk-backend/pkg/logging"
	"coachdesk-backend/pkg/middleware"
	"coachdesk-backend/pkg/models"
	"coachdesk-backend/pkg/moderation"
	"coachdesk-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type ModerationHandler struct {
	config     *config.Config
	db         database.DatabaseInterface
	resolver   *access.Resolver
	moderation *moderation.Service
}

func NewModerationHandler(cfg *config.Config, db database.DatabaseInterface, resolver *access.Resolver, mod *moderation.Service) *ModerationHandler {
	return &ModerationHandler{config: cfg, db: db, resolver: resolver, moderation: mod}
}

// requireWorkspaceAdmin gates moderation actions on an active admin
// membership. This is the explicit administrative capability the resolver
// deliberately does not grant; every use is logged for audit.
func (h *ModerationHandler) requireWorkspaceAdmin(w http.ResponseWriter, actorID, workspaceID, action string) bool {
	membership, err := h.db.GetMembership(workspaceID, actorID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteForbiddenResponse(w, "Admin privileges required")
			return false
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to check membership")
		return false
	}
	if membership.Role != models.MemberAdmin || membership.Status != models.MemberActive {
		utils.WriteForbiddenResponse(w, "Admin privileges required")
		return false
	}

	logging.L().WithFields(logrus.Fields{
		"actor_id":     actorID,
		"workspace_id": workspaceID,
		"action":       action,
	}).Info("admin override")
	return true
}

// POST /api/moderation/suspensions
func (h *ModerationHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		WorkspaceID    string     `json:"workspace_id"`
		ActorID        string     `json:"actor_id"`
		Reason         string     `json:"reason"`
		SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.WorkspaceID == "" || req.ActorID == "" || strings.TrimSpace(req.Reason) == "" {
		utils.WriteBadRequestResponse(w, "workspace_id, actor_id and reason required")
		return
	}

	if !h.requireWorkspaceAdmin(w, actor.ID, req.WorkspaceID, "suspend") {
		return
	}

	if err := h.moderation.Suspend(req.WorkspaceID, req.ActorID, actor.ID, strings.TrimSpace(req.Reason), req.SuspendedUntil); err != nil {
		if errors.Is(err, moderation.ErrSelfSuspension) {
			utils.WriteBadRequestResponse(w, "Cannot suspend yourself")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to suspend actor")
		return
	}

	suspension, err := h.db.GetActiveSuspension(req.WorkspaceID, req.ActorID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load suspension")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"suspension": suspension,
	})
}

// DELETE /api/moderation/suspensions
func (h *ModerationHandler) Lift(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		WorkspaceID string `json:"workspace_id"`
		ActorID     string `json:"actor_id"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.WorkspaceID == "" || req.ActorID == "" {
		utils.WriteBadRequestResponse(w, "workspace_id and actor_id required")
		return
	}

	if !h.requireWorkspaceAdmin(w, actor.ID, req.WorkspaceID, "lift_suspension") {
		return
	}

	if err := h.moderation.Lift(req.WorkspaceID, req.ActorID, actor.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to lift suspension")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"lifted": true,
	})
}

// POST /api/reports
func (h *ModerationHandler) FileReport(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		ThreadID  string  `json:"thread_id"`
		MessageID *string `json:"message_id,omitempty"`
		Details   string  `json:"details"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.ThreadID == "" {
		utils.WriteBadRequestResponse(w, "thread_id required")
		return
	}

	// Reporters must at least be able to read the conversation
	thread, err := h.db.GetThreadByID(req.ThreadID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteForbiddenResponse(w, "Access denied")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to get thread")
		return
	}
	verdict, err := h.resolver.ResolveAccess(actor.ID, thread.StudentID, actor.Email, "messaging")
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to resolve access")
		return
	}
	if !verdict.CanRead {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, string(verdict.Reason), "Access denied", nil)
		return
	}

	report, err := h.moderation.FileReport(req.ThreadID, req.MessageID, actor.ID, req.Details)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to file report")
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{
		"report": report,
	})
}

// PUT /api/reports/{id}
func (h *ModerationHandler) TriageReport(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	reportID := chiRoute.URLParam(r, "id")

	var req moderation.TriageRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	switch req.Status {
	case models.ReportInReview, models.ReportResolved:
	default:
		utils.WriteBadRequestResponse(w, "status must be in_review or resolved")
		return
	}

	report, err := h.db.GetReportByID(reportID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Report not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to get report")
		return
	}

	thread, err := h.db.GetThreadByID(report.ThreadID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to get thread")
		return
	}

	if !h.requireWorkspaceAdmin(w, actor.ID, thread.WorkspaceID, "triage_report") {
		return
	}

	updated, err := h.moderation.TriageReport(reportID, actor.ID, req)
	if err != nil {
		if errors.Is(err, moderation.ErrInvalidTransition) {
			utils.WriteConflictResponse(w, "Invalid report transition", map[string]interface{}{
				"status": report.Status,
			})
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to triage report")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"report": updated,
	})
}

// GET /api/threads/{id}/reports
func (h *ModerationHandler) ListThreadReports(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	threadID := chiRoute.URLParam(r, "id")

	thread, err := h.db.GetThreadByID(threadID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteForbiddenResponse(w, "Access denied")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to get thread")
		return
	}

	if !h.requireWorkspaceAdmin(w, actor.ID, thread.WorkspaceID, "list_reports") {
		return
	}

	reports, err := h.db.ListReportsByThread(threadID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list reports")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}
