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
	"coachdesk-backend/pkg/moderation"
	"coachdesk-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type MessagesHandler struct {
	config     *config.Config
	db         database.DatabaseInterface
	resolver   *access.Resolver
	moderation *moderation.Service
}

func NewMessagesHandler(cfg *config.Config, db database.DatabaseInterface, resolver *access.Resolver, mod *moderation.Service) *MessagesHandler {
	return &MessagesHandler{config: cfg, db: db, resolver: resolver, moderation: mod}
}

// POST /api/threads
func (h *MessagesHandler) CreateThread(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		StudentID string `json:"student_id"`
		Subject   string `json:"subject"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if req.StudentID == "" || strings.TrimSpace(req.Subject) == "" {
		utils.WriteBadRequestResponse(w, "student_id and subject required")
		return
	}

	verdict, err := h.resolver.ResolveAccess(actor.ID, req.StudentID, actor.Email, "messaging")
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to resolve access")
		return
	}
	if !verdict.CanWrite {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, string(verdict.Reason), "Access denied", nil)
		return
	}

	student, err := h.db.GetStudentByID(req.StudentID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteForbiddenResponse(w, "Access denied")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to get student")
		return
	}

	thread := &models.Thread{
		StudentID:   student.ID,
		WorkspaceID: student.WorkspaceID,
		Subject:     strings.TrimSpace(req.Subject),
	}
	if err := h.db.CreateThread(thread); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create thread")
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{
		"thread": thread,
	})
}

// GET /api/threads/{id}/messages
func (h *MessagesHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
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

	verdict, err := h.resolver.ResolveAccess(actor.ID, thread.StudentID, actor.Email, "messaging")
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to resolve access")
		return
	}
	if !verdict.CanRead {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, string(verdict.Reason), "Access denied", nil)
		return
	}

	messages, err := h.db.ListThreadMessages(threadID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list messages")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"thread":   thread,
		"messages": messages,
		"count":    len(messages),
	})
}

// POST /api/threads/{id}/messages
// Sending composes three gates: resolver write, no active suspension in the
// thread's workspace, thread not frozen. The failing gate's reason code is
// returned as-is.
func (h *MessagesHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	threadID := chiRoute.URLParam(r, "id")

	var req struct {
		Body string `json:"body"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		utils.WriteBadRequestResponse(w, "body required")
		return
	}

	verdict, _, err := h.moderation.CanSendMessage(actor.ID, actor.Email, threadID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteForbiddenResponse(w, "Access denied")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to check send capability")
		return
	}
	if !verdict.CanWrite {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, string(verdict.Reason), "Sending not allowed", nil)
		return
	}

	message := &models.Message{
		ThreadID:      threadID,
		SenderActorID: actor.ID,
		Body:          req.Body,
	}
	if err := h.db.CreateMessage(message); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to send message")
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{
		"message": message,
	})
}
