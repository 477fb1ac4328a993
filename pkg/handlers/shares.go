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

type SharesHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	resolver *access.Resolver
}

func NewSharesHandler(cfg *config.Config, db database.DatabaseInterface, resolver *access.Resolver) *SharesHandler {
	return &SharesHandler{config: cfg, db: db, resolver: resolver}
}

// POST /api/shares
func (h *SharesHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		StudentID   string `json:"student_id"`
		ViewerEmail string `json:"viewer_email"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	req.ViewerEmail = strings.ToLower(strings.TrimSpace(req.ViewerEmail))
	if req.StudentID == "" || req.ViewerEmail == "" {
		utils.WriteBadRequestResponse(w, "student_id and viewer_email required")
		return
	}

	// Only someone with write access to the student can hand out a share.
	verdict, err := h.resolver.ResolveAccess(actor.ID, req.StudentID, actor.Email, "")
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to resolve access")
		return
	}
	if !verdict.CanWrite {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, string(verdict.Reason), "Access denied", nil)
		return
	}

	token, err := utils.GenerateURLToken(24)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate share token")
		return
	}

	share := &models.StudentShare{
		StudentID:    req.StudentID,
		OwnerActorID: actor.ID,
		ViewerEmail:  req.ViewerEmail,
		Token:        token,
		Status:       models.SharePendingViewer,
	}
	if err := h.db.CreateShare(share); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			utils.WriteConflictResponse(w, "Share already exists for this viewer", nil)
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to create share")
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{
		"share": share,
	})
}

// POST /api/shares/claim
//
// The signed-in viewer redeems an invitation token. The claim binds the
// share to their actor id so future access resolves by id instead of by
// email. Email comparison is case-insensitive.
func (h *SharesHandler) ClaimShare(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Token == "" {
		utils.WriteBadRequestResponse(w, "token required")
		return
	}

	share, err := h.db.GetShareByToken(req.Token)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteForbiddenResponse(w, "Invalid share token")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to look up share")
		return
	}

	if share.Status != models.SharePendingViewer {
		utils.WriteConflictResponse(w, "Share is not claimable", map[string]interface{}{
			"status": share.Status,
		})
		return
	}
	if !strings.EqualFold(share.ViewerEmail, actor.Email) {
		utils.WriteForbiddenResponse(w, "Share was issued to a different email")
		return
	}

	share.ViewerActorID = &actor.ID
	share.Status = models.ShareActive
	if err := h.db.UpdateShare(share); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to claim share")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"share": share,
	})
}

// DELETE /api/shares/{token}
func (h *SharesHandler) RevokeShare(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	token := chiRoute.URLParam(r, "token")

	share, err := h.db.GetShareByToken(token)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteForbiddenResponse(w, "Invalid share token")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to look up share")
		return
	}

	if share.OwnerActorID != actor.ID {
		utils.WriteForbiddenResponse(w, "Only the issuing owner can revoke a share")
		return
	}
	if share.Status == models.ShareRevoked {
		utils.WriteSuccessResponse(w, map[string]interface{}{
			"share": share,
		})
		return
	}

	share.Status = models.ShareRevoked
	if err := h.db.UpdateShare(share); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to revoke share")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"share": share,
	})
}
