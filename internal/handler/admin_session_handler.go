package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/testnest/cbt-backend/internal/middleware"
	"github.com/testnest/cbt-backend/internal/model"
	"github.com/testnest/cbt-backend/internal/response"
	"github.com/testnest/cbt-backend/internal/service"
	"github.com/testnest/cbt-backend/internal/validator"
)

// AdminSessionHandler handles the instructor-facing session endpoints:
// per-test listings, review flags, notes, and the manual expiry sweep.
type AdminSessionHandler struct {
	adminService   *service.AdminSessionService
	sessionService *service.SessionService
}

// NewAdminSessionHandler creates a new AdminSessionHandler.
func NewAdminSessionHandler(adminService *service.AdminSessionService, sessionService *service.SessionService) *AdminSessionHandler {
	return &AdminSessionHandler{
		adminService:   adminService,
		sessionService: sessionService,
	}
}

// ListTestSessions godoc
// GET /api/v1/admin/tests/:test_id/sessions
// Lists sessions for an owned test with pagination, optionally filtered
// by status.
func (h *AdminSessionHandler) ListTestSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var status *model.SessionStatus
	if raw := c.Query("status"); raw != "" {
		s := model.SessionStatus(raw)
		switch s {
		case model.SessionStatusInProgress, model.SessionStatusCompleted,
			model.SessionStatusAbandoned, model.SessionStatusExpired:
			status = &s
		default:
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
	}

	sessions, total, err := h.adminService.ListByTest(c.Request.Context(), testID, claims.UserID, status, page, perPage)
	if err != nil {
		failServiceErr(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": sessions}, response.NewPagination(page, perPage, total))
}

// FlagSession godoc
// POST /api/v1/admin/sessions/:session_id/flag
// Marks or unmarks a session for review.
func (h *AdminSessionHandler) FlagSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.FlagSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.adminService.Flag(c.Request.Context(), sessionID, claims.UserID, req.Flagged, req.Reason); err != nil {
		failServiceErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"flagged": req.Flagged})
}

// UpdateSessionNotes godoc
// PUT /api/v1/admin/sessions/:session_id/notes
// Replaces the reviewer notes on a session.
func (h *AdminSessionHandler) UpdateSessionNotes(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AdminNotesRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.adminService.SetNotes(c.Request.Context(), sessionID, claims.UserID, req.Notes); err != nil {
		failServiceErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "updated"})
}

// SweepSessions godoc
// POST /api/v1/admin/maintenance/sweep
// Runs the expiry sweep on demand. The background worker runs the same
// sweep on an interval; this endpoint exists for operational use.
func (h *AdminSessionHandler) SweepSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	expired, err := h.sessionService.SweepExpiredSessions(c.Request.Context())
	if err != nil {
		failServiceErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"expired_count": expired})
}
