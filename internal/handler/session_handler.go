package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/testnest/cbt-backend/internal/middleware"
	"github.com/testnest/cbt-backend/internal/model"
	"github.com/testnest/cbt-backend/internal/response"
	"github.com/testnest/cbt-backend/internal/service"
	"github.com/testnest/cbt-backend/internal/validator"
)

// SessionHandler handles the student-facing session lifecycle: start or
// resume, answer submission, autosave checkpoints, completion, and
// abandonment.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// StartSession godoc
// POST /api/v1/student/tests/:test_id/sessions
// Starts a session for the test, or re-attaches to the student's existing
// in-progress one. Returns 201 for a fresh session and 200 for a resume.
func (h *SessionHandler) StartSession(c *gin.Context) {
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

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.CreateOrResume(c.Request.Context(), testID, claims.UserID, req.BrowserInfo, req.AccessCode)
	if err != nil {
		failServiceErr(c, err)
		return
	}

	status := http.StatusCreated
	if view.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, view)
}

// ListMySessions godoc
// GET /api/v1/student/sessions
// Returns the student's session history, newest first.
func (h *SessionHandler) ListMySessions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessions, err := h.sessionService.ListByStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		failServiceErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// GetProgress godoc
// GET /api/v1/student/sessions/:session_id/progress
// Returns the session with the remaining time recomputed from the wall
// clock, so a reloaded client can rebuild its timer and answer sheet.
func (h *SessionHandler) GetProgress(c *gin.Context) {
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

	sess, err := h.sessionService.GetProgress(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failServiceErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// SubmitAnswer godoc
// POST /api/v1/student/sessions/:session_id/answers
// Records one answer with instant evaluation. Resubmitting a question
// replaces the previous answer.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
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

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.SubmitAnswer(
		c.Request.Context(),
		sessionID,
		req.QuestionID,
		req.SubmittedValue,
		req.TimeSpentSeconds,
		req.CurrentQuestionIndex,
		claims.UserID,
	)
	if err != nil {
		failServiceErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// AutoSave godoc
// POST /api/v1/student/sessions/:session_id/autosave
// Lightweight checkpoint of the client's position and timer.
func (h *SessionHandler) AutoSave(c *gin.Context) {
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

	var req model.AutoSaveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.AutoSave(c.Request.Context(), sessionID, req.CurrentQuestionIndex, req.TimeRemainingSeconds, claims.UserID); err != nil {
		failServiceErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// Complete godoc
// POST /api/v1/student/sessions/:session_id/complete
// Finalizes the session: scores it, stores the result, and returns the
// scored session.
func (h *SessionHandler) Complete(c *gin.Context) {
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

	sess, err := h.sessionService.Complete(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failServiceErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// Abandon godoc
// POST /api/v1/student/sessions/:session_id/abandon
// Marks the session as walked away from. No score is produced.
func (h *SessionHandler) Abandon(c *gin.Context) {
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

	if err := h.sessionService.Abandon(c.Request.Context(), sessionID, claims.UserID); err != nil {
		failServiceErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "abandoned"})
}
