package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/testnest/cbt-backend/internal/middleware"
	"github.com/testnest/cbt-backend/internal/response"
	"github.com/testnest/cbt-backend/internal/service"
)

// AnalyticsHandler serves the instructor analytics views.
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// GetTestAnalytics godoc
// GET /api/v1/admin/tests/:test_id/analytics
// Returns the aggregate summary for an owned test. A test with no
// sessions yields a zero-valued record, not an error.
func (h *AnalyticsHandler) GetTestAnalytics(c *gin.Context) {
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

	analytics, err := h.analyticsService.GetTestAnalytics(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		failServiceErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, analytics)
}

// GetQuestionBreakdown godoc
// GET /api/v1/admin/tests/:test_id/analytics/questions
// Returns per-question difficulty stats, hardest first.
func (h *AnalyticsHandler) GetQuestionBreakdown(c *gin.Context) {
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

	stats, err := h.analyticsService.GetQuestionBreakdown(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		failServiceErr(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": stats})
}
