package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/transitdw/internal/api/middleware"
	"github.com/timmy/transitdw/internal/repository"
)

// AnalyticsHandler serves warehouse reports.
type AnalyticsHandler struct {
	repo *repository.AnalyticsRepository
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(repo *repository.AnalyticsRepository) *AnalyticsHandler {
	return &AnalyticsHandler{repo: repo}
}

// Summary handles GET /api/v1/analytics/summary?top=N.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	var q struct {
		Top int `form:"top" binding:"omitempty,min=1,max=100"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summary, err := h.repo.Summary(c.Request.Context(), q.Top)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to build analytics summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build summary: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
