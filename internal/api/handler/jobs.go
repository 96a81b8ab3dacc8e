package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/timmy/transitdw/internal/api/middleware"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/repository"
)

const maxListLimit = 500

// JobHandler serves job runs and their rejected records.
type JobHandler struct {
	jobs    *repository.JobRunRepository
	staging *repository.StagingRepository
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - jobs: job run repository.
//   - staging: staging repository holding rejects.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(jobs *repository.JobRunRepository, staging *repository.StagingRepository) *JobHandler {
	return &JobHandler{jobs: jobs, staging: staging}
}

// JobListResponse is the body of GET /api/v1/jobs.
type JobListResponse struct {
	Jobs  []domain.JobRun `json:"jobs"`
	Count int             `json:"count"`
}

// RejectListResponse is the body of GET /api/v1/jobs/:id/rejects.
type RejectListResponse struct {
	RunID   string                 `json:"run_id"`
	Total   int64                  `json:"total"`
	Rejects []domain.StagingRecord `json:"rejects"`
}

// ListJobs handles GET /api/v1/jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, ok := parseLimit(c, 20)
	if !ok {
		return
	}
	jobs, err := h.jobs.List(c.Request.Context(), limit)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list job runs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list job runs: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, JobListResponse{Jobs: jobs, Count: len(jobs)})
}

// GetJob handles GET /api/v1/jobs/:id.
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListRejects handles GET /api/v1/jobs/:id/rejects.
func (h *JobHandler) ListRejects(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	limit, ok := parseLimit(c, 100)
	if !ok {
		return
	}
	if _, err := h.jobs.GetByID(ctx, id); err != nil {
		writeLookupError(c, err)
		return
	}

	total, err := h.staging.CountByRun(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rejects, err := h.staging.ListByRun(ctx, id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, RejectListResponse{RunID: id, Total: total, Rejects: rejects})
}

func writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job run not found"})
		return
	}
	middleware.GetLogger(c).WithError(err).Error("Failed to load job run")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// parseLimit reads ?limit=, writing a 400 when it is not a positive integer.
func parseLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return min(limit, maxListLimit), true
}
