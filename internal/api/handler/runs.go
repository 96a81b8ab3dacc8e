package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/pipeline"
)

// Runner executes pipeline runs.
type Runner interface {
	Run(ctx context.Context, req pipeline.RunRequest) (*domain.JobResult, error)
}

// RunHandler triggers pipeline runs over HTTP, one at a time.
type RunHandler struct {
	runner Runner

	mu            sync.RWMutex
	isRunning     bool
	lastResult    *domain.JobResult
	lastRunTime   time.Time
	lastRunStatus string
}

// NewRunHandler creates a new run handler.
// Parameters:
//   - runner: pipeline orchestrator.
// Returns:
//   - *RunHandler: initialized handler.
func NewRunHandler(runner Runner) *RunHandler {
	return &RunHandler{runner: runner}
}

// TriggerRunRequest represents the run API request.
type TriggerRunRequest struct {
	Source  string `json:"source" binding:"required,oneof=api synthetic"`
	Start   string `json:"start" binding:"omitempty,datetime=2006-01-02"`
	End     string `json:"end" binding:"omitempty,datetime=2006-01-02"`
	Records int    `json:"records" binding:"omitempty,min=1,max=10000000"`
}

// RunStatusResponse represents the run status.
type RunStatusResponse struct {
	IsRunning     bool              `json:"is_running"`
	LastRunTime   string            `json:"last_run_time,omitempty"`
	LastRunStatus string            `json:"last_run_status,omitempty"`
	LastResult    *domain.JobResult `json:"last_result,omitempty"`
}

// TriggerRun handles POST /api/v1/runs. The run outlives the request's
// cancellation so a dropped client does not abort a load half way.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *RunHandler) TriggerRun(c *gin.Context) {
	ctx := c.Request.Context()

	var req TriggerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid run request: client_ip=%s, error=%v", c.ClientIP(), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	runReq, err := toRunRequest(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Run request rejected: already running, source=%s", req.Source)
		c.JSON(http.StatusConflict, gin.H{"error": "A pipeline run is already in progress"})
		return
	}
	h.isRunning = true
	h.mu.Unlock()

	logger.CtxInfo(ctx, "Starting pipeline run: source=%s, start=%s, end=%s, records=%d",
		req.Source, req.Start, req.End, req.Records)
	res, err := h.runner.Run(context.WithoutCancel(ctx), runReq)

	h.mu.Lock()
	h.isRunning = false
	h.lastRunTime = time.Now()
	if res != nil {
		h.lastResult = res
		h.lastRunStatus = string(res.Status)
	}
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	}
	h.mu.Unlock()

	var cfgErr *domain.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		body := gin.H{"error": err.Error()}
		if res != nil {
			body["result"] = res
		}
		c.JSON(http.StatusInternalServerError, body)
	default:
		c.JSON(http.StatusOK, res)
	}
}

// GetRunStatus handles GET /api/v1/runs/status.
func (h *RunHandler) GetRunStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := RunStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		LastResult:    h.lastResult,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

func toRunRequest(req TriggerRunRequest) (pipeline.RunRequest, error) {
	src, err := domain.ParseDataSource(req.Source)
	if err != nil {
		return pipeline.RunRequest{}, err
	}
	out := pipeline.RunRequest{Source: src, TargetRecords: req.Records}
	if req.Start != "" || req.End != "" {
		start, end := req.Start, req.End
		if start == "" {
			start = end
		}
		if end == "" {
			end = start
		}
		out.Start, out.End, err = config.ParseRange(start, end)
		if err != nil {
			return pipeline.RunRequest{}, err
		}
	}
	return out, nil
}
