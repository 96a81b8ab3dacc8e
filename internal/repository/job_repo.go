package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/timmy/transitdw/internal/domain"
)

// ErrJobNotFound is returned when a job run id does not exist.
var ErrJobNotFound = errors.New("job run not found")

// JobRunRepository handles etl_log rows.
type JobRunRepository struct {
	gw *Gateway
}

// NewJobRunRepository creates a new JobRunRepository.
// Parameters:
//   - gw: gateway used for all statements.
// Returns:
//   - *JobRunRepository: repository instance bound to gw.
func NewJobRunRepository(gw *Gateway) *JobRunRepository {
	return &JobRunRepository{gw: gw}
}

// Create inserts a job run with status running.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - run: job run to persist; StartTime defaults to now.
// Returns:
//   - error: classified storage error.
func (r *JobRunRepository) Create(ctx context.Context, run *domain.JobRun) error {
	if run.StartTime.IsZero() {
		run.StartTime = time.Now().UTC()
	}
	run.Status = domain.JobStatusRunning
	return r.gw.do(ctx, "create job run", func(ctx context.Context) error {
		return r.gw.db.WithContext(ctx).Create(run).Error
	})
}

// Finalize writes the terminal status, counts and details of a run.
// Parameters:
//   - ctx: context for cancellation and deadlines; callers pass a context
//     that survives run cancellation.
//   - res: end-of-run summary.
// Returns:
//   - error: classified storage error.
func (r *JobRunRepository) Finalize(ctx context.Context, res *domain.JobResult) error {
	details, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal job details: %w", err)
	}
	end := res.EndTime
	if end.IsZero() {
		end = time.Now().UTC()
	}
	return r.gw.do(ctx, "finalize job run", func(ctx context.Context) error {
		return r.gw.db.WithContext(ctx).Model(&domain.JobRun{}).
			Where("id = ?", res.RunID).
			Updates(map[string]any{
				"end_time":          end,
				"status":            res.Status,
				"records_processed": res.Processed,
				"records_inserted":  res.Inserted,
				"records_updated":   res.Updated,
				"records_failed":    res.Failed,
				"error_message":     res.Error,
				"details":           datatypes.JSON(details),
			}).Error
	})
}

// GetByID retrieves a job run by id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: run id.
// Returns:
//   - *domain.JobRun: the run.
//   - error: ErrJobNotFound or a classified storage error.
func (r *JobRunRepository) GetByID(ctx context.Context, id string) (*domain.JobRun, error) {
	var run domain.JobRun
	err := r.gw.do(ctx, "get job run", func(ctx context.Context) error {
		return r.gw.db.WithContext(ctx).First(&run, "id = ?", id).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the most recent runs, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum rows; non-positive means 20.
// Returns:
//   - []domain.JobRun: runs ordered by start time descending.
//   - error: classified storage error.
func (r *JobRunRepository) List(ctx context.Context, limit int) ([]domain.JobRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []domain.JobRun
	err := r.gw.do(ctx, "list job runs", func(ctx context.Context) error {
		return r.gw.db.WithContext(ctx).Order("start_time DESC").Limit(limit).Find(&runs).Error
	})
	return runs, err
}

// CountByStatus returns the number of runs in status.
func (r *JobRunRepository) CountByStatus(ctx context.Context, status domain.JobStatus) (int64, error) {
	var count int64
	err := r.gw.do(ctx, "count job runs", func(ctx context.Context) error {
		return r.gw.db.WithContext(ctx).Model(&domain.JobRun{}).Where("status = ?", status).Count(&count).Error
	})
	return count, err
}
