package repository

import (
	"context"

	"github.com/timmy/transitdw/internal/domain"
)

// StagingRepository keeps rejected staging records for inspection.
type StagingRepository struct {
	gw *Gateway
}

// NewStagingRepository creates a new StagingRepository.
func NewStagingRepository(gw *Gateway) *StagingRepository {
	return &StagingRepository{gw: gw}
}

// SaveRejects stores failed records under runID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - runID: owning job run.
//   - recs: rejected records; ids are reassigned on insert.
// Returns:
//   - int64: rows written.
//   - error: classified storage error.
func (r *StagingRepository) SaveRejects(ctx context.Context, runID string, recs []*domain.StagingRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	for _, rec := range recs {
		rec.ID = 0
		rec.RunID = runID
	}
	inserted, _, err := r.gw.BulkUpsert(ctx, domain.StagingRecord{}.TableName(), nil, recs)
	return inserted, err
}

// ListByRun returns rejected records of a run in insertion order.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - runID: owning job run.
//   - limit: maximum rows; non-positive means all.
// Returns:
//   - []domain.StagingRecord: records of the run.
//   - error: classified storage error.
func (r *StagingRepository) ListByRun(ctx context.Context, runID string, limit int) ([]domain.StagingRecord, error) {
	var recs []domain.StagingRecord
	err := r.gw.do(ctx, "list staging records", func(ctx context.Context) error {
		q := r.gw.db.WithContext(ctx).Where("run_id = ?", runID).Order("id")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q.Find(&recs).Error
	})
	return recs, err
}

// CountByRun returns the number of rejected records of a run.
func (r *StagingRepository) CountByRun(ctx context.Context, runID string) (int64, error) {
	var count int64
	err := r.gw.do(ctx, "count staging records", func(ctx context.Context) error {
		return r.gw.db.WithContext(ctx).Model(&domain.StagingRecord{}).Where("run_id = ?", runID).Count(&count).Error
	})
	return count, err
}

// DeleteByRun removes the rejected records of a run.
func (r *StagingRepository) DeleteByRun(ctx context.Context, runID string) (int64, error) {
	var deleted int64
	err := r.gw.do(ctx, "delete staging records", func(ctx context.Context) error {
		res := r.gw.db.WithContext(ctx).Where("run_id = ?", runID).Delete(&domain.StagingRecord{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
