package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/transitdw/internal/cleaner"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/repository"
)

// load writes cleaned facts table by table in batches. A batch runs in one
// transaction; an integrity failure retries its rows one at a time so a bad
// row costs only itself.
func (o *Orchestrator) load(ctx context.Context, r *run, cleaned []cleaner.Cleaned) error {
	ctx = logger.SetStage(ctx, string(domain.StateLoading))
	byKind := make(map[domain.FactKind][]cleaner.Cleaned, len(domain.FactKinds))
	for _, c := range cleaned {
		k := c.Fact.Kind()
		byKind[k] = append(byKind[k], c)
	}

	size := o.batchSize()
	for _, kind := range domain.FactKinds {
		items := byKind[kind]
		table := repository.FactTables[kind]
		tctx := logger.SetTable(ctx, table)
		for start := 0; start < len(items); start += size {
			batch := items[start:min(start+size, len(items))]
			bctx := logger.WithField(tctx, logger.FieldBatch, start/size+1)
			if err := o.loadBatch(bctx, r, kind, table, batch); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) loadBatch(ctx context.Context, r *run, kind domain.FactKind, table string, batch []cleaner.Cleaned) error {
	started := time.Now()
	var counts domain.TableCounts

	err := o.gw.WithTx(ctx, func(tx *repository.Gateway) error {
		for _, c := range batch {
			clearID(c.Fact)
		}
		ins, skip, err := tx.BulkUpsert(ctx, table, naturalKey(kind), factRows(kind, batch))
		counts.Inserted, counts.Skipped = ins, skip
		return err
	})
	var integrityErr *domain.IntegrityError
	switch {
	case err == nil:
	case abortsRun(ctx, err):
		return err
	case errors.As(err, &integrityErr):
		logger.FromContext(ctx).WithError(err).WithField("rows", len(batch)).
			Warn("Batch hit a constraint violation, loading rows individually")
		counts, err = o.loadRows(ctx, r, kind, table, batch)
		if err != nil {
			return err
		}
	default:
		logger.FromContext(ctx).WithError(err).WithField("rows", len(batch)).
			Error("Batch failed to load")
		counts = domain.TableCounts{Failed: int64(len(batch))}
		for _, c := range batch {
			o.reject(r, c.Staging, err)
		}
	}

	o.addCounts(r, kind, counts)
	o.metrics.ObserveBatch(table, counts.Inserted, counts.Skipped, counts.Failed, time.Since(started))
	logger.With(logger.Fields{"kind": kind}).
		WithLoadCounts(counts.Inserted, counts.Skipped, counts.Failed).
		WithDuration(time.Since(started).Milliseconds()).
		Debug(ctx, "Loaded batch of %d", len(batch))
	return nil
}

// loadRows retries a rolled-back batch one row at a time.
func (o *Orchestrator) loadRows(ctx context.Context, r *run, kind domain.FactKind, table string, batch []cleaner.Cleaned) (domain.TableCounts, error) {
	var counts domain.TableCounts
	for _, c := range batch {
		clearID(c.Fact)
		ins, skip, err := o.gw.BulkUpsert(ctx, table, naturalKey(kind), factRows(kind, []cleaner.Cleaned{c}))
		if err != nil {
			if abortsRun(ctx, err) {
				return counts, err
			}
			counts.Failed++
			o.reject(r, c.Staging, err)
			continue
		}
		counts.Inserted += ins
		counts.Skipped += skip
	}
	return counts, nil
}

func (o *Orchestrator) addCounts(r *run, kind domain.FactKind, c domain.TableCounts) {
	t := r.res.Tables[kind]
	t.Inserted += c.Inserted
	t.Skipped += c.Skipped
	t.Failed += c.Failed
	r.res.Inserted += c.Inserted
	r.res.Skipped += c.Skipped
	r.res.Failed += c.Failed
}

// reject records a load-time failure alongside the cleaning rejects.
func (o *Orchestrator) reject(r *run, rec *domain.StagingRecord, err error) {
	r.res.Rejects[domain.RejectReason(err)]++
	if rec == nil {
		return
	}
	rec.MarkFailed(err)
	r.rejects = append(r.rejects, rec)
}

// abortsRun reports errors that end the run instead of failing records.
func abortsRun(ctx context.Context, err error) bool {
	if ctx.Err() != nil || repository.IsCanceled(err) {
		return true
	}
	var connErr *domain.ConnectionError
	return errors.As(err, &connErr)
}

func naturalKey(kind domain.FactKind) []string {
	switch kind {
	case domain.FactRidership:
		return domain.RidershipNaturalKey
	case domain.FactDelay:
		return domain.DelayNaturalKey
	default:
		return domain.PerformanceNaturalKey
	}
}

// factRows returns a typed slice so GORM resolves the model.
func factRows(kind domain.FactKind, batch []cleaner.Cleaned) any {
	switch kind {
	case domain.FactRidership:
		rows := make([]*domain.Ridership, 0, len(batch))
		for _, c := range batch {
			rows = append(rows, c.Fact.(*domain.Ridership))
		}
		return rows
	case domain.FactDelay:
		rows := make([]*domain.Delay, 0, len(batch))
		for _, c := range batch {
			rows = append(rows, c.Fact.(*domain.Delay))
		}
		return rows
	default:
		rows := make([]*domain.Performance, 0, len(batch))
		for _, c := range batch {
			rows = append(rows, c.Fact.(*domain.Performance))
		}
		return rows
	}
}

// clearID drops a primary key left by an insert that was rolled back.
func clearID(f domain.FactRecord) {
	switch v := f.(type) {
	case *domain.Ridership:
		v.ID = 0
	case *domain.Delay:
		v.ID = 0
	case *domain.Performance:
		v.ID = 0
	}
}
