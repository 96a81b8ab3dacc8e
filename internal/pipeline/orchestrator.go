// Package pipeline runs one extract, clean and load cycle into the warehouse
// and records it as a job run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/transitdw/internal/cleaner"
	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/metrics"
	"github.com/timmy/transitdw/internal/registry"
	"github.com/timmy/transitdw/internal/repository"
	"github.com/timmy/transitdw/internal/source"
)

// RunRequest describes one pipeline run.
type RunRequest struct {
	Source        domain.DataSource
	Start         time.Time
	End           time.Time
	TargetRecords int    // 0 takes generator.target_records
	Seed          uint64 // 0 takes generator.seed
	JobName       string // "" takes pipeline.job_name
}

// Orchestrator drives runs through
// INITIALIZED → EXTRACTING → CLEANING → LOADING → SUCCEEDED | PARTIALLY_SUCCEEDED | FAILED.
// Runs are sequential: a Run that starts while another is in flight waits
// for it to finish.
type Orchestrator struct {
	mu sync.Mutex

	cfg     *config.Config
	gw      *repository.Gateway
	jobs    *repository.JobRunRepository
	staging *repository.StagingRepository
	dims    *repository.DimensionRepository
	metrics *metrics.Collectors
	sources SourceFactory
	now     func() time.Time

	// Registry of the last run, for exports that follow it.
	lastRegistry *registry.Registry
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records run and batch metrics.
func WithMetrics(m *metrics.Collectors) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithSources replaces the source factory.
func WithSources(f SourceFactory) Option {
	return func(o *Orchestrator) { o.sources = f }
}

// NewOrchestrator creates an Orchestrator.
// Parameters:
//   - cfg: validated configuration.
//   - gw: persistence gateway.
//   - opts: optional metrics and source overrides.
// Returns:
//   - *Orchestrator: ready orchestrator.
func NewOrchestrator(cfg *config.Config, gw *repository.Gateway, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     cfg,
		gw:      gw,
		jobs:    repository.NewJobRunRepository(gw),
		staging: repository.NewStagingRepository(gw),
		dims:    repository.NewDimensionRepository(gw),
		now:     func() time.Time { return time.Now().UTC() },
	}
	o.sources = DefaultSources(cfg)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// LastRegistry returns the registry built by the most recent run.
func (o *Orchestrator) LastRegistry() *registry.Registry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastRegistry
}

// run is the mutable state of one invocation.
type run struct {
	res     *domain.JobResult
	reg     *registry.Registry
	rejects []*domain.StagingRecord
	aborted error
}

func (o *Orchestrator) transition(ctx context.Context, r *run, to domain.RunState) {
	from := r.res.State
	r.res.State = to
	r.res.States = append(r.res.States, to)
	logger.FromContext(ctx).WithFields(logger.Fields{
		"from": from,
		"to":   to,
	}).Infof("Run state %s -> %s", from, to)
}

// Run executes one pipeline run.
// Parameters:
//   - ctx: cancelling it rolls back the in-flight batch and fails the run.
//   - req: source, date range and sizing.
// Returns:
//   - *domain.JobResult: end-of-run summary; nil only for configuration errors.
//   - error: ConfigurationError before the run starts, or the error that
//     aborted the run. Per-record failures are reported in the result only.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (res *domain.JobResult, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	req, err = o.normalize(req)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(registry.Options{
		Start:    req.Start,
		End:      req.End,
		Stations: o.cfg.Generator.Stations,
		Seed:     req.Seed,
	})
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "date_range", Err: err}
	}
	src, err := o.sources(ctx, req.Source, req, reg)
	if err != nil {
		return nil, asConfigError("source", err)
	}

	runID := uuid.New().String()
	ctx = logger.SetRunID(ctx, runID)
	r := &run{res: domain.NewJobResult(runID, req.Source), reg: reg}
	r.res.StartTime = o.now()
	o.lastRegistry = reg

	logger.FromContext(ctx).WithFields(logger.Fields{
		"source": req.Source,
		"start":  req.Start.Format(domain.DateLayout),
		"end":    req.End.Format(domain.DateLayout),
		"target": req.TargetRecords,
	}).Info("Starting pipeline run")

	o.transition(ctx, r, domain.StateExtracting)
	if err := o.jobs.Create(ctx, &domain.JobRun{
		ID:        runID,
		JobName:   req.JobName,
		JobType:   string(req.Source),
		StartTime: r.res.StartTime,
	}); err != nil {
		closeSource(src)
		return nil, fmt.Errorf("open job run: %w", err)
	}
	defer func() {
		o.finalize(context.WithoutCancel(ctx), r)
		res, err = r.res, r.aborted
	}()

	if _, serr := o.dims.Seed(ctx, reg); serr != nil {
		r.aborted = fmt.Errorf("seed dimensions: %w", serr)
		return
	}

	recs, xerr := o.extract(ctx, r, req, src)
	if xerr != nil {
		r.aborted = xerr
		return
	}
	if cerr := ctx.Err(); cerr != nil {
		r.aborted = cerr
		return
	}

	o.transition(ctx, r, domain.StateCleaning)
	cleaned := o.clean(ctx, r, recs)

	o.transition(ctx, r, domain.StateLoading)
	if lerr := o.load(ctx, r, cleaned); lerr != nil {
		r.aborted = lerr
	}
	return
}

// normalize fills defaults and rejects requests that cannot start.
func (o *Orchestrator) normalize(req RunRequest) (RunRequest, error) {
	switch req.Source {
	case domain.DataSourceAPI:
		if o.cfg.API.BaseURL == "" {
			return req, &domain.ConfigurationError{Field: "api.base_url", Reason: "API source needs an endpoint"}
		}
	case domain.DataSourceSynthetic:
	default:
		return req, &domain.ConfigurationError{Field: "source", Reason: fmt.Sprintf("unknown source %q", req.Source)}
	}
	if req.Start.IsZero() || req.End.IsZero() {
		start, end, err := o.cfg.Generator.Range()
		if err != nil {
			return req, err
		}
		if req.Start.IsZero() {
			req.Start = start
		}
		if req.End.IsZero() {
			req.End = end
		}
	}
	req.Start, req.End = truncateDay(req.Start), truncateDay(req.End)
	if req.Start.After(req.End) {
		return req, &domain.ConfigurationError{
			Field: "date_range",
			Err:   &domain.InvalidRangeError{Start: req.Start, End: req.End},
		}
	}
	if req.TargetRecords < 0 {
		return req, &domain.ConfigurationError{
			Field: "target_records",
			Err:   &domain.InvalidParameterError{Name: "target_records", Value: req.TargetRecords, Reason: "must be positive"},
		}
	}
	if req.TargetRecords == 0 {
		req.TargetRecords = o.cfg.Generator.TargetRecords
	}
	if req.Seed == 0 {
		req.Seed = o.cfg.Generator.Seed
	}
	if req.JobName == "" {
		req.JobName = o.cfg.Pipeline.JobName
	}
	if req.JobName == "" {
		req.JobName = "transit_etl"
	}
	return req, nil
}

// extract drains the source. API runs fall back to the synthetic source when
// the API fails or returns too little, if configured.
func (o *Orchestrator) extract(ctx context.Context, r *run, req RunRequest, src source.Source) ([]*domain.StagingRecord, error) {
	ctx = logger.SetSource(logger.SetStage(ctx, string(domain.StateExtracting)), src.GetSourceID())
	defer closeSource(src)

	pageSize := o.cfg.API.PageSize
	if src.DataSource() == domain.DataSourceSynthetic || pageSize <= 0 {
		pageSize = o.batchSize()
	}
	max := 0
	if src.DataSource() == domain.DataSourceAPI {
		max = req.TargetRecords
	}

	started := time.Now()
	recs, err := source.FetchAll(ctx, src, pageSize, max)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	logger.With(logger.Fields{logger.FieldCount: len(recs)}).WithDuration(time.Since(started).Milliseconds()).Info(ctx, "Extracted records")

	if src.DataSource() != domain.DataSourceAPI {
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", src.GetSourceID(), err)
		}
		return recs, nil
	}

	short := err == nil && len(recs) < o.cfg.API.MinRecords
	if (err != nil || short) && o.cfg.API.FallbackToSynthetic {
		log := logger.FromContext(ctx).WithField("fetched", len(recs))
		if err != nil {
			log = log.WithError(err)
		}
		log.Warn("API extraction insufficient, falling back to synthetic data")

		fallback, ferr := o.sources(ctx, domain.DataSourceSynthetic, req, r.reg)
		if ferr != nil {
			return nil, fmt.Errorf("fallback source: %w", ferr)
		}
		r.res.FellBack = true
		r.res.Source = domain.DataSourceSynthetic
		defer closeSource(fallback)
		recs, err = source.FetchAll(ctx, fallback, o.batchSize(), 0)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", fallback.GetSourceID(), err)
		}
		return recs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", src.GetSourceID(), err)
	}
	return recs, nil
}

func (o *Orchestrator) clean(ctx context.Context, r *run, recs []*domain.StagingRecord) []cleaner.Cleaned {
	ctx = logger.SetStage(ctx, string(domain.StateCleaning))
	for _, rec := range recs {
		rec.RunID = r.res.RunID
	}
	c := cleaner.New(r.reg, cleaner.Options{
		MaxEntries:      o.cfg.Pipeline.MaxEntries,
		MaxDelayMinutes: o.cfg.Pipeline.MaxDelayMinutes,
	})
	out := c.CleanAll(ctx, recs)

	r.res.Processed = int64(len(recs))
	for reason, n := range out.ByReason {
		r.res.Rejects[reason] += n
	}
	for _, rec := range out.Rejected {
		if t, ok := r.res.Tables[rec.Kind]; ok {
			t.Failed++
		}
		r.res.Failed++
	}
	for _, k := range domain.FactKinds {
		o.metrics.ObserveRejected(repository.FactTables[k], r.res.Tables[k].Failed)
	}
	r.rejects = append(r.rejects, out.Rejected...)
	return out.Clean
}

// finalize settles the terminal state, persists rejects and closes the job
// run. It runs on every path once the job row exists.
func (o *Orchestrator) finalize(ctx context.Context, r *run) {
	res := r.res
	switch {
	case r.aborted != nil:
		res.Error = r.aborted.Error()
		o.transition(ctx, r, domain.StateFailed)
	case res.Failed > 0 && res.Inserted > 0:
		o.transition(ctx, r, domain.StatePartiallySucceeded)
	case res.Failed > 0 && res.Inserted == 0:
		res.Error = fmt.Sprintf("all %d records failed", res.Failed)
		o.transition(ctx, r, domain.StateFailed)
	default:
		o.transition(ctx, r, domain.StateSucceeded)
	}
	res.Status = res.State.JobStatus()

	if o.cfg.Pipeline.PersistRejects && len(r.rejects) > 0 {
		if _, err := o.staging.SaveRejects(ctx, res.RunID, r.rejects); err != nil {
			logger.FromContext(ctx).WithError(err).Error("Failed to persist rejected records")
		}
	}

	res.EndTime = o.now()
	if err := o.jobs.Finalize(ctx, res); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to finalize job run")
	}
	o.metrics.ObserveRun(res)

	entry := logger.With(logger.Fields{"fell_back": res.FellBack}).
		WithStatus(string(res.Status)).
		WithLoadCounts(res.Inserted, res.Skipped, res.Failed).
		WithDuration(res.EndTime.Sub(res.StartTime).Milliseconds())
	if res.State == domain.StateFailed {
		entry.Error(ctx, "%s", res.Summary())
	} else {
		entry.Info(ctx, "%s", res.Summary())
	}
}

func (o *Orchestrator) batchSize() int {
	if o.cfg.Pipeline.BatchSize > 0 {
		return o.cfg.Pipeline.BatchSize
	}
	return 5000
}

// asConfigError keeps ConfigurationError as is and wraps range and
// parameter errors raised while building the source.
func asConfigError(field string, err error) error {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}
	return &domain.ConfigurationError{Field: field, Err: err}
}
