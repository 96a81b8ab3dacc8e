package pipeline

import (
	"context"
	"time"

	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/generator"
	"github.com/timmy/transitdw/internal/registry"
	"github.com/timmy/transitdw/internal/source"
	"github.com/timmy/transitdw/internal/source/nycopendata"
	"github.com/timmy/transitdw/internal/source/synthetic"
)

// SourceFactory builds the source for a run.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - kind: requested provenance.
//   - req: the run request.
//   - reg: registry built for the run's range.
// Returns:
//   - source.Source: ready source.
//   - error: ConfigurationError, InvalidRangeError or InvalidParameterError.
type SourceFactory func(ctx context.Context, kind domain.DataSource, req RunRequest, reg *registry.Registry) (source.Source, error)

// DefaultSources builds the generator-backed and NYC Open Data sources from
// configuration.
func DefaultSources(cfg *config.Config) SourceFactory {
	return func(_ context.Context, kind domain.DataSource, req RunRequest, reg *registry.Registry) (source.Source, error) {
		switch kind {
		case domain.DataSourceAPI:
			return nycopendata.NewAdapter(&cfg.API, source.Request{
				Start:      req.Start,
				End:        req.End,
				MaxRecords: req.TargetRecords,
			}, nycopendata.Options{})
		default:
			gen, err := generator.New(reg, generator.Params{
				Start:         req.Start,
				End:           req.End,
				TargetRecords: req.TargetRecords,
				Seed:          req.Seed,
			})
			if err != nil {
				return nil, err
			}
			return synthetic.NewAdapter(gen), nil
		}
	}
}

// closeSource releases sources that hold a pulled stream.
func closeSource(src source.Source) {
	if c, ok := src.(interface{ Close() }); ok {
		c.Close()
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
