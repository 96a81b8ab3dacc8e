package repository

import (
	"context"
	"fmt"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/registry"
)

// Table names, in load order.
var (
	DimensionTables = []string{"dim_subway_lines", "dim_stations", "dim_date", "dim_time"}
	FactTables      = map[domain.FactKind]string{
		domain.FactRidership:   domain.Ridership{}.TableName(),
		domain.FactDelay:       domain.Delay{}.TableName(),
		domain.FactPerformance: domain.Performance{}.TableName(),
	}
)

// stationRefreshColumns are the dim_stations columns that depend on the
// registry seed and are rewritten when a later run derives them differently.
var stationRefreshColumns = []string{
	"station_complex_id", "gtfs_stop_id", "borough", "latitude", "longitude",
	"structure_type", "ada_accessible", "lines_served", "division",
}

// SeedResult reports rows written per dimension table.
type SeedResult map[string]int64

// DimensionRepository writes registry dimensions to the warehouse.
type DimensionRepository struct {
	gw *Gateway
}

// NewDimensionRepository creates a new DimensionRepository.
func NewDimensionRepository(gw *Gateway) *DimensionRepository {
	return &DimensionRepository{gw: gw}
}

// Seed inserts every registry dimension row that is not yet stored. Stored
// stations whose descriptive columns differ from the registry are updated so
// dim_stations agrees with the facts of the latest run. Reseeding the same
// registry writes nothing.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - reg: registry holding the dimension rows.
// Returns:
//   - SeedResult: inserted or changed rows per table.
//   - error: classified storage error.
func (r *DimensionRepository) Seed(ctx context.Context, reg *registry.Registry) (SeedResult, error) {
	res := make(SeedResult, len(DimensionTables))
	err := r.gw.WithTx(ctx, func(tx *Gateway) error {
		steps := []struct {
			table   string
			key     []string
			refresh []string
			rows    any
		}{
			{"dim_subway_lines", []string{"line_id"}, nil, reg.Lines()},
			{"dim_stations", []string{"station_id"}, stationRefreshColumns, reg.Stations()},
			{"dim_date", []string{"date_key"}, nil, reg.Dates()},
			{"dim_time", []string{"time_key"}, nil, reg.Times()},
		}
		for _, s := range steps {
			var (
				written int64
				err     error
			)
			if len(s.refresh) > 0 {
				written, err = tx.UpsertChanged(ctx, s.table, s.key, s.refresh, s.rows)
			} else {
				written, _, err = tx.BulkUpsert(ctx, s.table, s.key, s.rows)
			}
			if err != nil {
				return fmt.Errorf("seed %s: %w", s.table, err)
			}
			res[s.table] = written
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.With(logger.Fields{
		"lines":    res["dim_subway_lines"],
		"stations": res["dim_stations"],
		"dates":    res["dim_date"],
		"times":    res["dim_time"],
	}).Info(ctx, "Dimensions seeded")
	return res, nil
}

// Counts returns row counts for every dimension and fact table.
func (r *DimensionRepository) Counts(ctx context.Context) (map[string]int64, error) {
	tables := append([]string{}, DimensionTables...)
	for _, k := range domain.FactKinds {
		tables = append(tables, FactTables[k])
	}
	counts := make(map[string]int64, len(tables))
	for _, t := range tables {
		var n int64
		err := r.gw.do(ctx, "count "+t, func(ctx context.Context) error {
			return r.gw.db.WithContext(ctx).Table(t).Count(&n).Error
		})
		if err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, nil
}
