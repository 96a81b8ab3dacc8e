package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/registry"
)

func newTestGateway(t *testing.T) (*Gateway, *registry.Registry) {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "transit.db"),
		AutoMigrate: true,
		LogLevel:    "silent",
	}
	db, err := InitDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reg, err := registry.New(registry.Options{Start: start, End: start.AddDate(0, 0, 2), Stations: 30, Seed: 7})
	require.NoError(t, err)

	gw := NewGateway(db, RetryOptions{Attempts: 2, BaseDelay: time.Millisecond})
	_, err = NewDimensionRepository(gw).Seed(context.Background(), reg)
	require.NoError(t, err)
	return gw, reg
}

func ridershipRows(reg *registry.Registry, n int) []*domain.Ridership {
	rows := make([]*domain.Ridership, 0, n)
	stations := reg.Stations()
	for i := range n {
		st := stations[i%len(stations)]
		lineID := reg.LinesForStation(st.StationID)[0]
		rows = append(rows, &domain.Ridership{
			DateKey:      20240101,
			TimeKey:      registry.TimeKeyFor(8, i%60),
			StationID:    st.StationID,
			LineID:       lineID,
			Entries:      100,
			Exits:        90,
			TotalTraffic: 190,
			DataSource:   domain.DataSourceSynthetic,
		})
	}
	return rows
}

func TestSeedIsIdempotent(t *testing.T) {
	gw, reg := newTestGateway(t)
	repo := NewDimensionRepository(gw)

	res, err := repo.Seed(context.Background(), reg)
	require.NoError(t, err)
	for table, n := range res {
		assert.Zero(t, n, table)
	}

	counts, err := repo.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(24), counts["dim_subway_lines"])
	assert.Equal(t, int64(30), counts["dim_stations"])
	assert.Equal(t, int64(3), counts["dim_date"])
	assert.Equal(t, int64(1440), counts["dim_time"])
	assert.Zero(t, counts["fact_ridership"])
}

func TestSchemaLinksFactsToDimensions(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()

	links := func(table string) map[string]string {
		res, err := gw.ExecuteQuery(ctx, `SELECT "from", "table" FROM pragma_foreign_key_list(?)`, table)
		require.NoError(t, err)
		out := make(map[string]string, len(res.Rows))
		for _, row := range res.Rows {
			out[row[0].(string)] = row[1].(string)
		}
		return out
	}

	assert.Equal(t, map[string]string{
		"date_key":   "dim_date",
		"time_key":   "dim_time",
		"station_id": "dim_stations",
		"line_id":    "dim_subway_lines",
	}, links("fact_ridership"))
	assert.Equal(t, map[string]string{
		"date_key":   "dim_date",
		"time_key":   "dim_time",
		"station_id": "dim_stations",
		"line_id":    "dim_subway_lines",
	}, links("fact_delays"))
	assert.Equal(t, map[string]string{
		"date_key": "dim_date",
		"line_id":  "dim_subway_lines",
	}, links("fact_performance"))

	for _, table := range DimensionTables {
		assert.Empty(t, links(table), table)
	}
}

func TestSeedRefreshesStationsFromLatestRegistry(t *testing.T) {
	gw, first := newTestGateway(t)
	ctx := context.Background()

	next, err := registry.New(registry.Options{
		Start:    first.Dates()[0].FullDate,
		End:      first.Dates()[len(first.Dates())-1].FullDate,
		Stations: 30,
		Seed:     8,
	})
	require.NoError(t, err)

	res, err := NewDimensionRepository(gw).Seed(ctx, next)
	require.NoError(t, err)
	assert.Positive(t, res["dim_stations"])

	var stored []domain.Station
	require.NoError(t, gw.DB().WithContext(ctx).Order("station_id").Find(&stored).Error)
	byID := make(map[string]domain.Station, len(stored))
	for _, st := range stored {
		byID[st.StationID] = st
	}
	for _, want := range next.Stations() {
		got, ok := byID[want.StationID]
		require.True(t, ok, want.StationName)
		assert.Equal(t, want, got, want.StationName)
	}

	res, err = NewDimensionRepository(gw).Seed(ctx, next)
	require.NoError(t, err)
	assert.Zero(t, res["dim_stations"])
}

func TestBulkUpsertSkipsDuplicates(t *testing.T) {
	gw, reg := newTestGateway(t)
	ctx := context.Background()

	inserted, skipped, err := gw.BulkUpsert(ctx, "fact_ridership", domain.RidershipNaturalKey, ridershipRows(reg, 50))
	require.NoError(t, err)
	assert.Equal(t, int64(50), inserted)
	assert.Zero(t, skipped)

	inserted, skipped, err = gw.BulkUpsert(ctx, "fact_ridership", domain.RidershipNaturalKey, ridershipRows(reg, 60))
	require.NoError(t, err)
	assert.Equal(t, int64(10), inserted)
	assert.Equal(t, int64(50), skipped)
}

func TestBulkUpsertAppendsDelaysWithoutExternalID(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()
	mk := func(ext *string) *domain.Delay {
		return &domain.Delay{
			ExternalID: ext, DateKey: 20240102, TimeKey: 1730, LineID: 1,
			DelayDurationMinutes: 12, DelayCategory: "Moderate", SeverityLevel: "Medium",
			DelayReason: "Signal Problems", DataSource: domain.DataSourceAPI,
		}
	}

	rows := []*domain.Delay{mk(nil), mk(nil), mk(domain.Ptr("ext-1"))}
	inserted, _, err := gw.BulkUpsert(ctx, "fact_delays", domain.DelayNaturalKey, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(3), inserted)

	rows = []*domain.Delay{mk(nil), mk(domain.Ptr("ext-1"))}
	inserted, skipped, err := gw.BulkUpsert(ctx, "fact_delays", domain.DelayNaturalKey, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted)
	assert.Equal(t, int64(1), skipped)
}

func TestBulkUpsertReportsIntegrityError(t *testing.T) {
	gw, reg := newTestGateway(t)
	rows := ridershipRows(reg, 3)
	rows[1].StationID = "DEADBEEF"

	_, _, err := gw.BulkUpsert(context.Background(), "fact_ridership", domain.RidershipNaturalKey, rows)
	var integrity *domain.IntegrityError
	require.True(t, errors.As(err, &integrity), "got %v", err)
}

func TestBulkUpsertRejectsNonSlice(t *testing.T) {
	gw, _ := newTestGateway(t)
	_, _, err := gw.BulkUpsert(context.Background(), "fact_ridership", nil, &domain.Ridership{})
	require.Error(t, err)
}

func TestWithTxRollsBack(t *testing.T) {
	gw, reg := newTestGateway(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := gw.WithTx(ctx, func(tx *Gateway) error {
		if _, _, err := tx.BulkUpsert(ctx, "fact_ridership", domain.RidershipNaturalKey, ridershipRows(reg, 5)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	res, err := gw.ExecuteQuery(ctx, "SELECT COUNT(*) AS n FROM fact_ridership")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, 0, res.Rows[0][0])
}

func TestExecuteQueryReadsViews(t *testing.T) {
	gw, reg := newTestGateway(t)
	ctx := context.Background()
	_, _, err := gw.BulkUpsert(ctx, "fact_ridership", domain.RidershipNaturalKey, ridershipRows(reg, 4))
	require.NoError(t, err)

	res, err := gw.ExecuteQuery(ctx, "SELECT station_name, time_period, total_traffic FROM ridership_summary ORDER BY station_name")
	require.NoError(t, err)
	assert.Equal(t, []string{"station_name", "time_period", "total_traffic"}, res.Columns)
	require.Len(t, res.Rows, 4)
	for _, row := range res.Rows {
		assert.Equal(t, registry.PeriodMorningRush, row[1])
		assert.EqualValues(t, 190, row[2])
	}
}

func TestJobRunLifecycle(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()
	repo := NewJobRunRepository(gw)

	run := &domain.JobRun{ID: "run-1", JobName: "nightly", JobType: "synthetic"}
	require.NoError(t, repo.Create(ctx, run))

	got, err := repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, got.Status)
	assert.Nil(t, got.EndTime)

	res := domain.NewJobResult("run-1", domain.DataSourceSynthetic)
	res.State = domain.StatePartiallySucceeded
	res.Status = res.State.JobStatus()
	res.Processed, res.Inserted, res.Failed = 100, 90, 10
	res.EndTime = time.Now().UTC()
	require.NoError(t, repo.Finalize(ctx, res))

	got, err = repo.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPartialFailure, got.Status)
	assert.Equal(t, int64(90), got.RecordsInserted)
	assert.Equal(t, int64(10), got.RecordsFailed)
	assert.NotNil(t, got.EndTime)
	assert.Contains(t, string(got.Details), `"records_inserted":90`)

	runs, err := repo.List(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStagingRejectsRoundTrip(t *testing.T) {
	gw, _ := newTestGateway(t)
	ctx := context.Background()
	repo := NewStagingRepository(gw)

	recs := []*domain.StagingRecord{
		{Kind: domain.FactRidership, Source: domain.DataSourceAPI, StationName: domain.Ptr("Atlantis"),
			ErrorMessage: `unknown station "Atlantis"`, Payload: domain.Payload{"station": "Atlantis"}},
		{Kind: domain.FactDelay, Source: domain.DataSourceAPI, ErrorMessage: `missing required field "line"`},
	}
	n, err := repo.SaveRejects(ctx, "run-2", recs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := repo.ListByRun(ctx, "run-2", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Atlantis", got[0].Payload["station"])
	assert.False(t, got[0].Processed)

	count, err := repo.CountByRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	deleted, err := repo.DeleteByRun(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestAnalyticsSummary(t *testing.T) {
	gw, reg := newTestGateway(t)
	ctx := context.Background()
	_, _, err := gw.BulkUpsert(ctx, "fact_ridership", domain.RidershipNaturalKey, ridershipRows(reg, 30))
	require.NoError(t, err)
	perf := []*domain.Performance{
		{DateKey: 20240101, LineID: 1, ScheduledTrips: 100, ActualTrips: 98, OnTimeTrips: 80, OnTimePercentage: 80, DataSource: domain.DataSourceSynthetic},
		{DateKey: 20240102, LineID: 1, ScheduledTrips: 100, ActualTrips: 98, OnTimeTrips: 90, OnTimePercentage: 90, DataSource: domain.DataSourceSynthetic},
	}
	_, _, err = gw.BulkUpsert(ctx, "fact_performance", domain.PerformanceNaturalKey, perf)
	require.NoError(t, err)

	s, err := NewAnalyticsRepository(gw).Summary(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(30), s.Totals.RidershipRows)
	assert.Equal(t, int64(30*190), s.Totals.TotalTraffic)
	assert.InDelta(t, 1.0, s.PeakShare, 1e-9)
	assert.Len(t, s.BusiestStations, 5)
	require.Len(t, s.Lines, 1)
	assert.InDelta(t, 85.0, s.Lines[0].AvgOnTimePercent, 1e-9)
	assert.Equal(t, int64(2), s.Lines[0].Days)
	require.Len(t, s.DayTypes, 1)
	assert.False(t, s.DayTypes[0].IsWeekend)
	assert.Empty(t, s.DelayCauses)
}

func TestMapDBError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		integrity  bool
		connection bool
	}{
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, true, false},
		{"pg fk violation", &pgconn.PgError{Code: "23503"}, true, false},
		{"pg connection failure", &pgconn.PgError{Code: "08006"}, false, true},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01"}, false, true},
		{"pg syntax error", &pgconn.PgError{Code: "42601"}, false, false},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, true, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, false, true},
		{"gorm duplicate", gorm.ErrDuplicatedKey, true, false},
		{"plain", errors.New("plain"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapDBError("op", tt.err)
			var integrity *domain.IntegrityError
			var conn *domain.ConnectionError
			assert.Equal(t, tt.integrity, errors.As(err, &integrity))
			assert.Equal(t, tt.connection, errors.As(err, &conn))
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.NoError(t, mapDBError("op", nil))
}

func TestGatewayRetriesConnectionErrors(t *testing.T) {
	gw := NewGateway(nil, RetryOptions{Attempts: 3, BaseDelay: time.Millisecond})
	calls := 0
	err := gw.do(context.Background(), "flaky", func(context.Context) error {
		calls++
		if calls < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = gw.do(context.Background(), "down", func(context.Context) error {
		calls++
		return sqlite3.Error{Code: sqlite3.ErrCantOpen}
	})
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 4, calls)

	calls = 0
	err = gw.do(context.Background(), "bad", func(context.Context) error {
		calls++
		return errors.New("syntax")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
