package cleaner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/registry"
)

func newCleaner(t *testing.T) *Cleaner {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	reg, err := registry.New(registry.Options{Start: start, End: start.AddDate(0, 0, 30), Stations: 40, Seed: 1})
	require.NoError(t, err)
	return New(reg, Options{})
}

func ridershipRecord() *domain.StagingRecord {
	return &domain.StagingRecord{
		Kind:        domain.FactRidership,
		Source:      domain.DataSourceAPI,
		Date:        domain.Ptr(time.Date(2024, 3, 4, 8, 15, 0, 0, time.UTC)),
		Hour:        domain.Ptr(8),
		Minute:      domain.Ptr(15),
		StationName: domain.Ptr("TIMES SQUARE-42ND ST"),
		LineName:    domain.Ptr(" a "),
		Entries:     domain.Ptr(int64(1200)),
		Exits:       domain.Ptr(int64(1100)),
		Payload:     domain.Payload{"station_complex": "TIMES SQUARE-42ND ST"},
	}
}

func performanceRecord() *domain.StagingRecord {
	return &domain.StagingRecord{
		Kind:           domain.FactPerformance,
		Source:         domain.DataSourceAPI,
		Date:           domain.Ptr(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)),
		LineName:       domain.Ptr("7"),
		ScheduledTrips: domain.Ptr(400),
		ActualTrips:    domain.Ptr(390),
		OnTimeTrips:    domain.Ptr(320),
	}
}

func TestCleanRidership(t *testing.T) {
	c := newCleaner(t)
	rec := ridershipRecord()

	fact, err := c.Clean(rec)
	require.NoError(t, err)
	r, ok := fact.(*domain.Ridership)
	require.True(t, ok)

	assert.Equal(t, 20240304, r.DateKey)
	assert.Equal(t, 815, r.TimeKey)
	assert.Equal(t, registry.StationID("Times Square-42nd St"), r.StationID)
	assert.Equal(t, 8, r.LineID)
	assert.Equal(t, int64(2300), r.TotalTraffic)
	assert.Equal(t, domain.DataSourceAPI, r.DataSource)
	assert.True(t, rec.Processed)
	assert.Equal(t, "Times Square-42nd St", *rec.StationName)
	assert.Equal(t, "A", *rec.LineName)
}

func TestCleanRidershipWithoutLineUsesStationLine(t *testing.T) {
	c := newCleaner(t)
	rec := ridershipRecord()
	rec.StationName = domain.Ptr("bedford av")
	rec.LineName = nil

	fact, err := c.Clean(rec)
	require.NoError(t, err)
	l, _ := c.reg.Line("L")
	assert.Equal(t, l.LineID, fact.(*domain.Ridership).LineID)
}

func TestCleanRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.StagingRecord)
		reason string
		class  error
	}{
		{"missing date", func(r *domain.StagingRecord) { r.Date = nil }, "missing_field", domain.ErrValidation},
		{"missing hour", func(r *domain.StagingRecord) { r.Hour = nil }, "missing_field", domain.ErrValidation},
		{"blank station", func(r *domain.StagingRecord) { r.StationName = domain.Ptr("   ") }, "missing_field", domain.ErrValidation},
		{"no measures", func(r *domain.StagingRecord) { r.Entries, r.Exits = nil, nil }, "missing_field", domain.ErrValidation},
		{"unknown station", func(r *domain.StagingRecord) { r.StationName = domain.Ptr("Atlantis Plaza") }, "unknown_reference", domain.ErrReference},
		{"unknown line", func(r *domain.StagingRecord) { r.LineName = domain.Ptr("K") }, "unknown_reference", domain.ErrReference},
		{"date outside registry", func(r *domain.StagingRecord) {
			r.Date = domain.Ptr(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
		}, "unknown_reference", domain.ErrReference},
		{"bad minute", func(r *domain.StagingRecord) { r.Minute = domain.Ptr(75) }, "unknown_reference", domain.ErrReference},
		{"negative entries", func(r *domain.StagingRecord) { r.Entries = domain.Ptr(int64(-1)) }, "out_of_range", domain.ErrValidation},
		{"corrupt exits", func(r *domain.StagingRecord) { r.Exits = domain.Ptr(int64(5_000_000)) }, "out_of_range", domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCleaner(t)
			rec := ridershipRecord()
			tt.mutate(rec)

			fact, err := c.Clean(rec)
			require.Error(t, err)
			assert.Nil(t, fact)
			assert.Equal(t, tt.reason, domain.RejectReason(err))
			assert.True(t, errors.Is(err, tt.class))
			assert.False(t, rec.Processed)
			assert.Equal(t, err.Error(), rec.ErrorMessage)
		})
	}
}

func TestCleanPerformance(t *testing.T) {
	c := newCleaner(t)

	fact, err := c.Clean(performanceRecord())
	require.NoError(t, err)
	p := fact.(*domain.Performance)
	assert.Equal(t, 80.0, p.OnTimePercentage)
	assert.Equal(t, 70, p.LateTrips)
	assert.Equal(t, 10, p.CanceledTrips)

	rec := performanceRecord()
	rec.OnTimeTrips = nil
	rec.OnTimePercentage = domain.Ptr(0.75)
	rec.WaitAssessment = domain.Ptr(0.81)
	fact, err = c.Clean(rec)
	require.NoError(t, err)
	p = fact.(*domain.Performance)
	assert.Equal(t, 300, p.OnTimeTrips)
	assert.Equal(t, 75.0, p.OnTimePercentage)
	assert.InDelta(t, 81.0, p.WaitAssessment, 1e-9)
}

func TestCleanPerformanceInconsistent(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.StagingRecord)
	}{
		{"on time above scheduled", func(r *domain.StagingRecord) { r.OnTimeTrips = domain.Ptr(401) }},
		{"actual above scheduled", func(r *domain.StagingRecord) { r.ActualTrips = domain.Ptr(450) }},
		{"on time above actual", func(r *domain.StagingRecord) { r.ActualTrips = domain.Ptr(300) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := performanceRecord()
			tt.mutate(rec)
			_, err := newCleaner(t).Clean(rec)
			var inconsistent *domain.InconsistentDataError
			require.True(t, errors.As(err, &inconsistent), "got %v", err)
		})
	}

	rec := performanceRecord()
	rec.WaitAssessment = domain.Ptr(130.0)
	_, err := newCleaner(t).Clean(rec)
	var outOfRange *domain.OutOfRangeError
	require.True(t, errors.As(err, &outOfRange))
	assert.Equal(t, "wait_assessment", outOfRange.Field)
}

func TestCleanDelayDerivesClassification(t *testing.T) {
	c := newCleaner(t)
	rec := &domain.StagingRecord{
		Kind:          domain.FactDelay,
		Source:        domain.DataSourceAPI,
		ExternalID:    domain.Ptr("ext-1"),
		Date:          domain.Ptr(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
		Hour:          domain.Ptr(17),
		LineName:      domain.Ptr("q"),
		DelayMinutes:  domain.Ptr(42),
		DelayCategory: domain.Ptr("Minor"),
	}
	fact, err := c.Clean(rec)
	require.NoError(t, err)
	d := fact.(*domain.Delay)
	assert.Equal(t, "Major", d.DelayCategory)
	assert.Equal(t, "High", d.SeverityLevel)
	assert.Equal(t, 1700, d.TimeKey)
	assert.Nil(t, d.StationID)
	assert.Equal(t, "Unknown", d.DelayReason)
	assert.Equal(t, 42, d.ResolutionTimeMinutes)

	rec.DelayMinutes = domain.Ptr(2000)
	_, err = c.Clean(rec)
	var outOfRange *domain.OutOfRangeError
	require.True(t, errors.As(err, &outOfRange))
}

func TestCleanAllIsolatesFailures(t *testing.T) {
	c := newCleaner(t)
	recs := make([]*domain.StagingRecord, 0, 100)
	for i := range 100 {
		rec := ridershipRecord()
		rec.Minute = domain.Ptr(i % 60)
		rec.Hour = domain.Ptr(i / 60)
		if i%10 == 0 {
			rec.StationName = domain.Ptr(fmt.Sprintf("Ghost Station %d", i))
		}
		recs = append(recs, rec)
	}

	res := c.CleanAll(context.Background(), recs)
	assert.Len(t, res.Clean, 90)
	assert.Len(t, res.Rejected, 10)
	assert.Equal(t, map[string]int64{"unknown_reference": 10}, res.ByReason)
	for _, rec := range res.Rejected {
		assert.Contains(t, rec.ErrorMessage, "Ghost Station")
	}
}

func TestNormalizeHelpers(t *testing.T) {
	assert.Equal(t, "Bronx", NormalizeBorough(" bx "))
	assert.Equal(t, "Staten Island", NormalizeBorough("SI"))
	assert.Equal(t, "Gotham", NormalizeBorough("Gotham "))
	assert.Equal(t, "161st St-Yankee Stadium", TitleStation("161ST  ST-YANKEE STADIUM"))
	assert.Equal(t, "Jay Street-MetroTech", TitleStation("Jay Street-MetroTech"))
}
