package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/transitdw/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(Options{Start: day("2024-01-01"), End: day("2024-01-31"), Stations: 120, Seed: 7})
	require.NoError(t, err)
	return reg
}

func TestTimePeriodFor(t *testing.T) {
	tests := []struct {
		hour   int
		period string
		peak   bool
	}{
		{0, PeriodLateNight, false},
		{6, PeriodLateNight, false},
		{7, PeriodMorningRush, true},
		{8, PeriodMorningRush, true},
		{9, PeriodMorningRush, true},
		{10, PeriodMidday, false},
		{13, PeriodMidday, false},
		{15, PeriodMidday, false},
		{16, PeriodEveningRush, true},
		{19, PeriodEveningRush, true},
		{20, PeriodNight, false},
		{23, PeriodNight, false},
	}
	for _, tt := range tests {
		if got := TimePeriodFor(tt.hour); got != tt.period {
			t.Errorf("TimePeriodFor(%d) = %q, want %q", tt.hour, got, tt.period)
		}
		if got := IsPeakHour(tt.hour); got != tt.peak {
			t.Errorf("IsPeakHour(%d) = %v, want %v", tt.hour, got, tt.peak)
		}
	}
}

func TestKeyEncoding(t *testing.T) {
	assert.Equal(t, 20240115, DateKeyFor(day("2024-01-15")))
	assert.Equal(t, 1630, TimeKeyFor(16, 30))
	assert.Equal(t, 5, TimeKeyFor(0, 5))
}

func TestNewRejectsReversedRange(t *testing.T) {
	_, err := New(Options{Start: day("2025-03-01"), End: day("2025-02-01")})
	var rangeErr *domain.InvalidRangeError
	require.True(t, errors.As(err, &rangeErr), "got %v", err)
}

func TestNewEnumeratesDimensions(t *testing.T) {
	reg := newTestRegistry(t)

	assert.Len(t, reg.Lines(), 24)
	assert.Len(t, reg.Stations(), 120)
	assert.Len(t, reg.Dates(), 31)
	assert.Len(t, reg.Times(), 1440)

	for _, tm := range reg.Times() {
		assert.Equal(t, TimePeriodFor(tm.Hour), tm.TimePeriod)
		assert.Equal(t, IsPeakHour(tm.Hour), tm.IsPeakHour)
	}

	newYear, ok := reg.Date(20240101)
	require.True(t, ok)
	assert.True(t, newYear.IsHoliday)
	assert.Equal(t, "Monday", newYear.DayName)
	assert.Equal(t, 1, newYear.Quarter)

	sat, ok := reg.Date(20240106)
	require.True(t, ok)
	assert.True(t, sat.IsWeekend)
}

func TestEveryLineHasStations(t *testing.T) {
	reg := newTestRegistry(t)
	for _, line := range reg.Lines() {
		assert.NotEmpty(t, reg.StationsForLine(line.LineID), "line %s", line.LineName)
	}
	for _, st := range reg.Stations() {
		assert.NotEmpty(t, reg.LinesForStation(st.StationID), "station %s", st.StationName)
		assert.Len(t, st.StationID, 8)
	}
}

func TestSameSeedSameStations(t *testing.T) {
	a := newTestRegistry(t)
	b := newTestRegistry(t)
	assert.Equal(t, a.Stations(), b.Stations())
}

func TestResolve(t *testing.T) {
	reg := newTestRegistry(t)

	tests := []struct {
		name    string
		kind    domain.DimensionKind
		key     string
		wantID  int
		wantErr bool
	}{
		{"line upper", domain.DimensionLine, "A", 8, false},
		{"line lower padded", domain.DimensionLine, "  sir ", 24, false},
		{"unknown line", domain.DimensionLine, "X", 0, true},
		{"date iso", domain.DimensionDate, "2024-01-15", 20240115, false},
		{"date compact", domain.DimensionDate, "20240115", 20240115, false},
		{"date outside range", domain.DimensionDate, "2023-12-31", 0, true},
		{"time clock", domain.DimensionTime, "16:30", 1630, false},
		{"time compact", domain.DimensionTime, "0805", 805, false},
		{"time hour only", domain.DimensionTime, "8", 800, false},
		{"time invalid", domain.DimensionTime, "25:00", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := reg.Resolve(tt.kind, tt.key)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrReference))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, key.ID)
		})
	}
}

func TestResolveStationIsCaseInsensitive(t *testing.T) {
	reg := newTestRegistry(t)

	key, err := reg.Resolve(domain.DimensionStation, "  times   square-42ND st ")
	require.NoError(t, err)
	assert.Equal(t, StationID("Times Square-42nd St"), key.Code)
	assert.Equal(t, "Times Square-42nd St", key.Name)
	assert.True(t, reg.IsMajor(key.Code))

	_, err = reg.Resolve(domain.DimensionStation, "Nowhere Junction")
	var unknown *domain.UnknownReferenceError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, domain.DimensionStation, unknown.Kind)
}

func TestAllIsStable(t *testing.T) {
	reg := newTestRegistry(t)
	lines := reg.All(domain.DimensionLine)
	require.Len(t, lines, 24)
	assert.Equal(t, "1", lines[0].Name)
	assert.Equal(t, "SIR", lines[23].Name)
	assert.Equal(t, reg.All(domain.DimensionStation), reg.All(domain.DimensionStation))
}

func TestHasTime(t *testing.T) {
	reg := newTestRegistry(t)
	for key, want := range map[int]bool{
		0:     true,
		1730:  true,
		2359:  true,
		2400:  false,
		1260:  false,
		-1:    false,
		-2359: false,
		-41:   false,
	} {
		assert.Equal(t, want, reg.HasTime(key), "key %d", key)
	}
}
