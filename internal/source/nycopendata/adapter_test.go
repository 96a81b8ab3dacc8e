package nycopendata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/source"
)

func testConfig(baseURL string) *config.APIConfig {
	return &config.APIConfig{
		BaseURL:           baseURL,
		AppToken:          "secret",
		Timeout:           5 * time.Second,
		MaxRetries:        2,
		RequestsPerSecond: 1000,
		Datasets: config.DatasetConfig{
			Ridership:   "ride",
			Delays:      "delay",
			Performance: "perf",
		},
	}
}

func fastOptions() Options {
	return Options{RetryWait: time.Millisecond, RetryMaxWait: 5 * time.Millisecond}
}

func TestFetchAllPagesThroughDatasets(t *testing.T) {
	ridership := make([]map[string]any, 5)
	for i := range ridership {
		ridership[i] = map[string]any{
			"transit_timestamp": "2024-03-04T08:00:00.000",
			"station_complex":   "Times Sq-42 St",
			"ridership":         strconv.Itoa(100 + i),
			"borough":           "M",
		}
	}
	delays := []map[string]any{{
		"start_date":         "2024-03-04T17:20:00",
		"line":               "Q",
		"delay_minutes":      "12",
		"reporting_category": "Signal Problems",
	}}
	perf := []map[string]any{{
		"month":              "2024-03-01T00:00:00.000",
		"line":               "7",
		"num_sched_trains":   "400",
		"num_actual_trains":  "390",
		"on_time_percentage": "0.82",
	}}

	var sawToken atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-App-Token") == "secret" {
			sawToken.Store(true)
		}
		assert.Contains(t, r.URL.Query().Get("$where"), "between '2024-03-01T00:00:00' and '2024-03-31T23:59:59'")
		limit, _ := strconv.Atoi(r.URL.Query().Get("$limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("$offset"))

		var rows []map[string]any
		switch r.URL.Path {
		case "/ride.json":
			rows = ridership
		case "/delay.json":
			rows = delays
		case "/perf.json":
			rows = perf
		default:
			http.NotFound(w, r)
			return
		}
		offset = min(offset, len(rows))
		end := min(offset+limit, len(rows))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows[offset:end])
	}))
	defer srv.Close()

	req := source.Request{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	a, err := NewAdapter(testConfig(srv.URL), req, fastOptions())
	require.NoError(t, err)

	recs, err := source.FetchAll(context.Background(), a, 2, 0)
	require.NoError(t, err)
	require.Len(t, recs, 7)
	assert.True(t, sawToken.Load())

	r0 := recs[0]
	assert.Equal(t, domain.FactRidership, r0.Kind)
	assert.Equal(t, domain.DataSourceAPI, r0.Source)
	assert.Equal(t, 8, *r0.Hour)
	assert.Equal(t, 0, *r0.Minute)
	assert.Equal(t, "Times Sq-42 St", *r0.StationName)
	assert.Equal(t, int64(100), *r0.Entries)
	assert.Nil(t, r0.Exits)
	assert.Equal(t, "M", r0.Payload["borough"])

	d := recs[5]
	assert.Equal(t, domain.FactDelay, d.Kind)
	assert.Equal(t, 17, *d.Hour)
	assert.Equal(t, 12, *d.DelayMinutes)
	assert.Equal(t, "Signal Problems", *d.DelayReason)
	require.NotNil(t, d.ExternalID)
	assert.Equal(t, rowID(row(delays[0])), *d.ExternalID)

	p := recs[6]
	assert.Equal(t, domain.FactPerformance, p.Kind)
	assert.Nil(t, p.Hour)
	assert.Equal(t, 400, *p.ScheduledTrips)
	assert.InDelta(t, 0.82, *p.OnTimePercentage, 1e-9)
}

func TestWhereCoversWholeDays(t *testing.T) {
	req := source.Request{
		Start: time.Date(2024, 2, 27, 15, 4, 5, 0, time.UTC),
		End:   time.Date(2024, 12, 1, 9, 30, 0, 0, time.UTC),
	}
	a, err := NewAdapter(testConfig("http://localhost"), req, fastOptions())
	require.NoError(t, err)

	assert.Equal(t, "transit_timestamp between '2024-02-27T00:00:00' and '2024-12-01T23:59:59'", a.where(a.datasets[0]))

	a.req = source.Request{}
	assert.Empty(t, a.where(a.datasets[0]))
}

func TestFetchBatchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"line":"A","month":"2024-03-01","num_sched_trains":"10","num_on_time_trains":"8"}]`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Datasets = config.DatasetConfig{Performance: "perf"}
	a, err := NewAdapter(cfg, source.Request{}, fastOptions())
	require.NoError(t, err)

	recs, next, err := a.FetchBatch(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, next)
	require.Len(t, recs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchBatchClassifiesFailures(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	a, err := NewAdapter(testConfig(srv.URL), source.Request{}, fastOptions())
	require.NoError(t, err)

	_, _, err = a.FetchBatch(context.Background(), "", 10)
	var connErr *domain.ConnectionError
	assert.True(t, errors.As(err, &connErr), "got %v", err)

	status.Store(http.StatusBadRequest)
	_, _, err = a.FetchBatch(context.Background(), "", 10)
	require.Error(t, err)
	assert.False(t, errors.As(err, &connErr))
}

func TestNewAdapterRequiresDataset(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.Datasets = config.DatasetConfig{Stations: "stations"}
	_, err := NewAdapter(cfg, source.Request{}, Options{})
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
}

func TestCheckEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/delay.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	a, err := NewAdapter(testConfig(srv.URL), source.Request{}, fastOptions())
	require.NoError(t, err)
	got := a.CheckEndpoints(context.Background())
	assert.Equal(t, map[string]bool{"ridership": true, "delay": false, "performance": true}, got)
}

func TestParseCursor(t *testing.T) {
	tests := []struct {
		in      string
		idx     int
		off     int
		wantErr bool
	}{
		{"", 0, 0, false},
		{"1:5000", 1, 5000, false},
		{"x:1", 0, 0, true},
		{"15", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			idx, off, err := parseCursor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.idx, idx)
			assert.Equal(t, tt.off, off)
		})
	}
}

func TestRowIDIsStable(t *testing.T) {
	a := row{"line": "A", "month": "2024-03-01", "delays": "4"}
	b := row{"delays": "4", "month": "2024-03-01", "line": "A"}
	assert.Equal(t, rowID(a), rowID(b))
	assert.NotEqual(t, rowID(a), rowID(row{"line": "C"}))
}
