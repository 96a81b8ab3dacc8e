package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/transitdw/internal/domain"
)

func TestCollectors(t *testing.T) {
	c := New()
	c.ObserveBatch("fact_ridership", 90, 5, 2, 20*time.Millisecond)
	c.ObserveRejected("fact_ridership", 8)

	res := domain.NewJobResult("run", domain.DataSourceSynthetic)
	res.Status = domain.JobStatusPartialFailure
	res.Rejects["unknown_reference"] = 8
	res.StartTime = time.Unix(1000, 0)
	res.EndTime = time.Unix(1010, 0)
	c.ObserveRun(res)

	assert.Equal(t, 90.0, testutil.ToFloat64(c.records.WithLabelValues("fact_ridership", "inserted")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.records.WithLabelValues("fact_ridership", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("synthetic", "partial_failure")))
	assert.Equal(t, 8.0, testutil.ToFloat64(c.rejects.WithLabelValues("unknown_reference")))
	assert.Equal(t, 1010.0, testutil.ToFloat64(c.lastRun.WithLabelValues("partial_failure")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "transitdw_records_total")
}

func TestNilCollectorsAreNoop(t *testing.T) {
	var c *Collectors
	c.ObserveBatch("fact_delays", 1, 0, 0, time.Second)
	c.ObserveRejected("fact_delays", 1)
	c.ObserveRun(domain.NewJobResult("run", domain.DataSourceAPI))
}
