package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/transitdw/internal/domain"
)

func TestSchedulerWindow(t *testing.T) {
	cfg := testConfig(t)
	o, _ := newTestOrchestrator(t, cfg)
	s := NewScheduler(o, cfg.Schedule)
	s.now = func() time.Time { return time.Date(2024, 1, 4, 2, 0, 0, 0, time.UTC) }

	start, end := s.Window()
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), end)

	s.cfg.LookbackDays = 0
	start, end = s.Window()
	assert.Equal(t, end, start)
}

func TestSchedulerRunOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generator.TargetRecords = 100
	o, _ := newTestOrchestrator(t, cfg)
	s := NewScheduler(o, cfg.Schedule)
	s.now = func() time.Time { return time.Date(2024, 1, 4, 2, 0, 0, 0, time.UTC) }

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSucceeded, res.State)

	last, lastErr := s.Last()
	assert.Same(t, res, last)
	assert.NoError(t, lastErr)

	start, end := o.LastRegistry().Range()
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), end)
}

func TestSchedulerStart(t *testing.T) {
	tests := []struct {
		name    string
		cron    string
		source  string
		wantErr bool
	}{
		{name: "daily", cron: "0 2 * * *", source: "api"},
		{name: "descriptor", cron: "@hourly", source: "synthetic"},
		{name: "bad expression", cron: "every day", source: "api", wantErr: true},
		{name: "bad source", cron: "0 2 * * *", source: "fax", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Schedule.Cron = tt.cron
			cfg.Schedule.Source = tt.source
			o, _ := newTestOrchestrator(t, cfg)
			s := NewScheduler(o, cfg.Schedule)

			err := s.Start(context.Background())
			if tt.wantErr {
				var cfgErr *domain.ConfigurationError
				require.True(t, errors.As(err, &cfgErr), "got %v", err)
				assert.True(t, s.Next().IsZero())
				return
			}
			require.NoError(t, err)
			t.Cleanup(s.Stop)
			assert.True(t, s.Next().After(time.Now()))
		})
	}
}
