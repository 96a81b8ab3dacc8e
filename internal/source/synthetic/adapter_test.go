package synthetic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/transitdw/internal/cleaner"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/generator"
	"github.com/timmy/transitdw/internal/registry"
	"github.com/timmy/transitdw/internal/source"
)

func newAdapter(t *testing.T) (*Adapter, *generator.Generator) {
	t.Helper()
	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)
	reg, err := registry.New(registry.Options{Start: start, End: end, Stations: 40, Seed: 3})
	require.NoError(t, err)
	gen, err := generator.New(reg, generator.Params{Start: start, End: end, TargetRecords: 1500, Seed: 3})
	require.NoError(t, err)
	a := NewAdapter(gen)
	t.Cleanup(a.Close)
	return a, gen
}

func TestFetchAllServesWholeStream(t *testing.T) {
	a, gen := newAdapter(t)

	want := 0
	for range gen.Records() {
		want++
	}

	recs, err := source.FetchAll(context.Background(), a, 250, 0)
	require.NoError(t, err)
	assert.Len(t, recs, want)
	for _, rec := range recs {
		assert.Equal(t, domain.DataSourceSynthetic, rec.Source)
	}
}

func TestStagedRecordsCleanBackToFacts(t *testing.T) {
	a, gen := newAdapter(t)
	recs, err := source.FetchAll(context.Background(), a, 500, 0)
	require.NoError(t, err)

	res := cleaner.New(gen.Registry(), cleaner.Options{}).CleanAll(context.Background(), recs)
	assert.Empty(t, res.Rejected)

	i := 0
	for fact := range gen.Records() {
		require.Less(t, i, len(res.Clean))
		got := res.Clean[i].Fact
		assert.Equal(t, fact.Kind(), got.Kind())
		switch f := fact.(type) {
		case *domain.Ridership:
			g := got.(*domain.Ridership)
			assert.Equal(t, f.StationID, g.StationID)
			assert.Equal(t, f.TimeKey, g.TimeKey)
			assert.Equal(t, f.TotalTraffic, g.TotalTraffic)
		case *domain.Delay:
			g := got.(*domain.Delay)
			assert.Equal(t, *f.ExternalID, *g.ExternalID)
			assert.Equal(t, f.DelayCategory, g.DelayCategory)
		case *domain.Performance:
			g := got.(*domain.Performance)
			assert.Equal(t, f.OnTimePercentage, g.OnTimePercentage)
		}
		i++
	}
}

func TestFetchBatchCursorOrder(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	first, next, err := a.FetchBatch(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, "10", next)

	_, _, err = a.FetchBatch(ctx, "30", 10)
	assert.Error(t, err)

	again, _, err := a.FetchBatch(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}
