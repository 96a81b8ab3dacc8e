package export

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/generator"
	"github.com/timmy/transitdw/internal/registry"
	"github.com/timmy/transitdw/internal/repository"
	"github.com/timmy/transitdw/internal/storage"
)

var testStart = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func newGenerator(t *testing.T) *generator.Generator {
	t.Helper()
	end := testStart.AddDate(0, 0, 1)
	reg, err := registry.New(registry.Options{Start: testStart, End: end, Stations: 25, Seed: 5})
	require.NoError(t, err)
	gen, err := generator.New(reg, generator.Params{Start: testStart, End: end, TargetRecords: 300, Seed: 5})
	require.NoError(t, err)
	return gen
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteGeneratedIsDeterministic(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()

	genA := newGenerator(t)
	m, err := WriteGenerated(dirA, genA.Registry(), genA.Records())
	require.NoError(t, err)
	genB := newGenerator(t)
	_, err = WriteGenerated(dirB, genB.Registry(), genB.Records())
	require.NoError(t, err)

	names := make([]string, 0, len(m.Files))
	for _, f := range m.Files {
		names = append(names, f.Name)
		a, err := os.ReadFile(filepath.Join(dirA, f.Name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dirB, f.Name))
		require.NoError(t, err)
		assert.Equal(t, a, b, f.Name)
	}
	assert.Equal(t, []string{"subway_lines.csv", "stations.csv", "ridership.csv", "delays.csv", "performance.csv"}, names)

	rows := readCSV(t, filepath.Join(dirA, "ridership.csv"))
	assert.Equal(t, ridershipColumns, rows[0])
	assert.Equal(t, m.Files[2].Rows, len(rows)-1)
	assert.Len(t, readCSV(t, filepath.Join(dirA, "stations.csv")), len(genA.Registry().Stations())+1)
}

func TestWriteGeneratedValidatesBeforeWriting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	gen := newGenerator(t)

	_, err := WriteGenerated(dir, nil, gen.Records())
	var paramErr *domain.InvalidParameterError
	require.True(t, errors.As(err, &paramErr))
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))

	_, err = WriteGenerated("", gen.Registry(), gen.Records())
	assert.True(t, errors.As(err, &paramErr))
}

func newExportGateway(t *testing.T) *repository.Gateway {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "transit.db"),
		AutoMigrate: true,
		LogLevel:    "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	gw := repository.NewGateway(db, repository.RetryOptions{})

	gen := newGenerator(t)
	ctx := context.Background()
	_, err = repository.NewDimensionRepository(gw).Seed(ctx, gen.Registry())
	require.NoError(t, err)
	var perf []*domain.Performance
	for rec := range gen.Records() {
		if p, ok := rec.(*domain.Performance); ok {
			perf = append(perf, p)
		}
	}
	_, _, err = gw.BulkUpsert(ctx, "fact_performance", domain.PerformanceNaturalKey, perf)
	require.NoError(t, err)
	return gw
}

func TestExportAllWritesEveryTableAndView(t *testing.T) {
	gw := newExportGateway(t)
	dir := t.TempDir()
	store := storage.NewMemoryStorage()
	e := NewExporter(gw, Options{Workers: 3, Storage: store, Prefix: "exports"})
	ctx := context.Background()

	m, err := e.ExportAll(ctx, dir)
	require.NoError(t, err)
	require.Len(t, m.Files, len(Tables()))

	byTable := make(map[string]File, len(m.Files))
	for _, f := range m.Files {
		byTable[f.Table] = f
		_, err := os.Stat(f.Path)
		require.NoError(t, err)
	}
	assert.Equal(t, 1440, byTable["dim_time"].Rows)
	assert.Equal(t, 2, byTable["dim_date"].Rows)
	assert.Zero(t, byTable["fact_ridership"].Rows)
	assert.Positive(t, byTable["performance_trends"].Rows)

	dates := readCSV(t, byTable["dim_date"].Path)
	assert.Equal(t, "date_key", dates[0][0])
	assert.Equal(t, "20240501", dates[1][0])
	assert.Equal(t, "2024-05-01", dates[1][1])

	require.NoError(t, e.Upload(ctx, m, "run-1"))
	assert.Len(t, m.Uploaded, len(m.Files))
	keys, err := store.List(ctx, "exports/run-1/")
	require.NoError(t, err)
	assert.Contains(t, keys, "exports/run-1/dim_stations.csv")
}

func TestUploadRequiresStorage(t *testing.T) {
	e := NewExporter(nil, Options{})
	assert.Error(t, e.Upload(context.Background(), &Manifest{}, ""))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"Midday", "Midday"},
		{[]byte("Q"), "Q"},
		{true, "true"},
		{int64(42), "42"},
		{87.5, "87.5"},
		{time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "2024-05-01"},
		{time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC), "2024-05-01T08:30:00Z"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.in))
	}
}
