// Package export writes warehouse tables and BI views as CSV files and can
// push them to object storage.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/repository"
	"github.com/timmy/transitdw/internal/storage"
)

// File describes one written CSV.
type File struct {
	Name  string `json:"name"`
	Table string `json:"table"`
	Path  string `json:"path"`
	Rows  int    `json:"rows"`
	Bytes int64  `json:"bytes"`
}

// Manifest lists the files of one export.
type Manifest struct {
	Dir      string   `json:"dir"`
	Files    []File   `json:"files"`
	Uploaded []string `json:"uploaded,omitempty"`
}

// Options configures an Exporter.
type Options struct {
	Workers int
	Storage storage.ObjectStorage // nil disables Upload
	Prefix  string
}

// Exporter dumps warehouse tables to CSV.
type Exporter struct {
	gw   *repository.Gateway
	opts Options
}

// NewExporter creates a new Exporter.
func NewExporter(gw *repository.Gateway, opts Options) *Exporter {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Exporter{gw: gw, opts: opts}
}

// Tables returns every exported relation: dimensions, facts, then views.
func Tables() []string {
	tables := slices.Clone(repository.DimensionTables)
	for _, k := range domain.FactKinds {
		tables = append(tables, repository.FactTables[k])
	}
	return append(tables, repository.BIViews...)
}

// ExportAll writes one CSV per table and view into dir.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - dir: output directory, created if missing.
// Returns:
//   - *Manifest: written files in Tables order.
//   - error: first query or write failure.
func (e *Exporter) ExportAll(ctx context.Context, dir string) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	tables := Tables()
	files := make([]File, len(tables))

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, table := range tables {
		g.Go(func() error {
			f, err := e.exportTable(gctx, dir, table)
			if err != nil {
				return fmt.Errorf("export %s: %w", table, err)
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.With(logger.Fields{"dir": dir}).
		WithCount(len(files)).
		WithDuration(time.Since(started).Milliseconds()).
		Info(ctx, "Exported warehouse tables")
	return &Manifest{Dir: dir, Files: files}, nil
}

func (e *Exporter) exportTable(ctx context.Context, dir, table string) (File, error) {
	res, err := e.gw.ExecuteQuery(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY 1, 2", table))
	if err != nil {
		return File{}, err
	}
	path := filepath.Join(dir, table+".csv")
	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = formatValue(v)
		}
		rows = append(rows, rec)
	}
	size, err := writeCSV(path, res.Columns, slices.Values(rows))
	if err != nil {
		return File{}, err
	}
	return File{Name: table + ".csv", Table: table, Path: path, Rows: len(rows), Bytes: size}, nil
}

// Upload copies every manifest file to object storage under
// <prefix>/<label>/<name> and records the keys on the manifest.
func (e *Exporter) Upload(ctx context.Context, m *Manifest, label string) error {
	if e.opts.Storage == nil {
		return fmt.Errorf("object storage is not configured")
	}
	if label == "" {
		label = time.Now().UTC().Format("20060102T150405Z")
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, f := range m.Files {
		g.Go(func() error {
			key := objectKey(e.opts.Prefix, label, f.Name)
			if err := uploadFile(gctx, e.opts.Storage, key, f.Path); err != nil {
				return err
			}
			mu.Lock()
			m.Uploaded = append(m.Uploaded, key)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slices.Sort(m.Uploaded)
	logger.With(logger.Fields{"label": label}).WithCount(len(m.Uploaded)).Info(ctx, "Uploaded export files")
	return nil
}

func uploadFile(ctx context.Context, store storage.ObjectStorage, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	return store.Upload(ctx, key, f, info.Size(), "text/csv")
}

func objectKey(prefix, label, name string) string {
	if prefix == "" {
		return label + "/" + name
	}
	return prefix + "/" + label + "/" + name
}

// formatValue renders a scanned column value. Midnight timestamps are dates.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		x = x.UTC()
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// writeCSV writes header and rows to path and returns the file size.
func writeCSV(path string, header []string, rows iter.Seq[[]string]) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return 0, err
	}
	for row := range rows {
		if err := w.Write(row); err != nil {
			f.Close()
			return 0, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, err
	}
	return info.Size(), f.Close()
}
