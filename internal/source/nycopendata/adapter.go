// Package nycopendata reads MTA transit datasets from the NYC Open Data
// (Socrata SODA) API.
package nycopendata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/timmy/transitdw/internal/config"
	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/logger"
	"github.com/timmy/transitdw/internal/source"
)

const (
	SourceID   = "nycopendata"
	SourceName = "NYC Open Data"

	defaultBaseURL = "https://data.ny.gov/resource"
)

// dataset is one fact feed and the column its date filter applies to.
type dataset struct {
	kind      domain.FactKind
	id        string
	dateField string
}

// Adapter implements the Source interface for the SODA endpoints. Cursors
// have the form "<dataset index>:<offset>".
type Adapter struct {
	client   *resty.Client
	limiter  *rate.Limiter
	datasets []dataset
	probes   map[string]string
	req      source.Request
}

// Options tunes the HTTP client. Zero values fall back to defaults.
type Options struct {
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

// NewAdapter creates a new NYC Open Data adapter.
// Parameters:
//   - cfg: API configuration (base URL, token, datasets, retry and pacing).
//   - req: date range to extract.
//   - opts: client tuning.
// Returns:
//   - *Adapter: adapter ready to page through the configured datasets.
//   - error: ConfigurationError when no dataset is configured.
func NewAdapter(cfg *config.APIConfig, req source.Request, opts Options) (*Adapter, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}
	if opts.RetryMaxWait <= 0 {
		opts.RetryMaxWait = 30 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "transitdw/1.0")
	if cfg.AppToken != "" {
		client.SetHeader("X-App-Token", cfg.AppToken)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	a := &Adapter{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		req:     req,
		probes:  make(map[string]string),
	}
	for _, ds := range []dataset{
		{domain.FactRidership, cfg.Datasets.Ridership, "transit_timestamp"},
		{domain.FactDelay, cfg.Datasets.Delays, "month"},
		{domain.FactPerformance, cfg.Datasets.Performance, "month"},
	} {
		if ds.id != "" {
			a.datasets = append(a.datasets, ds)
			a.probes[string(ds.kind)] = ds.id
		}
	}
	if len(a.datasets) == 0 {
		return nil, &domain.ConfigurationError{Field: "api.datasets", Reason: "no fact dataset configured"}
	}
	if cfg.Datasets.Stations != "" {
		a.probes["stations"] = cfg.Datasets.Stations
	}
	if cfg.Datasets.Hourly != "" {
		a.probes["hourly"] = cfg.Datasets.Hourly
	}
	return a, nil
}

// GetSourceID returns the unique identifier for this source
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// GetDisplayName returns a human-readable name for this source
func (a *Adapter) GetDisplayName() string {
	return SourceName
}

// DataSource implements source.Source.
func (a *Adapter) DataSource() domain.DataSource {
	return domain.DataSourceAPI
}

// FetchBatch fetches one page of the current dataset. A short page moves the
// cursor to the next dataset.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]*domain.StagingRecord, string, error) {
	idx, offset, err := parseCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if idx >= len(a.datasets) {
		return nil, "", nil
	}
	ds := a.datasets[idx]

	rows, err := a.fetchPage(ctx, ds, offset, limit)
	if err != nil {
		return nil, "", err
	}

	recs := make([]*domain.StagingRecord, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, toStaging(ds.kind, r))
	}

	logger.With(logger.Fields{
		"dataset": ds.id,
		"kind":    ds.kind,
		"offset":  offset,
	}).WithCount(len(recs)).Debug(ctx, "Fetched page")

	next := ""
	switch {
	case len(rows) == limit:
		next = fmt.Sprintf("%d:%d", idx, offset+limit)
	case idx+1 < len(a.datasets):
		next = fmt.Sprintf("%d:0", idx+1)
	}
	return recs, next, nil
}

func (a *Adapter) fetchPage(ctx context.Context, ds dataset, offset, limit int) ([]row, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{
		"$limit":  strconv.Itoa(limit),
		"$offset": strconv.Itoa(offset),
		"$order":  ":id",
	}
	if where := a.where(ds); where != "" {
		params["$where"] = where
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/" + ds.id + ".json")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.ConnectionError{Op: "fetch " + ds.id, Err: err}
	}
	if err := statusError(ds.id, resp); err != nil {
		return nil, err
	}

	var rows []row
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ds.id, err)
	}
	return rows, nil
}

func (a *Adapter) where(ds dataset) string {
	if a.req.Start.IsZero() || a.req.End.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s between '%s' and '%s'", ds.dateField,
		a.req.Start.Format(domain.DateLayout)+"T00:00:00",
		a.req.End.Format(domain.DateLayout)+"T23:59:59")
}

// CheckEndpoints probes every configured dataset with a one-row request.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - map[string]bool: dataset name to availability.
func (a *Adapter) CheckEndpoints(ctx context.Context) map[string]bool {
	out := make(map[string]bool, len(a.probes))
	for name, id := range a.probes {
		if err := a.limiter.Wait(ctx); err != nil {
			out[name] = false
			continue
		}
		resp, err := a.client.R().
			SetContext(ctx).
			SetQueryParam("$limit", "1").
			Get("/" + id + ".json")
		out[name] = err == nil && resp.IsSuccess()
		if !out[name] {
			logger.CtxWarn(ctx, "Endpoint %s (%s) unavailable", name, id)
		}
	}
	return out
}

func statusError(id string, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	err := fmt.Errorf("%s: HTTP %d: %s", id, resp.StatusCode(), truncate(resp.String(), 200))
	if resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError {
		return &domain.ConnectionError{Op: "fetch " + id, Err: err}
	}
	return err
}

func parseCursor(cursor string) (int, int, error) {
	if cursor == "" {
		return 0, 0, nil
	}
	idxStr, offStr, ok := strings.Cut(cursor, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cursor %q: %w", cursor, err)
	}
	off, err := strconv.Atoi(offStr)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cursor %q: %w", cursor, err)
	}
	return idx, off, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
