package source

import (
	"context"
	"time"

	"github.com/timmy/transitdw/internal/domain"
)

// Request bounds what a source extracts.
type Request struct {
	Start time.Time
	End   time.Time
	// MaxRecords caps the total records returned; 0 means no cap.
	MaxRecords int
}

// Source defines the interface for transit record sources.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this source.
	// Parameters: none.
	// Returns:
	//   - string: display-friendly source name.
	GetDisplayName() string

	// DataSource returns the provenance stamped on records from this source.
	DataSource() domain.DataSource

	// FetchBatch fetches a batch of staging records starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of records to fetch.
	// Returns:
	//   - records: batch of raw records; kinds may be mixed.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (records []*domain.StagingRecord, nextCursor string, err error)
}

// FetchAll drains src from the first cursor.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - src: source to drain.
//   - pageSize: records per FetchBatch call.
//   - max: stop after this many records; 0 means no cap.
// Returns:
//   - []*domain.StagingRecord: every record fetched, in source order.
//   - error: first fetch error; records fetched so far are returned with it.
func FetchAll(ctx context.Context, src Source, pageSize, max int) ([]*domain.StagingRecord, error) {
	var (
		all    []*domain.StagingRecord
		cursor string
	)
	for {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		limit := pageSize
		if max > 0 && max-len(all) < limit {
			limit = max - len(all)
		}
		batch, next, err := src.FetchBatch(ctx, cursor, limit)
		if err != nil {
			return all, err
		}
		all = append(all, batch...)
		if next == "" || (max > 0 && len(all) >= max) {
			return all, nil
		}
		cursor = next
	}
}
