package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/transitdw/internal/domain"
	"github.com/timmy/transitdw/internal/logger"
)

// insertChunk bounds the rows per INSERT statement so wide fact rows stay
// under the postgres bind parameter limit.
const insertChunk = 1000

// RetryOptions bounds the backoff applied to ConnectionError.
type RetryOptions struct {
	Attempts  uint64        // retries after the first try; 0 disables retry
	BaseDelay time.Duration // first backoff interval, doubled per attempt
}

// Gateway is the single write path into the warehouse. Every method
// classifies driver errors into domain.ConnectionError and
// domain.IntegrityError.
type Gateway struct {
	db    *gorm.DB
	retry RetryOptions
	inTx  bool
}

// QueryResult is the generic result of ExecuteQuery.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// NewGateway creates a Gateway.
// Parameters:
//   - db: GORM database handle.
//   - opts: retry policy for connection failures.
// Returns:
//   - *Gateway: gateway bound to db.
func NewGateway(db *gorm.DB, opts RetryOptions) *Gateway {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	return &Gateway{db: db, retry: opts}
}

// DB exposes the underlying handle for read-side repositories.
func (g *Gateway) DB() *gorm.DB { return g.db }

// do runs fn with bounded exponential backoff on ConnectionError. Inside a
// transaction fn runs once; the enclosing WithTx owns the retry.
func (g *Gateway) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if g.inTx || g.retry.Attempts == 0 {
		return mapDBError(op, fn(ctx))
	}
	attempt := 0
	backoff := retry.WithMaxRetries(g.retry.Attempts, retry.NewExponential(g.retry.BaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := mapDBError(op, fn(ctx))
		if domain.IsRetryable(err) {
			logger.FromContext(ctx).WithError(err).WithField("attempt", attempt).
				Warnf("Retrying %s after connection error", op)
			return retry.RetryableError(err)
		}
		return err
	})
}

// WithTx runs fn in a transaction. The transaction commits when fn returns
// nil and rolls back on error, panic or context cancellation. A
// ConnectionError from begin or commit retries the whole transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fn: work to run against a transaction-bound gateway.
// Returns:
//   - error: fn's error or a classified storage error.
func (g *Gateway) WithTx(ctx context.Context, fn func(tx *Gateway) error) error {
	if g.inTx {
		return fn(g)
	}
	return g.do(ctx, "transaction", func(ctx context.Context) error {
		return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&Gateway{db: tx, retry: g.retry, inTx: true})
		})
	})
}

// BulkUpsert inserts rows into table and ignores rows that conflict on
// uniqueCols. With no uniqueCols rows are appended.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - table: physical table name.
//   - uniqueCols: natural key columns for ON CONFLICT DO NOTHING.
//   - rows: slice of model structs or pointers.
// Returns:
//   - inserted: rows actually written.
//   - skipped: rows ignored as duplicates.
//   - err: IntegrityError, ConnectionError or other storage error.
func (g *Gateway) BulkUpsert(ctx context.Context, table string, uniqueCols []string, rows any) (inserted, skipped int64, err error) {
	var conflict *clause.OnConflict
	if len(uniqueCols) > 0 {
		conflict = &clause.OnConflict{Columns: columns(uniqueCols), DoNothing: true}
	}
	total, inserted, err := g.insertBatches(ctx, "bulk upsert "+table, table, conflict, rows)
	if err != nil {
		return 0, 0, err
	}
	return inserted, total - inserted, nil
}

// UpsertChanged inserts rows and overwrites updateCols of stored rows that
// conflict on uniqueCols, but only where at least one of those columns differs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - table: physical table name.
//   - uniqueCols: conflict target.
//   - updateCols: descriptive columns refreshed from the incoming row.
//   - rows: slice of model structs or pointers.
// Returns:
//   - int64: rows inserted or changed.
//   - error: IntegrityError, ConnectionError or other storage error.
func (g *Gateway) UpsertChanged(ctx context.Context, table string, uniqueCols, updateCols []string, rows any) (int64, error) {
	if len(uniqueCols) == 0 || len(updateCols) == 0 {
		return 0, fmt.Errorf("upsert %s: conflict and update columns are required", table)
	}
	changed := make([]string, len(updateCols))
	for i, c := range updateCols {
		changed[i] = fmt.Sprintf("%s.%s <> excluded.%s", table, c, c)
	}
	conflict := &clause.OnConflict{
		Columns:   columns(uniqueCols),
		DoUpdates: clause.AssignmentColumns(updateCols),
		Where:     clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: strings.Join(changed, " OR ")}}},
	}
	_, written, err := g.insertBatches(ctx, "upsert "+table, table, conflict, rows)
	return written, err
}

// insertBatches writes rows in insertChunk sized statements and reports the
// slice length and the affected row count.
func (g *Gateway) insertBatches(ctx context.Context, op, table string, conflict *clause.OnConflict, rows any) (total, affected int64, err error) {
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice {
		return 0, 0, fmt.Errorf("%s: rows must be a slice, got %T", op, rows)
	}
	total = int64(v.Len())
	if total == 0 {
		return 0, 0, nil
	}

	err = g.do(ctx, op, func(ctx context.Context) error {
		q := g.db.WithContext(ctx).Table(table).Omit(clause.Associations)
		if conflict != nil {
			q = q.Clauses(*conflict)
		}
		res := q.CreateInBatches(rows, insertChunk)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return total, affected, nil
}

func columns(names []string) []clause.Column {
	cols := make([]clause.Column, len(names))
	for i, n := range names {
		cols[i] = clause.Column{Name: n}
	}
	return cols
}

// ExecuteQuery runs a read query and returns its columns and rows.
// []byte values are returned as strings.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - query: SQL with ? placeholders.
//   - args: placeholder values.
// Returns:
//   - *QueryResult: column names and row values.
//   - error: classified storage error.
func (g *Gateway) ExecuteQuery(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	var result *QueryResult
	err := g.do(ctx, "query", func(ctx context.Context) error {
		rows, err := g.db.WithContext(ctx).Raw(query, args...).Rows()
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		res := &QueryResult{Columns: cols}
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}
			for i, val := range vals {
				if b, ok := val.([]byte); ok {
					vals[i] = string(b)
				}
			}
			res.Rows = append(res.Rows, vals)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		result = res
		return nil
	})
	return result, err
}

// Ping checks connectivity.
func (g *Gateway) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return mapDBError("ping", err)
	}
	return g.do(ctx, "ping", sqlDB.PingContext)
}

// IsCanceled reports whether err comes from context cancellation or deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
