package fromrow

import (
	"context"
	"database/sql"
	"sync"
)

// Rows is a single-consumer, forward-only row stream. Next blocks until a row
// is available or the stream ends; Err reports why it ended. pgx.Rows
// satisfies Rows as is.
type Rows interface {
	Next() bool
	Values() ([]any, error)
	Err() error
}

// SliceRows serves rows from memory.
func SliceRows(rows ...[]any) Rows {
	return &sliceRows{rows: rows, pos: -1}
}

type sliceRows struct {
	rows [][]any
	pos  int
}

func (r *sliceRows) Next() bool {
	if r.pos+1 >= len(r.rows) {
		r.pos = len(r.rows)
		return false
	}
	r.pos++
	return true
}

func (r *sliceRows) Values() ([]any, error) { return r.rows[r.pos], nil }
func (r *sliceRows) Err() error             { return nil }

// ChanRows pulls rows from a channel until it is closed or ctx is done.
// Producers signal failure by calling Fail before closing the channel.
func ChanRows(ctx context.Context, in <-chan []any) *ChannelRows {
	return &ChannelRows{ctx: ctx, in: in}
}

// ChannelRows adapts a channel producer to Rows.
type ChannelRows struct {
	ctx context.Context
	in  <-chan []any
	cur []any

	mu  sync.Mutex
	err error
}

func (r *ChannelRows) Next() bool {
	if r.Err() != nil {
		return false
	}
	select {
	case <-r.ctx.Done():
		r.Fail(r.ctx.Err())
		return false
	case row, ok := <-r.in:
		if !ok {
			return false
		}
		r.cur = row
		return true
	}
}

func (r *ChannelRows) Values() ([]any, error) { return r.cur, nil }

func (r *ChannelRows) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Fail records a producer error; the stream ends at the next call to Next.
// The first error wins.
func (r *ChannelRows) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// SQLRows adapts *sql.Rows. Every column is scanned into an any, so values
// arrive as the driver's native types.
func SQLRows(rows *sql.Rows) *DBRows {
	return &DBRows{rows: rows}
}

// DBRows adapts database/sql result sets to Rows.
type DBRows struct {
	rows *sql.Rows
	err  error
}

func (r *DBRows) Next() bool { return r.err == nil && r.rows.Next() }

func (r *DBRows) Values() ([]any, error) {
	cols, err := r.rows.Columns()
	if err != nil {
		r.err = err
		return nil, err
	}
	vals := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := r.rows.Scan(dest...); err != nil {
		r.err = err
		return nil, err
	}
	return vals, nil
}

func (r *DBRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

// Close releases the underlying result set.
func (r *DBRows) Close() { _ = r.rows.Close() }
