// Package runner executes configured queries against one repository and
// writes their decoded rows as JSON.
//
// Each query compiles its shape into a fromrow plan, runs its SQL, folds the
// rows according to the shape's merge kind and writes the values either as a
// single JSON array or as JSON lines. Queries run concurrently, bounded by the
// configured worker count; output to a shared writer is never interleaved.
package runner

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rowquery/internal/config"
	"rowquery/internal/metrics"
	"rowquery/internal/schema"
	"rowquery/internal/storage"
	"rowquery/pkg/fromrow"
)

// Querier is the part of storage.Repository the runner needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (storage.Rows, error)
}

// Runner runs query jobs. The zero value is not usable; build one with New.
type Runner struct {
	repo    Querier
	job     string
	workers int
	timeout time.Duration

	// Pretty indents JSON array output. JSON lines are never indented.
	Pretty bool

	// Stdout receives output for queries without an output path.
	Stdout io.Writer

	// createFn opens output files; tests replace it.
	createFn func(path string) (io.WriteCloser, error)

	stdoutMu sync.Mutex
}

// Result summarizes one finished query.
type Result struct {
	Query    string
	Rows     int64 // rows fetched from the database
	Values   int64 // values written after merging
	Output   string
	Duration time.Duration
}

// New returns a Runner for the job and runtime settings in cfg.
func New(repo Querier, cfg config.Config) *Runner {
	workers := cfg.Runtime.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		repo:    repo,
		job:     cfg.Job,
		workers: workers,
		timeout: time.Duration(cfg.Runtime.QueryTimeoutSeconds) * time.Second,
		Stdout:  os.Stdout,
		createFn: func(path string) (io.WriteCloser, error) {
			return os.Create(path)
		},
	}
}

// Run executes queries with at most the configured number running at once.
// The first failing query cancels the others; results are returned in query
// order for the queries that finished.
func (r *Runner) Run(ctx context.Context, queries []config.Query) ([]Result, error) {
	log.Printf("runner: job=%s queries=%d workers=%d", r.job, len(queries), r.workers)

	results := make([]Result, len(queries))
	done := make([]bool, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range queries {
		q := queries[i]
		g.Go(func() error {
			res, err := r.runQuery(gctx, q)
			if err != nil {
				return fmt.Errorf("query %s: %w", q.Name, err)
			}
			results[i] = res
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	out := results[:0]
	for i, ok := range done {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, err
}

func (r *Runner) runQuery(ctx context.Context, q config.Query) (Result, error) {
	start := time.Now()
	res := Result{Query: q.Name, Output: q.Output}
	if res.Output == "" {
		res.Output = "-"
	}

	plan, err := schema.Build(q.Shape)
	if err != nil {
		return res, fmt.Errorf("shape: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	t := time.Now()
	rows, err := r.repo.Query(ctx, q.SQL, normalizeArgs(q.Args)...)
	metrics.RecordStep(r.job, "query", err, time.Since(t))
	if err != nil {
		return res, err
	}
	defer rows.Close()

	w, closeOut, err := r.open(q.Output)
	if err != nil {
		return res, err
	}

	counted := &countingRows{Rows: rows}
	t = time.Now()
	res.Values, err = r.write(ctx, w, plan, counted, q)
	res.Rows = counted.n
	metrics.RecordStep(r.job, "decode", err, time.Since(t))
	metrics.RecordRows(r.job, q.Name, metrics.RowKindFetched, counted.n)

	if cerr := closeOut(err == nil); err == nil {
		err = cerr
	}
	if err != nil {
		if counted.n > 0 {
			metrics.RecordRows(r.job, q.Name, metrics.RowKindRejected, 1)
		}
		return res, err
	}
	metrics.RecordValues(r.job, q.Name, res.Values)

	res.Duration = time.Since(start)
	log.Printf("runner: query=%s rows=%d values=%d output=%s elapsed=%s",
		q.Name, res.Rows, res.Values, res.Output, res.Duration.Truncate(time.Millisecond))
	return res, nil
}

// write decodes rows with plan and encodes the values to w. JSON lines output
// of a non-merging shape is streamed row by row; everything else is folded
// first.
func (r *Runner) write(ctx context.Context, w io.Writer, plan *fromrow.Plan, rows fromrow.Rows, q config.Query) (int64, error) {
	enc := newEncoder(w, q.Format, r.Pretty)

	if q.Format == config.FormatJSONL && plan.Container().Merge == fromrow.MergeNone {
		var n int64
		err := plan.Each(ctx, rows, func(v reflect.Value) error {
			n++
			return enc.value(v)
		})
		if err != nil {
			return n, err
		}
		return n, enc.close()
	}

	var opts []fromrow.Option
	if q.Lenient {
		opts = append(opts, fromrow.Lenient())
	}
	vals, err := plan.Collect(ctx, rows, opts...)
	if err != nil {
		return 0, err
	}
	for _, v := range vals {
		if err := enc.value(v); err != nil {
			return 0, err
		}
	}
	return int64(len(vals)), enc.close()
}

// open returns the writer for path and a function that finishes it. Stdout
// output is buffered per query and copied under a lock, so concurrent queries
// never interleave; ok=false discards the buffer.
func (r *Runner) open(path string) (io.Writer, func(ok bool) error, error) {
	if path == "" || path == "-" {
		buf := &stdoutBuffer{}
		return buf, func(ok bool) error {
			if !ok {
				return nil
			}
			r.stdoutMu.Lock()
			defer r.stdoutMu.Unlock()
			_, err := r.Stdout.Write(buf.b)
			return err
		}, nil
	}

	f, err := r.createFn(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func(bool) error {
		if err := f.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
		return nil
	}, nil
}

type stdoutBuffer struct{ b []byte }

func (s *stdoutBuffer) Write(p []byte) (int, error) {
	s.b = append(s.b, p...)
	return len(p), nil
}

// countingRows counts the rows pulled through it.
type countingRows struct {
	fromrow.Rows
	n int64
}

func (c *countingRows) Next() bool {
	if c.Rows.Next() {
		c.n++
		return true
	}
	return false
}

// normalizeArgs turns whole JSON numbers into int64 so drivers bind them to
// integer parameters.
func normalizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if f, ok := a.(float64); ok && f == float64(int64(f)) {
			out[i] = int64(f)
			continue
		}
		out[i] = a
	}
	return out
}
