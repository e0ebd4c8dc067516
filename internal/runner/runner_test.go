package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rowquery/internal/config"
	"rowquery/internal/metrics"
	"rowquery/internal/schema"
	"rowquery/internal/storage"
	"rowquery/pkg/fromrow"
)

type fakeRows struct {
	fromrow.Rows
	closed *bool
}

func (f fakeRows) Close() { *f.closed = true }

// fakeRepo serves canned rows keyed by SQL text.
type fakeRepo struct {
	mu     sync.Mutex
	rows   map[string][][]any
	err    error
	args   map[string][]any
	closed map[string]*bool
}

func newFakeRepo(rows map[string][][]any) *fakeRepo {
	return &fakeRepo{rows: rows, args: map[string][]any{}, closed: map[string]*bool{}}
}

func (f *fakeRepo) Query(_ context.Context, sql string, args ...any) (storage.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.args[sql] = args
	closed := new(bool)
	f.closed[sql] = closed
	return fakeRows{Rows: fromrow.SliceRows(f.rows[sql]...), closed: closed}, nil
}

func authorShape() schema.Shape {
	return schema.Shape{
		Name:      "author",
		Partition: "split",
		Merge:     "group",
		Fields: []schema.Field{
			{Name: "id", Type: "bigint", Key: true},
			{Name: "name", Type: "text"},
			{Name: "books", Split: true, Merge: true, Shape: &schema.Shape{
				Name: "book",
				Fields: []schema.Field{
					{Name: "id", Type: "bigint"},
					{Name: "title", Type: "text?"},
				},
			}},
		},
	}
}

func pairShape() schema.Shape {
	return schema.Shape{Fields: []schema.Field{
		{Name: "k", Type: "int"},
		{Name: "v", Type: "text"},
	}}
}

const authorsSQL = "SELECT authors"

var authorRows = [][]any{
	{int64(1), "Ann", int64(10), "A"},
	{int64(1), "Ann", int64(11), nil},
	{int64(2), "Bob", int64(20), "C"},
}

func newTestRunner(repo Querier, workers int) (*Runner, *bytes.Buffer) {
	r := New(repo, config.Config{Job: "test", Runtime: config.RuntimeConfig{Workers: workers}})
	var out bytes.Buffer
	r.Stdout = &out
	return r, &out
}

func TestRun_FormatsOutput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		query  config.Query
		pretty bool
		want   string
	}{
		{
			name:  "json_group",
			query: config.Query{Name: "authors", SQL: authorsSQL, Shape: authorShape()},
			want: `[{"id":1,"name":"Ann","books":[{"id":10,"title":"A"},{"id":11,"title":null}]},` +
				`{"id":2,"name":"Bob","books":[{"id":20,"title":"C"}]}]` + "\n",
		},
		{
			name:  "jsonl_group",
			query: config.Query{Name: "authors", SQL: authorsSQL, Shape: authorShape(), Format: config.FormatJSONL},
			want: `{"id":1,"name":"Ann","books":[{"id":10,"title":"A"},{"id":11,"title":null}]}` + "\n" +
				`{"id":2,"name":"Bob","books":[{"id":20,"title":"C"}]}` + "\n",
		},
		{
			name:  "jsonl_streamed",
			query: config.Query{Name: "pairs", SQL: "SELECT pairs", Shape: pairShape(), Format: config.FormatJSONL},
			want:  `{"k":1,"v":"a"}` + "\n" + `{"k":2,"v":"b"}` + "\n",
		},
		{
			name:   "json_pretty",
			query:  config.Query{Name: "pairs", SQL: "SELECT pairs", Shape: pairShape()},
			pretty: true,
			want:   "[\n  {\n    \"k\": 1,\n    \"v\": \"a\"\n  },\n  {\n    \"k\": 2,\n    \"v\": \"b\"\n  }\n]\n",
		},
		{
			name:  "json_empty",
			query: config.Query{Name: "none", SQL: "SELECT none", Shape: pairShape()},
			want:  "[]\n",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			repo := newFakeRepo(map[string][][]any{
				authorsSQL:     authorRows,
				"SELECT pairs": {{int64(1), "a"}, {int64(2), "b"}},
			})
			r, out := newTestRunner(repo, 1)
			r.Pretty = c.pretty

			res, err := r.Run(context.Background(), []config.Query{c.query})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if diff := cmp.Diff(c.want, out.String()); diff != "" {
				t.Fatalf("output mismatch (-want +got):\n%s", diff)
			}
			if len(res) != 1 || res[0].Output != "-" {
				t.Fatalf("results: %+v", res)
			}
			if !*repo.closed[c.query.SQL] {
				t.Fatalf("rows were not closed")
			}
		})
	}
}

func TestRun_CountsRowsAndValues(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo(map[string][][]any{authorsSQL: authorRows})
	r, _ := newTestRunner(repo, 1)
	res, err := r.Run(context.Background(), []config.Query{{Name: "authors", SQL: authorsSQL, Shape: authorShape()}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res[0].Rows != 3 || res[0].Values != 2 {
		t.Fatalf("counts: rows=%d values=%d, want 3 and 2", res[0].Rows, res[0].Values)
	}
}

type bufCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufCloser) Close() error { b.closed = true; return nil }

// TestRun_ConcurrentFiles runs several queries on two workers, each writing
// its own output file.
func TestRun_ConcurrentFiles(t *testing.T) {
	t.Parallel()

	rows := map[string][][]any{}
	var queries []config.Query
	for _, name := range []string{"a", "b", "c", "d"} {
		sql := "SELECT " + name
		rows[sql] = [][]any{{int64(1), name}}
		queries = append(queries, config.Query{
			Name: name, SQL: sql, Shape: pairShape(),
			Format: config.FormatJSONL, Output: name + ".jsonl",
			Args: []any{float64(7), 1.5, "x"},
		})
	}
	repo := newFakeRepo(rows)
	r, stdout := newTestRunner(repo, 2)

	var mu sync.Mutex
	files := map[string]*bufCloser{}
	r.createFn = func(path string) (io.WriteCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		b := &bufCloser{}
		files[path] = b
		return b, nil
	}

	res, err := r.Run(context.Background(), queries)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res) != 4 || res[2].Query != "c" {
		t.Fatalf("results out of order: %+v", res)
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout should be empty, got %q", stdout.String())
	}
	for _, q := range queries {
		f := files[q.Output]
		if f == nil || !f.closed {
			t.Fatalf("%s: file not written and closed", q.Output)
		}
		if want := `{"k":1,"v":"` + q.Name + `"}` + "\n"; f.String() != want {
			t.Fatalf("%s: got %q want %q", q.Output, f.String(), want)
		}
		if diff := cmp.Diff([]any{int64(7), 1.5, "x"}, repo.args[q.SQL]); diff != "" {
			t.Fatalf("%s args mismatch (-want +got):\n%s", q.Name, diff)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	inconsistent := [][]any{
		{int64(1), "Ann", int64(10), "A"},
		{int64(1), "Anne", int64(11), "B"},
	}

	t.Run("inconsistent_group", func(t *testing.T) {
		t.Parallel()
		repo := newFakeRepo(map[string][][]any{authorsSQL: inconsistent})
		r, out := newTestRunner(repo, 1)
		_, err := r.Run(context.Background(), []config.Query{{Name: "authors", SQL: authorsSQL, Shape: authorShape()}})
		if !errors.Is(err, fromrow.ErrInconsistentGroup) || !strings.HasPrefix(err.Error(), "query authors:") {
			t.Fatalf("Run: got %v", err)
		}
		if out.Len() != 0 {
			t.Fatalf("failed query wrote output: %q", out.String())
		}
	})

	t.Run("lenient", func(t *testing.T) {
		t.Parallel()
		repo := newFakeRepo(map[string][][]any{authorsSQL: inconsistent})
		r, out := newTestRunner(repo, 1)
		_, err := r.Run(context.Background(), []config.Query{{Name: "authors", SQL: authorsSQL, Shape: authorShape(), Lenient: true}})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if !strings.Contains(out.String(), `"name":"Ann"`) {
			t.Fatalf("lenient output: %q", out.String())
		}
	})

	t.Run("bad_shape", func(t *testing.T) {
		t.Parallel()
		bad := pairShape()
		bad.Fields[0].Key = true
		r, _ := newTestRunner(newFakeRepo(nil), 1)
		_, err := r.Run(context.Background(), []config.Query{{Name: "bad", SQL: "SELECT", Shape: bad}})
		if !errors.Is(err, fromrow.ErrAttributeConflict) {
			t.Fatalf("Run: got %v want an attribute conflict", err)
		}
	})

	t.Run("query_error", func(t *testing.T) {
		t.Parallel()
		repo := newFakeRepo(nil)
		repo.err = errors.New("connection refused")
		r, _ := newTestRunner(repo, 1)
		_, err := r.Run(context.Background(), []config.Query{{Name: "q", SQL: "SELECT", Shape: pairShape()}})
		if !errors.Is(err, repo.err) {
			t.Fatalf("Run: got %v want %v", err, repo.err)
		}
	})
}

type recordingBackend struct {
	mu       sync.Mutex
	counters map[string]float64
}

func (b *recordingBackend) IncCounter(name string, delta float64, l metrics.Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := name
	if k := l["kind"]; k != "" {
		key += "/" + k
	}
	if s := l["step"]; s != "" {
		key += "/" + s + "/" + l["status"]
	}
	b.counters[key] += delta
}
func (b *recordingBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (b *recordingBackend) Flush() error                                     { return nil }

type quietBackend struct{}

func (quietBackend) IncCounter(string, float64, metrics.Labels)       {}
func (quietBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (quietBackend) Flush() error                                     { return nil }

// TestRun_RecordsMetrics installs a global backend, so it does not run in
// parallel.
func TestRun_RecordsMetrics(t *testing.T) {
	b := &recordingBackend{counters: map[string]float64{}}
	metrics.SetBackend(b)
	t.Cleanup(func() { metrics.SetBackend(quietBackend{}) })

	repo := newFakeRepo(map[string][][]any{authorsSQL: authorRows})
	r, _ := newTestRunner(repo, 1)
	if _, err := r.Run(context.Background(), []config.Query{{Name: "authors", SQL: authorsSQL, Shape: authorShape()}}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[string]float64{
		metrics.StepTotal + "/query/success":             1,
		metrics.StepTotal + "/decode/success":            1,
		metrics.RowsTotal + "/" + metrics.RowKindFetched: 3,
		metrics.ValuesTotal:                              2,
	}
	if diff := cmp.Diff(want, b.counters); diff != "" {
		t.Fatalf("counters mismatch (-want +got):\n%s", diff)
	}
}
