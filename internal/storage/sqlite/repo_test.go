package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"rowquery/pkg/fromrow"

	"github.com/google/go-cmp/cmp"
)

func openMemory(t *testing.T) *Repository {
	t.Helper()
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: ":memory:", BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(closeFn)

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE author (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE book (id INTEGER PRIMARY KEY, author_id INTEGER REFERENCES author(id), title TEXT)`,
		`INSERT INTO author (id, name) VALUES (1, 'Ann'), (2, 'Bob'), (3, 'Cid')`,
		`INSERT INTO book (id, author_id, title) VALUES (10, 1, 'A'), (11, 1, NULL), (20, 2, 'C')`,
	} {
		if err := r.Exec(ctx, stmt); err != nil {
			t.Fatalf("Exec(%q): %v", stmt, err)
		}
	}
	return r
}

var allowAll = cmp.Exporter(func(reflect.Type) bool { return true })

type book struct {
	ID    int64
	Title *string
}

type author struct {
	_     struct{} `row:"split,group"`
	ID    int64    `row:"key"`
	Name  string
	Books []book `row:"split,merge"`
}

type authorRef struct {
	_     struct{} `row:"split"`
	ID    int64
	First *book `row:"split"`
}

func TestRepository_CollectGroup(t *testing.T) {
	t.Parallel()

	r := openMemory(t)
	rows, err := r.Query(context.Background(), `
		SELECT a.id, a.name, b.id, b.title
		FROM author a JOIN book b ON b.author_id = a.id
		ORDER BY a.id, b.id`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	defer rows.Close()

	got, err := fromrow.Collect[author](context.Background(), rows)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	a := "A"
	c := "C"
	want := []author{
		{ID: 1, Name: "Ann", Books: []book{{10, &a}, {11, nil}}},
		{ID: 2, Name: "Bob", Books: []book{{20, &c}}},
	}
	if diff := cmp.Diff(want, got, allowAll); diff != "" {
		t.Fatalf("Collect mismatch (-want +got):\n%s", diff)
	}
}

// TestRepository_LeftJoin checks authors without books decode with a nil
// pointer split field.
func TestRepository_LeftJoin(t *testing.T) {
	t.Parallel()

	r := openMemory(t)
	rows, err := r.Query(context.Background(), `
		SELECT a.id, b.id, b.title
		FROM author a LEFT JOIN book b ON b.author_id = a.id AND b.id IN (10, 20)
		WHERE a.id >= ?
		ORDER BY a.id`, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	defer rows.Close()

	var refs []authorRef
	err = fromrow.Each(context.Background(), rows, func(v authorRef) error {
		refs = append(refs, v)
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("rows: got %d want 3", len(refs))
	}
	if refs[0].First == nil || refs[0].First.ID != 10 {
		t.Fatalf("author 1: %+v", refs[0])
	}
	if refs[2].ID != 3 || refs[2].First != nil {
		t.Fatalf("author 3 should have no book: %+v", refs[2])
	}
}

func TestRepository_DecodeErrorsCarryRow(t *testing.T) {
	t.Parallel()

	r := openMemory(t)
	rows, err := r.Query(context.Background(), `SELECT id, title FROM book ORDER BY id`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	defer rows.Close()

	type strict struct {
		ID    int64
		Title string
	}
	_, err = fromrow.Collect[strict](context.Background(), rows)
	var de *fromrow.DecodeError
	if !errors.As(err, &de) || !errors.Is(err, fromrow.ErrTypeMismatch) {
		t.Fatalf("Collect: got %v, want a type mismatch", err)
	}
	if de.Row != 1 || de.Column != 1 {
		t.Fatalf("decode error position: %+v", de)
	}
}

func TestRepository_QueryError(t *testing.T) {
	t.Parallel()

	r := openMemory(t)
	if _, err := r.Query(context.Background(), `SELECT * FROM missing`); err == nil {
		t.Fatalf("Query: expected error for missing table")
	}
	if err := r.Exec(context.Background(), `NOT SQL`); err == nil {
		t.Fatalf("Exec: expected error")
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{DSN: " "}); err == nil {
		t.Fatalf("NewRepository: expected error for empty DSN")
	}
}
