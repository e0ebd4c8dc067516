package config

import (
	"strings"
	"testing"
)

// TestLoad_DecodesFile checks the sample config maps onto the Go types.
func TestLoad_DecodesFile(t *testing.T) {
	t.Parallel()

	c, err := Load("testdata/authors.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Job != "authors-nightly" {
		t.Fatalf("job = %q", c.Job)
	}
	if c.Storage.Kind != "postgres" || c.Storage.Options.Int("max_conns", 0) != 4 {
		t.Fatalf("storage = %#v", c.Storage)
	}
	if len(c.Queries) != 1 {
		t.Fatalf("queries = %d, want 1", len(c.Queries))
	}
	q := c.Queries[0]
	if q.Format != FormatJSONL || len(q.Args) != 1 || q.Args[0] != "CZ" {
		t.Fatalf("query = %#v", q)
	}
	if q.Shape.Merge != "group" || len(q.Shape.Fields) != 3 || q.Shape.Fields[2].Shape == nil {
		t.Fatalf("shape = %#v", q.Shape)
	}
	if c.Runtime.QueryTimeoutSeconds != 30 {
		t.Fatalf("runtime = %#v", c.Runtime)
	}
	if issues := Validate(c); len(issues) != 0 {
		t.Fatalf("sample config has issues: %+v", issues)
	}
}

// TestLoad_ShippedSample keeps the sample job in configs/ valid.
func TestLoad_ShippedSample(t *testing.T) {
	t.Parallel()

	c, err := Load("../../configs/jobs/sample.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if issues := Validate(c); len(issues) != 0 {
		t.Fatalf("sample job has issues: %+v", issues)
	}
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := Decode(strings.NewReader(`{"job":"x","stroage":{}}`))
	if err == nil || !strings.Contains(err.Error(), "stroage") {
		t.Fatalf("Decode: got %v, want unknown field error", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load("testdata/does-not-exist.json"); err == nil {
		t.Fatalf("Load: expected error")
	}
}

func TestOptions_NullDecodesEmpty(t *testing.T) {
	t.Parallel()

	c, err := Decode(strings.NewReader(`{"storage":{"kind":"sqlite","options":null}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if c.Storage.Options == nil {
		t.Fatalf("options = nil, want empty map")
	}
}

func TestOptions_TypedAccess(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":    "v",
		"b":    true,
		"f":    float64(7),
		"i":    3,
		"m":    map[string]any{"a": "x", "n": 1.0},
		"junk": []any{1},
	}
	if got := o.String("s", "d"); got != "v" {
		t.Fatalf("String = %q", got)
	}
	if got := o.String("b", "d"); got != "d" {
		t.Fatalf("String(non-string) = %q, want default", got)
	}
	if !o.Bool("b", false) || o.Bool("missing", false) {
		t.Fatalf("Bool mismatch")
	}
	if o.Int("f", 0) != 7 || o.Int("i", 0) != 3 || o.Int("junk", 9) != 9 {
		t.Fatalf("Int mismatch")
	}
	if m := o.StringMap("m"); len(m) != 1 || m["a"] != "x" {
		t.Fatalf("StringMap = %v", m)
	}
	var nilOpts Options
	if nilOpts.Int("x", 5) != 5 {
		t.Fatalf("nil Options should return defaults")
	}
}
