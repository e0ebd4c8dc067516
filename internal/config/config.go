// Package config defines the JSON-serializable configuration of a rowquery
// run: which database to open, which queries to execute, and the shape each
// query's rows decode into.
//
// Decoding is performed by the standard library, with a light Options helper
// for backend-specific settings.
//
// Example (trimmed):
//
//	{
//	  "job": "nightly-authors",
//	  "storage": { "kind": "postgres", "dsn": "postgres://...", "options": { "max_conns": 4 } },
//	  "queries": [
//	    { "name": "authors",
//	      "sql": "SELECT a.id, a.name, b.id, b.title FROM author a JOIN book b ON b.author_id = a.id ORDER BY a.id",
//	      "shape": { "partition": "split", "merge": "group", "fields": [...] } }
//	  ],
//	  "runtime": { "workers": 2 }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"rowquery/internal/schema"
)

// Config is the top-level object decoded from a config file.
type Config struct {
	// Job names the run; it labels metrics and log lines.
	Job string `json:"job"`

	Storage Storage       `json:"storage"`
	Queries []Query       `json:"queries"`
	Runtime RuntimeConfig `json:"runtime"`
}

// Storage selects the database backend.
type Storage struct {
	// Kind selects the backend: "postgres", "mssql", "sqlite" or "mysql".
	Kind string `json:"kind"`

	// DSN is passed to the backend's driver.
	DSN string `json:"dsn"`

	// Options is a free-form map interpreted by the backend, e.g.
	// max_conns (int) for postgres or busy_timeout_ms (int) for sqlite.
	Options Options `json:"options"`
}

// Query is one statement whose rows decode into Shape.
type Query struct {
	// Name identifies the query in output, logs and metrics.
	Name string `json:"name"`

	SQL  string `json:"sql"`
	Args []any  `json:"args"`

	Shape schema.Shape `json:"shape"`

	// Lenient keeps a group's first values instead of failing when later rows
	// of the same group disagree on non-key fields.
	Lenient bool `json:"lenient"`

	// Output is a file path; empty or "-" writes to stdout.
	Output string `json:"output"`

	// Format is "json" (one array, the default) or "jsonl" (one value per line).
	Format string `json:"format"`
}

// Output formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// RuntimeConfig controls concurrency and timeouts.
type RuntimeConfig struct {
	// Workers bounds how many queries run concurrently; 0 means 1.
	Workers int `json:"workers"`

	// QueryTimeoutSeconds bounds each query; 0 means no timeout.
	QueryTimeoutSeconds int `json:"query_timeout_seconds"`
}

// Decode reads a Config from r. Unknown fields are rejected so typos in a
// config surface immediately.
func Decode(r io.Reader) (Config, error) {
	var c Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// Load reads a Config from the file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns the provided default
// when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64, so float64 is accepted and truncated.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// UnmarshalJSON makes a missing or null "options" object decode to a
// non-nil, empty Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
