package config

import (
	"fmt"
	"strings"

	"rowquery/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "queries[1].shape"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static validation of a Config without touching the
// database. Every query shape is compiled, so descriptor errors (attribute
// conflicts, invalid layouts) are reported here rather than at run time.
func Validate(c Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateStorage(c.Storage)...)
	issues = append(issues, validateQueries(c.Queries)...)
	issues = append(issues, validateRuntime(c.Runtime, len(c.Queries))...)

	return issues
}

// knownStorage lists the backends built into the binary.
var knownStorage = map[string]struct{}{
	"postgres": {},
	"mssql":    {},
	"sqlite":   {},
	"mysql":    {},
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	} else if _, ok := knownStorage[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "storage.dsn must not be empty",
		})
	}
	if s.Kind == "postgres" && s.Options.Int("max_conns", 0) < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.options.max_conns",
			Message:  "max_conns must not be negative",
		})
	}

	return issues
}

func validateQueries(qs []Query) []Issue {
	var issues []Issue

	if len(qs) == 0 {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "queries",
			Message:  "no queries configured",
		})
	}

	names := map[string]int{}
	outputs := map[string]int{}
	for i, q := range qs {
		path := fmt.Sprintf("queries[%d]", i)

		if strings.TrimSpace(q.Name) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".name",
				Message:  "query name must not be empty",
			})
		} else if j, dup := names[q.Name]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".name",
				Message:  fmt.Sprintf("duplicate query name %q (also queries[%d])", q.Name, j),
			})
		} else {
			names[q.Name] = i
		}

		if strings.TrimSpace(q.SQL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".sql",
				Message:  "sql must not be empty",
			})
		}

		if len(q.Shape.Fields) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".shape",
				Message:  "shape has no fields",
			})
		} else if _, err := schema.Build(q.Shape); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".shape",
				Message:  err.Error(),
			})
		}

		switch q.Format {
		case "", FormatJSON, FormatJSONL:
		default:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".format",
				Message:  fmt.Sprintf("unknown format %q; use %q or %q", q.Format, FormatJSON, FormatJSONL),
			})
		}

		if out := q.Output; out != "" && out != "-" {
			if j, dup := outputs[out]; dup {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".output",
					Message:  fmt.Sprintf("output %q is also written by queries[%d]", out, j),
				})
			} else {
				outputs[out] = i
			}
		}

		if m := strings.ToLower(strings.TrimSpace(q.Shape.Merge)); q.Lenient && (m == "" || m == "none") {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".lenient",
				Message:  "lenient has no effect on a shape that does not merge rows",
			})
		}
	}

	return issues
}

func validateRuntime(r RuntimeConfig, queries int) []Issue {
	var issues []Issue

	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	} else if queries > 0 && r.Workers > queries {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.workers",
			Message:  fmt.Sprintf("workers=%d exceeds the number of queries (%d)", r.Workers, queries),
		})
	}
	if r.QueryTimeoutSeconds < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.query_timeout_seconds",
			Message:  "query_timeout_seconds must not be negative",
		})
	}

	return issues
}
