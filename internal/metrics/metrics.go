// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from query jobs.
//
// It exposes a narrow interface (Backend) focused on counters and timing data,
// and a global, pluggable backend that defaults to a no-op implementation so
// metrics are always safe to call even when no real backend is configured.
// Concrete metric systems live in subpackages (prompush, datadog).
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by all backends.
const (
	StepTotal       = "rowquery_step_total"
	StepDuration    = "rowquery_step_duration_seconds"
	RowsTotal       = "rowquery_rows_total"
	ValuesTotal     = "rowquery_values_total"
	StatusSuccess   = "success"
	StatusFailure   = "failure"
	RowKindFetched  = "fetched"
	RowKindRejected = "rejected"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep records latency and success/failure of one step of a query job
// ("connect", "query", "decode", "write").
func RecordStep(job, step string, err error, d time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows increments the row counter for the given job, query and kind
// (fetched, rejected).
func RecordRows(job, query, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{
		"job":   job,
		"query": query,
		"kind":  kind,
	})
}

// RecordValues increments the counter of decoded values emitted by a query.
// With a merging shape it is lower than the fetched row count.
func RecordValues(job, query string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(ValuesTotal, float64(delta), Labels{
		"job":   job,
		"query": query,
	})
}
