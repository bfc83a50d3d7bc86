package testutil

import (
	"sync"
	"time"
)

// RecordedMetric is one call captured by MetricsRecorder.
type RecordedMetric struct {
	Name  string
	Value int64
	Took  time.Duration
	Tags  map[string]string
}

// MetricsRecorder is an in-memory statsd.Sink.
type MetricsRecorder struct {
	mu      sync.Mutex
	counts  []RecordedMetric
	timings []RecordedMetric
}

// Count records a counter increment.
func (r *MetricsRecorder) Count(name string, value int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, RecordedMetric{Name: name, Value: value, Tags: tags})
}

// Timing records a duration.
func (r *MetricsRecorder) Timing(name string, value time.Duration, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timings = append(r.timings, RecordedMetric{Name: name, Took: value, Tags: tags})
}

// Counts returns the recorded counters named name.
func (r *MetricsRecorder) Counts(name string) []RecordedMetric {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RecordedMetric
	for _, m := range r.counts {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Timings returns the recorded timings named name.
func (r *MetricsRecorder) Timings(name string) []RecordedMetric {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RecordedMetric
	for _, m := range r.timings {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}
