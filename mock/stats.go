package mock

import (
	"sync"
	"time"
)

// RecordingStatter is used for testing.
type RecordingStatter struct {
	mu      sync.Mutex
	Counts  map[string]int64
	Tagged  map[string]int64
	Timings map[string]time.Duration
}

// Count implements Count. Counts are kept both by name and by name and first
// tag, as "name|tag".
func (r *RecordingStatter) Count(name string, value int64, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Counts == nil {
		r.Counts = make(map[string]int64)
		r.Tagged = make(map[string]int64)
	}
	r.Counts[name] += value
	if len(tags) > 0 {
		r.Tagged[name+"|"+tags[0]] += value
	}
}

// Gauge implements Gauge.
func (r *RecordingStatter) Gauge(name string, value float64, rate float64, tags ...string) {}

// Histogram implements Histogram.
func (r *RecordingStatter) Histogram(name string, value float64, rate float64, tags ...string) {}

// Set implements Set.
func (r *RecordingStatter) Set(name string, value string, rate float64, tags ...string) {}

// Timing implements Timing.
func (r *RecordingStatter) Timing(name string, value time.Duration, rate float64, tags ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Timings == nil {
		r.Timings = make(map[string]time.Duration)
	}
	r.Timings[name] += value
}
