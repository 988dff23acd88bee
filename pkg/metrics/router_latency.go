// Package metrics tracks pipeline latency percentiles and database pool health.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Pipeline stage names recorded by the query router.
const (
	StageClassify = "classify"
	StageRoute    = "route"
	StageDraft    = "draft"
	StagePersist  = "persist"
	StageTotal    = "total"
)

// LatencyTracker keeps a sliding window of samples.
type LatencyTracker struct {
	mu         sync.Mutex
	samples    []int64 // microseconds
	maxSamples int
	sorted     bool
}

// NewLatencyTracker creates a tracker keeping the last windowSize samples.
func NewLatencyTracker(windowSize int) *LatencyTracker {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &LatencyTracker{
		samples:    make([]int64, 0, windowSize),
		maxSamples: windowSize,
	}
}

// Record adds a sample. A full window drops its oldest 10%.
func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if len(lt.samples) >= lt.maxSamples {
		drop := max(lt.maxSamples/10, 1)
		lt.samples = append(lt.samples[:0], lt.samples[drop:]...)
	}
	lt.samples = append(lt.samples, d.Microseconds())
	lt.sorted = false
}

// Stats returns percentiles over the current window.
func (lt *LatencyTracker) Stats() LatencyStats {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	n := len(lt.samples)
	if n == 0 {
		return LatencyStats{}
	}
	if !lt.sorted {
		sort.Slice(lt.samples, func(i, j int) bool { return lt.samples[i] < lt.samples[j] })
		lt.sorted = true
	}

	var sum int64
	for _, v := range lt.samples {
		sum += v
	}
	at := func(p float64) time.Duration {
		return time.Duration(lt.samples[int(float64(n-1)*p)]) * time.Microsecond
	}

	return LatencyStats{
		Count: n,
		Min:   time.Duration(lt.samples[0]) * time.Microsecond,
		Max:   time.Duration(lt.samples[n-1]) * time.Microsecond,
		Avg:   time.Duration(sum/int64(n)) * time.Microsecond,
		P50:   at(0.50),
		P95:   at(0.95),
		P99:   at(0.99),
	}
}

// LatencyStats holds window statistics.
type LatencyStats struct {
	Count int           `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// Millis flattens the stats into "<name>_ms" keys.
func (s LatencyStats) Millis() map[string]float64 {
	return map[string]float64{
		"count":  float64(s.Count),
		"avg_ms": ms(s.Avg),
		"p50_ms": ms(s.P50),
		"p95_ms": ms(s.P95),
		"p99_ms": ms(s.P99),
		"max_ms": ms(s.Max),
	}
}

// LatencyRegistry holds one tracker per stage.
type LatencyRegistry struct {
	mu       sync.RWMutex
	trackers map[string]*LatencyTracker
	window   int
}

// NewLatencyRegistry creates an empty registry.
func NewLatencyRegistry(windowSize int) *LatencyRegistry {
	return &LatencyRegistry{
		trackers: make(map[string]*LatencyTracker),
		window:   windowSize,
	}
}

// Record adds a sample for stage.
func (r *LatencyRegistry) Record(stage string, d time.Duration) {
	r.mu.RLock()
	tracker, ok := r.trackers[stage]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if tracker, ok = r.trackers[stage]; !ok {
			tracker = NewLatencyTracker(r.window)
			r.trackers[stage] = tracker
		}
		r.mu.Unlock()
	}
	tracker.Record(d)
}

// Since records the time elapsed from start.
func (r *LatencyRegistry) Since(stage string, start time.Time) {
	r.Record(stage, time.Since(start))
}

// Stats returns the stats of one stage.
func (r *LatencyRegistry) Stats(stage string) LatencyStats {
	r.mu.RLock()
	tracker, ok := r.trackers[stage]
	r.mu.RUnlock()
	if !ok {
		return LatencyStats{}
	}
	return tracker.Stats()
}

// Summary flattens every stage into "<stage>_<stat>" keys.
func (r *LatencyRegistry) Summary() map[string]float64 {
	r.mu.RLock()
	stages := make([]string, 0, len(r.trackers))
	for name := range r.trackers {
		stages = append(stages, name)
	}
	r.mu.RUnlock()

	out := make(map[string]float64)
	for _, stage := range stages {
		for k, v := range r.Stats(stage).Millis() {
			out[stage+"_"+k] = v
		}
	}
	return out
}
