// internal/layout/metrics.go
package layout

import (
	"math"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const averageSmoothing = 0.1

// Metrics are the engine's running counters.
type Metrics struct {
	// TotalLayouts counts completed ComputeLayout passes.
	TotalLayouts            uint64
	CacheHits               uint64
	CacheMisses             uint64
	ParallelLayouts         uint64
	AverageLayoutTimeMicros float64
	MaxLayoutTimeMicros     float64
	MemoryUsageBytes        int
}

// HitRatio returns hits / lookups, or 0 before the first lookup.
func (m Metrics) HitRatio() float64 {
	total := m.CacheHits + m.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(m.CacheHits) / float64(total)
}

func (e *Engine) recordLookup(hit bool) {
	e.metricsMu.Lock()
	if hit {
		e.metrics.CacheHits++
	} else {
		e.metrics.CacheMisses++
	}
	e.metricsMu.Unlock()
}

// recordPass folds a pass duration into an exponential moving average. The
// first pass seeds the average.
func (e *Engine) recordPass(d time.Duration) {
	micros := float64(d.Nanoseconds()) / 1e3
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()
	e.metrics.TotalLayouts++
	if e.metrics.TotalLayouts == 1 {
		e.metrics.AverageLayoutTimeMicros = micros
	} else {
		e.metrics.AverageLayoutTimeMicros = (1-averageSmoothing)*e.metrics.AverageLayoutTimeMicros + averageSmoothing*micros
	}
	e.metrics.MaxLayoutTimeMicros = math.Max(e.metrics.MaxLayoutTimeMicros, micros)
}

// Metrics returns a snapshot of the counters. Memory usage is computed from
// the live cache size.
func (e *Engine) Metrics() Metrics {
	e.metricsMu.RLock()
	m := e.metrics
	e.metricsMu.RUnlock()
	m.MemoryUsageBytes = e.cache.len() * entrySize
	return m
}

// CacheEntrySize is the approximate number of bytes held per cached row.
func CacheEntrySize() int {
	return entrySize
}

// CacheStats is a serializable summary of the cache and its counters.
type CacheStats struct {
	CacheSize             int     `json:"cache_size"`
	CurrentGenerationRows int     `json:"current_generation_rows"`
	TotalLayouts          uint64  `json:"total_layouts"`
	CacheHits             uint64  `json:"cache_hits"`
	CacheMisses           uint64  `json:"cache_misses"`
	CacheHitRatio         float64 `json:"cache_hit_ratio"`
	ParallelLayouts       uint64  `json:"parallel_layouts"`
	AverageLayoutTimeUs   float64 `json:"average_layout_time_us"`
	MaxLayoutTimeUs       float64 `json:"max_layout_time_us"`
	MemoryUsageMB         float64 `json:"memory_usage_mb"`
}

// MarshalJSON encodes the stats with json-iterator.
func (s CacheStats) MarshalJSON() ([]byte, error) {
	type alias CacheStats
	return json.Marshal(alias(s))
}

// CacheStats summarises the cache.
func (e *Engine) CacheStats() CacheStats {
	m := e.Metrics()
	return CacheStats{
		CacheSize:             e.cache.len(),
		CurrentGenerationRows: e.cache.countGeneration(e.generation.Load()),
		TotalLayouts:          m.TotalLayouts,
		CacheHits:             m.CacheHits,
		CacheMisses:           m.CacheMisses,
		CacheHitRatio:         m.HitRatio(),
		ParallelLayouts:       m.ParallelLayouts,
		AverageLayoutTimeUs:   m.AverageLayoutTimeMicros,
		MaxLayoutTimeUs:       m.MaxLayoutTimeMicros,
		MemoryUsageMB:         float64(m.MemoryUsageBytes) / (1024 * 1024),
	}
}
