package service

import (
	"sort"
	"sync"
	"time"
)

// SlowGenerationThreshold marks a generation as slow in the pipeline stats
const SlowGenerationThreshold = 30 * time.Second

// PipelineMonitor keeps in-process latency samples of completed generations,
// split by whether the content came from the scrape cache.
type PipelineMonitor struct {
	mu           sync.RWMutex
	cachedTimes  []time.Duration
	fetchedTimes []time.Duration
	cacheHits    int64
	cacheMisses  int64
	slow         int64
	failures     int64
	maxSamples   int
}

// NewPipelineMonitor creates a monitor keeping the last maxSamples samples per kind
func NewPipelineMonitor(maxSamples int) *PipelineMonitor {
	if maxSamples < 1 {
		maxSamples = 1000
	}
	return &PipelineMonitor{maxSamples: maxSamples}
}

// RecordGeneration records one completed generation
func (m *PipelineMonitor) RecordGeneration(duration time.Duration, cacheHit bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if cacheHit {
		m.cacheHits++
		m.cachedTimes = appendSample(m.cachedTimes, duration, m.maxSamples)
	} else {
		m.cacheMisses++
		m.fetchedTimes = appendSample(m.fetchedTimes, duration, m.maxSamples)
	}
	if duration > SlowGenerationThreshold {
		m.slow++
	}
}

// RecordFailure counts a generation that returned an error
func (m *PipelineMonitor) RecordFailure() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.failures++
	m.mu.Unlock()
}

func appendSample(samples []time.Duration, d time.Duration, max int) []time.Duration {
	samples = append(samples, d)
	if len(samples) > max {
		samples = samples[len(samples)-max:]
	}
	return samples
}

// PipelineStats is a snapshot of the monitor
type PipelineStats struct {
	Completed    int64   `json:"completed"`
	Failures     int64   `json:"failures"`
	CacheHits    int64   `json:"cacheHits"`
	CacheMisses  int64   `json:"cacheMisses"`
	CacheHitRate float64 `json:"cacheHitRate"` // percentage
	Slow         int64   `json:"slow"`
	AvgCachedMs  float64 `json:"avgCachedMs"`
	AvgFetchedMs float64 `json:"avgFetchedMs"`
	P95FetchedMs float64 `json:"p95FetchedMs"`
}

// Stats returns the current statistics
func (m *PipelineMonitor) Stats() PipelineStats {
	if m == nil {
		return PipelineStats{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := PipelineStats{
		Completed:    m.cacheHits + m.cacheMisses,
		Failures:     m.failures,
		CacheHits:    m.cacheHits,
		CacheMisses:  m.cacheMisses,
		Slow:         m.slow,
		AvgCachedMs:  averageMs(m.cachedTimes),
		AvgFetchedMs: averageMs(m.fetchedTimes),
		P95FetchedMs: percentileMs(m.fetchedTimes, 0.95),
	}
	if stats.Completed > 0 {
		stats.CacheHitRate = float64(m.cacheHits) / float64(stats.Completed) * 100
	}
	return stats
}

func averageMs(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range samples {
		total += d
	}
	return float64(total.Milliseconds()) / float64(len(samples))
}

func percentileMs(samples []time.Duration, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx].Milliseconds())
}
