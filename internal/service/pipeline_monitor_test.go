package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPipelineMonitor_Stats(t *testing.T) {
	m := NewPipelineMonitor(100)

	m.RecordGeneration(100*time.Millisecond, true)
	m.RecordGeneration(300*time.Millisecond, true)
	m.RecordGeneration(2*time.Second, false)
	m.RecordGeneration(45*time.Second, false)
	m.RecordFailure()

	stats := m.Stats()
	assert.Equal(t, int64(4), stats.Completed)
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, int64(2), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, 50.0, stats.CacheHitRate)
	assert.Equal(t, int64(1), stats.Slow)
	assert.Equal(t, 200.0, stats.AvgCachedMs)
	assert.Equal(t, 23500.0, stats.AvgFetchedMs)
	assert.Equal(t, 45000.0, stats.P95FetchedMs)
}

func TestPipelineMonitor_KeepsLastSamples(t *testing.T) {
	m := NewPipelineMonitor(2)

	m.RecordGeneration(10*time.Second, false)
	m.RecordGeneration(time.Second, false)
	m.RecordGeneration(time.Second, false)

	stats := m.Stats()
	assert.Equal(t, int64(3), stats.Completed)
	assert.Equal(t, 1000.0, stats.AvgFetchedMs)
}

func TestPipelineMonitor_NilIsNoop(t *testing.T) {
	var m *PipelineMonitor

	m.RecordGeneration(time.Second, true)
	m.RecordFailure()
	assert.Equal(t, PipelineStats{}, m.Stats())
}

func TestPipelineMonitor_Concurrent(t *testing.T) {
	m := NewPipelineMonitor(50)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.RecordGeneration(time.Duration(i)*time.Millisecond, i%2 == 0)
			_ = m.Stats()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(20), m.Stats().Completed)
}
