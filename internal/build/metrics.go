package build

import (
	"sync"
	"time"
)

// Metrics tracks build outcomes for one Builder.
type Metrics struct {
	mu               sync.RWMutex
	totalBuilds      int64
	successfulBuilds int64
	failedBuilds     int64
	totalDuration    time.Duration
	lastDuration     time.Duration
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	AverageDuration  time.Duration
	LastDuration     time.Duration
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds one build outcome.
func (m *Metrics) Record(d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalBuilds++
	m.totalDuration += d
	m.lastDuration = d
	if err != nil {
		m.failedBuilds++
	} else {
		m.successfulBuilds++
	}
}

// Snapshot returns the current values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MetricsSnapshot{
		TotalBuilds:      m.totalBuilds,
		SuccessfulBuilds: m.successfulBuilds,
		FailedBuilds:     m.failedBuilds,
		LastDuration:     m.lastDuration,
	}
	if m.totalBuilds > 0 {
		s.AverageDuration = m.totalDuration / time.Duration(m.totalBuilds)
	}
	return s
}
