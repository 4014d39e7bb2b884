package build

import (
	"sync"
	"time"
)

// Metrics accumulates results across runs, as the watch loop rebuilds.
type Metrics struct {
	Runs              int64
	TemplatesBuilt    int64
	TemplatesFailed   int64
	Warnings          int64
	TotalDuration     time.Duration
	AverageRunTime    time.Duration
	LastRunSuccessful bool
	mutex             sync.RWMutex
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRun folds a finished report into the totals.
func (m *Metrics) RecordRun(report *Report, elapsed time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.Runs++
	m.TotalDuration += elapsed
	m.TemplatesBuilt += int64(len(report.Succeeded()))
	m.TemplatesFailed += int64(len(report.Failed()))
	m.Warnings += int64(report.Warnings())
	m.LastRunSuccessful = report.OK()

	if m.Runs > 0 {
		m.AverageRunTime = m.TotalDuration / time.Duration(m.Runs)
	}
}

// Snapshot returns a copy safe to read without the lock.
func (m *Metrics) Snapshot() Metrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return Metrics{
		Runs:              m.Runs,
		TemplatesBuilt:    m.TemplatesBuilt,
		TemplatesFailed:   m.TemplatesFailed,
		Warnings:          m.Warnings,
		TotalDuration:     m.TotalDuration,
		AverageRunTime:    m.AverageRunTime,
		LastRunSuccessful: m.LastRunSuccessful,
	}
}

// Reset clears all counters.
func (m *Metrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Runs = 0
	m.TemplatesBuilt = 0
	m.TemplatesFailed = 0
	m.Warnings = 0
	m.TotalDuration = 0
	m.AverageRunTime = 0
	m.LastRunSuccessful = false
}
