package pool

import "sync/atomic"

// Metrics tracks the pool's operational counters.
type Metrics struct {
	PendingJobs    atomic.Int64
	ActiveJobs     atomic.Int64
	CompletedJobs  atomic.Int64
	FailedJobs     atomic.Int64
	ProcessingTime atomic.Int64 // nanoseconds
}

// Snapshot returns the current counter values keyed by name.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"pending_jobs":    m.PendingJobs.Load(),
		"active_jobs":     m.ActiveJobs.Load(),
		"completed_jobs":  m.CompletedJobs.Load(),
		"failed_jobs":     m.FailedJobs.Load(),
		"processing_time": m.ProcessingTime.Load(),
	}
}
