package parallel

import "sync/atomic"

// PoolMetrics counts what a WorkerPool has done. Fields are updated with
// atomic operations only.
type PoolMetrics struct {
	JobsSubmitted     int64
	JobsCompleted     int64
	JobsFailed        int64
	SentinelsConsumed int64
}

// PoolStats is a snapshot of a pool's lifecycle, metrics and queue.
type PoolStats struct {
	State              string `json:"state"`
	Workers            int    `json:"workers"`
	JobsSubmitted      int64  `json:"jobs_submitted"`
	JobsCompleted      int64  `json:"jobs_completed"`
	JobsFailed         int64  `json:"jobs_failed"`
	SentinelsConsumed  int64  `json:"sentinels_consumed"`
	BackpressureEvents int64  `json:"backpressure_events"`
	QueueLength        int    `json:"queue_length"`
	QueueCapacity      int    `json:"queue_capacity"`
	MaxQueueDepth      int    `json:"max_queue_depth"`
}

func (m *PoolMetrics) snapshot() PoolMetrics {
	return PoolMetrics{
		JobsSubmitted:     atomic.LoadInt64(&m.JobsSubmitted),
		JobsCompleted:     atomic.LoadInt64(&m.JobsCompleted),
		JobsFailed:        atomic.LoadInt64(&m.JobsFailed),
		SentinelsConsumed: atomic.LoadInt64(&m.SentinelsConsumed),
	}
}
