package workerpool

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time view of the pool
type Stats struct {
	ActiveWorkers  int64         `json:"active_workers"`
	QueuedTasks    int           `json:"queued_tasks"`
	CompletedTasks int64         `json:"completed_tasks"`
	FailedTasks    int64         `json:"failed_tasks"`
	AvgDuration    time.Duration `json:"avg_duration"`
}

type statsCollector struct {
	activeWorkers atomic.Int64
	completed     atomic.Int64
	failed        atomic.Int64
	totalNanos    atomic.Int64
}

func (s *statsCollector) record(d time.Duration, err error) {
	s.completed.Add(1)
	s.totalNanos.Add(int64(d))
	if err != nil {
		s.failed.Add(1)
	}
}

func (s *statsCollector) snapshot(queued int) Stats {
	st := Stats{
		ActiveWorkers:  s.activeWorkers.Load(),
		QueuedTasks:    queued,
		CompletedTasks: s.completed.Load(),
		FailedTasks:    s.failed.Load(),
	}
	if st.CompletedTasks > 0 {
		st.AvgDuration = time.Duration(s.totalNanos.Load() / st.CompletedTasks)
	}
	return st
}
