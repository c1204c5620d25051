package monitoring

import (
	"sort"
	"sync"
	"time"
)

// JobStatus summarises the recent runs of one background job.
type JobStatus struct {
	Job                 string        `json:"job"`
	TotalRuns           uint64        `json:"total_runs"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
}

// JobTracker records background job outcomes for the maintenance probe.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*JobStatus
	now  func() time.Time
}

// NewJobTracker constructs an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*JobStatus), now: time.Now}
}

// Register makes a job visible before its first run.
func (t *JobTracker) Register(job string) {
	if t == nil || job == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[job]; !ok {
		t.jobs[job] = &JobStatus{Job: job}
	}
}

// Record stores the result of a run.
func (t *JobTracker) Record(job string, err error, duration time.Duration) {
	if t == nil || job == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	status, ok := t.jobs[job]
	if !ok {
		status = &JobStatus{Job: job}
		t.jobs[job] = status
	}
	status.TotalRuns++
	status.LastRunAt = t.now()
	status.LastDuration = duration
	if err != nil {
		status.ConsecutiveFailures++
		status.LastError = err.Error()
		return
	}
	status.ConsecutiveFailures = 0
	status.LastError = ""
}

// Snapshot returns a copy of every job, sorted by name.
func (t *JobTracker) Snapshot() []JobStatus {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]JobStatus, 0, len(t.jobs))
	for _, status := range t.jobs {
		out = append(out, *status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
