package checks

import (
	"context"
	"strings"
	"time"

	"github.com/pinkypartner/pinkypartner/internal/monitoring"
)

// Weekly rollover is the least frequent sweep.
const defaultMaintenanceMaxAge = 8 * 24 * time.Hour

// Maintenance reports jobs that keep failing as down and jobs that have not run within
// maxAge as degraded.
func Maintenance(tracker *monitoring.JobTracker, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		jobs := tracker.Snapshot()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance jobs registered"}
		}

		now := time.Now()
		status := monitoring.StatusUp
		var notes []string

		for _, job := range jobs {
			if job.TotalRuns == 0 {
				notes = append(notes, job.Job+": pending first run")
				continue
			}
			if job.ConsecutiveFailures > 0 {
				status = monitoring.Worst(status, monitoring.StatusDown)
				notes = append(notes, job.Job+": "+job.LastError)
			}
			if now.Sub(job.LastRunAt) > maxAge {
				status = monitoring.Worst(status, monitoring.StatusDegraded)
				notes = append(notes, job.Job+": stale run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(notes, "; ")}
	})
}
