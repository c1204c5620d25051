package checks

import (
	"context"
	"fmt"

	"github.com/pinkypartner/pinkypartner/internal/monitoring"
)

// RealtimeObserver exposes the hub state needed to evaluate realtime health.
type RealtimeObserver interface {
	ActiveConnections() int
}

// Realtime is a liveness probe reporting the number of open websocket connections.
func Realtime(observer RealtimeObserver) monitoring.Check {
	return monitoring.NewCheck("realtime", func(ctx context.Context) monitoring.ProbeResult {
		if observer == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "realtime hub unavailable"}
		}
		return monitoring.ProbeResult{
			Status:  monitoring.StatusUp,
			Details: fmt.Sprintf("%d connections", observer.ActiveConnections()),
		}
	})
}
