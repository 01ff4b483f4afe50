// Package metrics holds the broker's process-wide atomic counters. They
// live for the process lifetime, same as the global identity constants.
package metrics

import "sync/atomic"

var (
	ActiveConnections atomic.Uint64
	ActivitiesSet     atomic.Uint64
	ProcessesDetected atomic.Uint64
	DetectablesCount  atomic.Uint64
)

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	ActiveConnections uint64 `json:"active_connections"`
	ActivitiesSet     uint64 `json:"activities_set"`
	ProcessesDetected uint64 `json:"processes_detected"`
	DetectablesCount  uint64 `json:"detectables_count"`
}

// Get returns the current values of every counter.
func Get() Snapshot {
	return Snapshot{
		ActiveConnections: ActiveConnections.Load(),
		ActivitiesSet:     ActivitiesSet.Load(),
		ProcessesDetected: ProcessesDetected.Load(),
		DetectablesCount:  DetectablesCount.Load(),
	}
}
