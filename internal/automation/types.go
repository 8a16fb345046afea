package automation

import (
	"fmt"
	"time"
)

// RunState is the controller's coarse lifecycle state. Exactly one run may be
// active at a time; a second start is rejected, not queued.
type RunState string

const (
	StateIdle         RunState = "idle"
	StateInitializing RunState = "initializing"
	StateRunning      RunState = "running"
	StateStopping     RunState = "stopping"
)

// Progress is one progress update emitted before each unit.
type Progress struct {
	Current int
	Total   int
	Message string
}

// RunStatistics summarizes a run. Failed rows are reported, never discarded.
type RunStatistics struct {
	RunID     string
	Total     int
	Completed int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
}

// SuccessRate is Completed/Total, zero for an empty run.
func (s RunStatistics) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total)
}

// Elapsed is the run duration, zero until the run has ended.
func (s RunStatistics) Elapsed() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary renders the end-of-run report line.
func (s RunStatistics) Summary() string {
	return fmt.Sprintf("total=%d completed=%d failed=%d success_rate=%.1f%% elapsed=%s",
		s.Total, s.Completed, s.Failed, s.SuccessRate()*100, s.Elapsed().Round(time.Millisecond))
}
