package domain

import "time"

type RefreshPhase string

const (
	RefreshIdle        RefreshPhase = "idle"
	RefreshRunning     RefreshPhase = "running"
	RefreshCoolingDown RefreshPhase = "cooling_down"
)

// RefreshState is a point-in-time view of the scheduler bookkeeping.
type RefreshState struct {
	Phase               RefreshPhase
	InProgress          bool
	ConsecutiveFailures int
	LastAttempt         time.Time
	LastSuccess         time.Time
	CoolingUntil        time.Time
}
