package models

import "time"

// AlertState is the mutable per-region record behind the alert state
// machine. Each instance is exclusively owned by its region's polling
// loop, so no locking is needed.
type AlertState struct {
	// Last emitted level; LevelUnknown until the first evaluation
	LastLevel Level

	// When the last AlertEvent was emitted
	LastEmitted time.Time

	// Consecutive fetch failures since the last success
	ConsecutiveFailures int
}

// NewAlertState returns the initial state for a region.
func NewAlertState() *AlertState {
	return &AlertState{LastLevel: LevelUnknown}
}
