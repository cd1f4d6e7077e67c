package alerts

import (
	"time"

	"carbonalert/internal/models"
)

// StateMachine tracks the last emitted level for a single region and
// turns readings into edge-triggered events: a region that stays above a
// threshold across many polls fires exactly once on entry and once again
// when it leaves. Each instance is owned by one polling loop and is not
// safe for concurrent use.
type StateMachine struct {
	region models.Region
	state  *models.AlertState
	now    func() time.Time
}

// NewStateMachine creates a machine for region in the initial unknown
// state.
func NewStateMachine(region models.Region) *StateMachine {
	return &StateMachine{
		region: region,
		state:  models.NewAlertState(),
		now:    time.Now,
	}
}

// Observe evaluates a reading against the region's rules. It returns an
// AlertEvent and true when the level changed, or nil and false when the
// reading confirms the current level.
func (m *StateMachine) Observe(reading *models.IntensityReading) (*models.AlertEvent, bool) {
	next := Evaluate(reading, m.region.Rules)
	if next == m.state.LastLevel {
		return nil, false
	}

	previous := m.state.LastLevel
	m.state.LastLevel = next
	m.state.LastEmitted = m.now().UTC()

	return models.NewAlertEvent(m.region, previous, next, reading), true
}

// RecordFailure increments the consecutive fetch failure count and
// returns the new count. The alert level is untouched: only a successful
// evaluation may move it.
func (m *StateMachine) RecordFailure() int {
	m.state.ConsecutiveFailures++
	return m.state.ConsecutiveFailures
}

// RecordSuccess resets the consecutive fetch failure count.
func (m *StateMachine) RecordSuccess() {
	m.state.ConsecutiveFailures = 0
}

// Failures returns the current consecutive fetch failure count.
func (m *StateMachine) Failures() int {
	return m.state.ConsecutiveFailures
}

// Level returns the last emitted level.
func (m *StateMachine) Level() models.Level {
	return m.state.LastLevel
}
