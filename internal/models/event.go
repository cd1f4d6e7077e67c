package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertEvent is emitted on a level transition and published to the bus.
// It is not retained after a successful publish.
type AlertEvent struct {
	// Unique identifier, also used for broker-side deduplication
	ID string `json:"id"`

	// Region identification
	RegionID RegionID `json:"region_id"`
	Region   string   `json:"region"`

	// Transition
	Previous Level `json:"previous_level"`
	New      Level `json:"new_level"`

	// Intensity that triggered the transition, in gCO2/kWh
	Value float64 `json:"value"`

	// Provider's banding for the same reading, if any
	Index string `json:"index,omitempty"`

	// When the transition was observed
	Timestamp time.Time `json:"timestamp"`
}

// NewAlertEvent creates an event for a level transition in region.
func NewAlertEvent(region Region, previous, next Level, reading *IntensityReading) *AlertEvent {
	return &AlertEvent{
		ID:        uuid.New().String(),
		RegionID:  region.ID,
		Region:    region.Label,
		Previous:  previous,
		New:       next,
		Value:     reading.Value,
		Index:     reading.Index,
		Timestamp: time.Now().UTC(),
	}
}
