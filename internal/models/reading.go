package models

import "time"

// IntensityReading is a single fetched carbon-intensity data point. It is
// created by the source per poll, evaluated once, and discarded.
type IntensityReading struct {
	// Region the reading belongs to
	RegionID RegionID `json:"region_id"`

	// Intensity in gCO2/kWh
	Value float64 `json:"value"`

	// Provider's own banding (low, moderate, high, very high)
	Index string `json:"index,omitempty"`

	// Validity window of the data point
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	// Forecast marks a forecast value as opposed to a measured one
	Forecast bool `json:"forecast"`
}
