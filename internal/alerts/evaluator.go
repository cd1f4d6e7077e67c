package alerts

import "carbonalert/internal/models"

// Evaluate maps a reading to a semantic level. Rules are scanned in
// declared order and the first match wins; if none matches the region is
// at its normal level. Pure and deterministic; malformed rule sets are a
// configuration-time error and never reach this point.
func Evaluate(reading *models.IntensityReading, rules []models.ThresholdRule) models.Level {
	for _, rule := range rules {
		if rule.Matches(reading.Value) {
			return rule.Level
		}
	}
	return models.LevelNormal
}
