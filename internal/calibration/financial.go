package calibration

import (
	"math"
)

// VarianceWarningThresholdPct is the absolute bonus-factor change, in
// percent, above which the closing protocol presents the financial
// variance warning. The warning is informational; it never blocks the
// close. Strictly greater-than: a delta of exactly 5% does not trigger.
const VarianceWarningThresholdPct = 5.0

// targetScore is the scale midpoint ("Solid"); an aggregate at target
// yields a bonus factor of 1.0.
const targetScore = 3.0

// AggregateBonusFactor derives the aggregate compensation multiplier for a
// rating set: the mean score relative to the target band. Returns 0 for an
// empty set.
func AggregateBonusFactor(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, score := range scores {
		sum += score
	}
	return sum / float64(len(scores)) / targetScore
}

// Impact is the financial summary shown in the second phase of the
// closing protocol.
type Impact struct {
	OriginalBonusFactor   float64 `json:"original_bonus_factor"`
	CalibratedBonusFactor float64 `json:"calibrated_bonus_factor"`
	Delta                 float64 `json:"delta"`
	DeltaPct              float64 `json:"delta_pct"`
	VarianceWarning       bool    `json:"variance_warning"`
}

// ComputeImpact turns before/after bonus factors into a delta, a percent
// delta, and the variance-warning flag. DeltaPct is 0 when the original
// factor is 0.
func ComputeImpact(original, calibrated float64) Impact {
	delta := calibrated - original
	var deltaPct float64
	if original != 0 {
		deltaPct = 100 * delta / original
	}
	return Impact{
		OriginalBonusFactor:   original,
		CalibratedBonusFactor: calibrated,
		Delta:                 delta,
		DeltaPct:              deltaPct,
		VarianceWarning:       math.Abs(deltaPct) > VarianceWarningThresholdPct,
	}
}
