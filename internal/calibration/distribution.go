package calibration

import (
	"math"
)

// NumBands is the number of ordered performance bands on the rating scale.
const NumBands = 5

// BandNames are the ordered band labels, lowest first.
var BandNames = [NumBands]string{"Low", "Developing", "Solid", "High", "Exceptional"}

// Distribution is the share of ratings per band, in percent. The entries
// sum to 100 for any non-empty rating set.
type Distribution [NumBands]float64

// BandIndex maps a score on the 1..5 scale to its band index. Scores are
// rounded to the nearest band and clamped to the scale.
func BandIndex(score float64) int {
	band := int(math.Round(score))
	if band < 1 {
		band = 1
	}
	if band > NumBands {
		band = NumBands
	}
	return band - 1
}

// Distribute buckets the given scores into band percentages.
func Distribute(scores []float64) Distribution {
	var dist Distribution
	if len(scores) == 0 {
		return dist
	}
	for _, score := range scores {
		dist[BandIndex(score)]++
	}
	for i := range dist {
		dist[i] = dist[i] / float64(len(scores)) * 100
	}
	return dist
}

// StdDev computes the population standard deviation of the band
// percentages.
func StdDev(dist Distribution) float64 {
	var mean float64
	for _, v := range dist {
		mean += v
	}
	mean /= NumBands

	var variance float64
	for _, v := range dist {
		variance += (v - mean) * (v - mean)
	}
	variance /= NumBands

	return math.Sqrt(variance)
}

// DeviationCorrection computes the percent reduction in distribution
// dispersion achieved by calibration, rounded to the nearest integer and
// floored at zero. When the original distribution has zero dispersion the
// correction is zero, never NaN. This is operator evidence only; nothing
// gates on it.
func DeviationCorrection(original, calibrated Distribution) int {
	stdOriginal := StdDev(original)
	if stdOriginal == 0 {
		return 0
	}
	stdCalibrated := StdDev(calibrated)
	correction := int(math.Round(100 * (stdOriginal - stdCalibrated) / stdOriginal))
	if correction < 0 {
		return 0
	}
	return correction
}

// Evidence is the before/after distribution summary shown in the first
// phase of the closing protocol.
type Evidence struct {
	Original            Distribution `json:"original"`
	Calibrated          Distribution `json:"calibrated"`
	StdDevOriginal      float64      `json:"std_dev_original"`
	StdDevCalibrated    float64      `json:"std_dev_calibrated"`
	DeviationCorrection int          `json:"deviation_correction"`
}

// BuildEvidence computes the distribution evidence for a rating set before
// and after applying calibrated values.
func BuildEvidence(originalScores, calibratedScores []float64) Evidence {
	original := Distribute(originalScores)
	calibrated := Distribute(calibratedScores)
	return Evidence{
		Original:            original,
		Calibrated:          calibrated,
		StdDevOriginal:      StdDev(original),
		StdDevCalibrated:    StdDev(calibrated),
		DeviationCorrection: DeviationCorrection(original, calibrated),
	}
}
