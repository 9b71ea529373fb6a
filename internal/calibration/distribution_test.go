package calibration

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDistribute(t *testing.T) {
	scores := []float64{1, 1, 2, 2, 3, 3, 4, 4, 5, 5}
	dist := Distribute(scores)

	for i, pct := range dist {
		if !almostEqual(pct, 20) {
			t.Errorf("Band %s: expected 20%%, got %v", BandNames[i], pct)
		}
	}
}

func TestDistributeEmpty(t *testing.T) {
	dist := Distribute(nil)
	for i, pct := range dist {
		if pct != 0 {
			t.Errorf("Band %d: expected 0 for empty input, got %v", i, pct)
		}
	}
}

func TestBandIndexClamping(t *testing.T) {
	tests := []struct {
		score float64
		want  int
	}{
		{0.2, 0},
		{1, 0},
		{2.4, 1},
		{2.5, 2},
		{3, 2},
		{4.9, 4},
		{5, 4},
		{7, 4},
	}

	for _, tt := range tests {
		if got := BandIndex(tt.score); got != tt.want {
			t.Errorf("BandIndex(%v) = %d, want %d", tt.score, got, tt.want)
		}
	}
}

func TestStdDev(t *testing.T) {
	// [10,20,40,20,10]: mean 20, variance (100+0+400+0+100)/5 = 120
	dist := Distribution{10, 20, 40, 20, 10}
	want := math.Sqrt(120)
	if got := StdDev(dist); !almostEqual(got, want) {
		t.Errorf("StdDev = %v, want %v", got, want)
	}

	if got := StdDev(Distribution{20, 20, 20, 20, 20}); got != 0 {
		t.Errorf("StdDev of uniform distribution = %v, want 0", got)
	}
}

func TestDeviationCorrectionIdenticalDistributions(t *testing.T) {
	dist := Distribution{10, 20, 40, 20, 10}
	if got := DeviationCorrection(dist, dist); got != 0 {
		t.Errorf("Identical distributions should yield 0, got %d", got)
	}
}

func TestDeviationCorrectionZeroOriginalVariance(t *testing.T) {
	// Uniform original has zero dispersion; the correction must clamp to 0
	// rather than divide by zero.
	original := Distribution{20, 20, 20, 20, 20}
	calibrated := Distribution{10, 20, 40, 20, 10}
	got := DeviationCorrection(original, calibrated)
	if got != 0 {
		t.Errorf("Zero original variance should yield 0, got %d", got)
	}
}

func TestDeviationCorrectionNeverNegative(t *testing.T) {
	// Calibration that widens the spread must report 0, not a negative.
	original := Distribution{10, 20, 40, 20, 10}
	calibrated := Distribution{0, 0, 100, 0, 0}
	if got := DeviationCorrection(calibrated, original); got != 0 {
		t.Errorf("Widening calibration should yield 0, got %d", got)
	}
}

func TestDeviationCorrectionMonotonic(t *testing.T) {
	// Shrinking calibrated dispersion must not decrease the correction.
	original := Distribution{0, 10, 40, 40, 10}
	narrower := []Distribution{
		{0, 10, 40, 40, 10},
		{5, 15, 40, 30, 10},
		{10, 20, 40, 20, 10},
		{15, 20, 30, 20, 15},
		{20, 20, 20, 20, 20},
	}

	prev := -1
	for _, calibrated := range narrower {
		got := DeviationCorrection(original, calibrated)
		if got < prev {
			t.Fatalf("Correction decreased from %d to %d for calibrated %v", prev, got, calibrated)
		}
		prev = got
	}

	if prev != 100 {
		t.Errorf("Fully uniform calibrated distribution should yield 100, got %d", prev)
	}
}

func TestBuildEvidenceScenario(t *testing.T) {
	// 10 employees, two per band originally; calibration pulls the tails in.
	original := []float64{1, 1, 2, 2, 3, 3, 4, 4, 5, 5}
	calibrated := []float64{1, 2, 2, 3, 3, 3, 3, 4, 4, 5}

	ev := BuildEvidence(original, calibrated)

	wantOriginal := Distribution{20, 20, 20, 20, 20}
	wantCalibrated := Distribution{10, 20, 40, 20, 10}
	for i := 0; i < NumBands; i++ {
		if !almostEqual(ev.Original[i], wantOriginal[i]) {
			t.Errorf("Original band %d: got %v, want %v", i, ev.Original[i], wantOriginal[i])
		}
		if !almostEqual(ev.Calibrated[i], wantCalibrated[i]) {
			t.Errorf("Calibrated band %d: got %v, want %v", i, ev.Calibrated[i], wantCalibrated[i])
		}
	}

	if ev.StdDevOriginal != 0 {
		t.Errorf("StdDevOriginal = %v, want 0", ev.StdDevOriginal)
	}
	if !almostEqual(ev.StdDevCalibrated, math.Sqrt(120)) {
		t.Errorf("StdDevCalibrated = %v, want %v", ev.StdDevCalibrated, math.Sqrt(120))
	}
	// Original dispersion is zero, so the correction clamps to zero.
	if ev.DeviationCorrection != 0 {
		t.Errorf("DeviationCorrection = %d, want 0", ev.DeviationCorrection)
	}
}
