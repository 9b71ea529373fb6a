package calibration

import (
	"testing"
)

func TestComputeImpactTriggersWarning(t *testing.T) {
	impact := ComputeImpact(1.00, 1.06)

	if !almostEqual(impact.DeltaPct, 6.0) {
		t.Errorf("DeltaPct = %v, want 6.0", impact.DeltaPct)
	}
	if !impact.VarianceWarning {
		t.Error("A 6%% delta must trigger the variance warning")
	}
}

func TestComputeImpactThresholdIsExclusive(t *testing.T) {
	// Exactly 5% must NOT trigger; the threshold is strictly greater-than.
	impact := ComputeImpact(1.00, 1.05)

	if !almostEqual(impact.DeltaPct, 5.0) {
		t.Errorf("DeltaPct = %v, want 5.0", impact.DeltaPct)
	}
	if impact.VarianceWarning {
		t.Error("A delta of exactly 5%% must not trigger the variance warning")
	}
}

func TestComputeImpactNegativeDelta(t *testing.T) {
	impact := ComputeImpact(1.00, 0.90)

	if !almostEqual(impact.DeltaPct, -10.0) {
		t.Errorf("DeltaPct = %v, want -10.0", impact.DeltaPct)
	}
	if !impact.VarianceWarning {
		t.Error("A -10%% delta must trigger the variance warning")
	}
}

func TestComputeImpactZeroOriginal(t *testing.T) {
	impact := ComputeImpact(0, 1.02)

	if impact.DeltaPct != 0 {
		t.Errorf("DeltaPct with zero original = %v, want 0", impact.DeltaPct)
	}
	if impact.VarianceWarning {
		t.Error("Zero original factor must not trigger the variance warning")
	}
}

func TestAggregateBonusFactor(t *testing.T) {
	// Mean score at the target band yields a factor of exactly 1.0.
	if got := AggregateBonusFactor([]float64{3, 3, 3}); !almostEqual(got, 1.0) {
		t.Errorf("AggregateBonusFactor at target = %v, want 1.0", got)
	}

	if got := AggregateBonusFactor([]float64{1, 2, 3, 4, 5}); !almostEqual(got, 1.0) {
		t.Errorf("AggregateBonusFactor of balanced set = %v, want 1.0", got)
	}

	if got := AggregateBonusFactor(nil); got != 0 {
		t.Errorf("AggregateBonusFactor of empty set = %v, want 0", got)
	}

	// Above-target means scale the factor proportionally.
	if got := AggregateBonusFactor([]float64{4, 4, 4}); !almostEqual(got, 4.0/3.0) {
		t.Errorf("AggregateBonusFactor above target = %v, want %v", got, 4.0/3.0)
	}
}
