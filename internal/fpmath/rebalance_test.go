package fpmath_test

import (
	"testing"

	"SynthPool/internal/fpmath"
)

// Scales: reserve/asset 1e6, price 1e2, rate 1e8, ratio 1e6, index 1e12.

func TestComputeMintAmount(t *testing.T) {
	// 10,000.000000 reserve at price 100.00 mints 100.000000 units.
	if got := fpmath.ComputeMintAmount(10_000_000_000, 10_000); got != 100_000_000 {
		t.Errorf("mint = %d, want 100_000_000", got)
	}
	if got := fpmath.ComputeMintAmount(0, 10_000); got != 0 {
		t.Errorf("zero deposit mints %d", got)
	}
	if got := fpmath.ComputeMintAmount(1_000_000, 0); got != 0 {
		t.Errorf("zero price mints %d", got)
	}
}

func TestComputeAssetValueRoundTrip(t *testing.T) {
	minted := fpmath.ComputeMintAmount(10_000_000_000, 10_000)
	if got := fpmath.ComputeAssetValue(minted, 10_000); got != 10_000_000_000 {
		t.Errorf("value = %d, want 10_000_000_000", got)
	}
}

func TestComputeExposureDelta(t *testing.T) {
	supply := int64(100_000_000) // 100 units

	// Price up 1.00: liability grows by 100 reserve.
	if got := fpmath.ComputeExposureDelta(supply, 10_000, 10_100); got != 100_000_000 {
		t.Errorf("delta up = %d, want 100_000_000", got)
	}
	// Price down 1.00: negative delta, same magnitude.
	if got := fpmath.ComputeExposureDelta(supply, 10_000, 9_900); got != -100_000_000 {
		t.Errorf("delta down = %d, want -100_000_000", got)
	}
	if got := fpmath.ComputeExposureDelta(0, 10_000, 10_100); got != 0 {
		t.Errorf("zero supply delta = %d", got)
	}
	if got := fpmath.ComputeExposureDelta(supply, 10_000, 10_000); got != 0 {
		t.Errorf("flat price delta = %d", got)
	}
}

func TestComputeProportionalShare(t *testing.T) {
	if got := fpmath.ComputeProportionalShare(100_000_000, 1, 4); got != 25_000_000 {
		t.Errorf("quarter share = %d, want 25_000_000", got)
	}
	if got := fpmath.ComputeProportionalShare(100_000_000, 0, 4); got != 0 {
		t.Errorf("zero part share = %d", got)
	}
	if got := fpmath.ComputeProportionalShare(100_000_000, 1, 0); got != 0 {
		t.Errorf("zero whole share = %d", got)
	}
}

func TestComputeInterest(t *testing.T) {
	// 1 hour at rate 32e-8/sec on 10,000 reserve:
	// 3600 * 32 * 10_000_000_000 / 1e8 = 11_520_000 (11.52 reserve).
	if got := fpmath.ComputeInterest(3600, 32, 10_000_000_000); got != 11_520_000 {
		t.Errorf("interest = %d, want 11_520_000", got)
	}
	if got := fpmath.ComputeInterest(0, 32, 10_000_000_000); got != 0 {
		t.Errorf("zero elapsed interest = %d", got)
	}
	if got := fpmath.ComputeInterest(3600, 0, 10_000_000_000); got != 0 {
		t.Errorf("zero rate interest = %d", got)
	}
}

func TestIndexDeltaChargeRoundTrip(t *testing.T) {
	supply := int64(100_000_000)
	interest := int64(11_520_000)

	delta := fpmath.ComputeIndexDelta(interest, supply)
	if delta <= 0 {
		t.Fatalf("index delta = %d, want positive", delta)
	}

	// Charging the whole supply over the same span recovers the interest.
	if got := fpmath.ComputeIndexCharge(supply, delta); got != interest {
		t.Errorf("charge = %d, want %d", got, interest)
	}

	// Half the supply pays half the interest.
	if got := fpmath.ComputeIndexCharge(supply/2, delta); got != interest/2 {
		t.Errorf("half charge = %d, want %d", got, interest/2)
	}

	if got := fpmath.ComputeIndexDelta(interest, 0); got != 0 {
		t.Errorf("zero supply delta = %d", got)
	}
	if got := fpmath.ComputeIndexCharge(supply, 0); got != 0 {
		t.Errorf("zero span charge = %d", got)
	}
}

func TestComputeCollateralRatio(t *testing.T) {
	// 2,000 collateral on 10,000 deposit = 20%.
	if got := fpmath.ComputeCollateralRatio(2_000_000_000, 10_000_000_000); got != 200_000 {
		t.Errorf("ratio = %d, want 200_000", got)
	}
	// Zero deposit counts as fully collateralized.
	if got := fpmath.ComputeCollateralRatio(0, 0); got != int64(1<<62-1) {
		t.Errorf("zero deposit ratio = %d", got)
	}
}

func TestApplyRatio(t *testing.T) {
	// 2-for-1 split doubles amounts.
	if got := fpmath.ApplyRatio(100_000_000, 2, 1); got != 200_000_000 {
		t.Errorf("2:1 = %d, want 200_000_000", got)
	}
	// Reverse split halves, banker's rounding on the boundary.
	if got := fpmath.ApplyRatio(100_000_001, 1, 2); got != 50_000_000 {
		t.Errorf("1:2 = %d, want 50_000_000", got)
	}
	if got := fpmath.ApplyRatio(0, 3, 2); got != 0 {
		t.Errorf("zero amount = %d", got)
	}
}
