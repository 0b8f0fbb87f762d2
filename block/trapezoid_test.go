package block

import "testing"

func TestMaxAllowableSpeedSqrClampsAtZero(t *testing.T) {
	// Decelerating from a tiny target over a long distance should clamp to
	// zero, never go negative.
	got := MaxAllowableSpeedSqr(1000, 1, 1000)
	if got != 0 {
		t.Fatalf("MaxAllowableSpeedSqr = %v, want 0", got)
	}
}

func TestMaxAllowableSpeedSqrPositive(t *testing.T) {
	// a = -accel (decelerating), so v^2 = target^2 + 2*accel*d.
	got := MaxAllowableSpeedSqr(-2, 0, 100)
	want := 400.0
	if got != want {
		t.Fatalf("MaxAllowableSpeedSqr = %v, want %v", got, want)
	}
}

func TestFitTrapezoidProducesConsistentProfile(t *testing.T) {
	b := &Block{
		StepEventCount:         10000,
		NominalSpeedSqr:        10000, // nominal speed 100 mm/s equivalent
		NominalRate:            10000,
		AccelerationStepsPerS2: 1000,
	}
	b.FitTrapezoid(0, 0)
	if b.AccelerateUntil == 0 {
		t.Fatalf("expected a nonzero acceleration phase")
	}
	if b.DecelerateAfter < b.AccelerateUntil {
		t.Fatalf("decelerate_after (%d) should not precede accelerate_until (%d)", b.DecelerateAfter, b.AccelerateUntil)
	}
	if b.DecelerateAfter > b.StepEventCount {
		t.Fatalf("decelerate_after (%d) exceeds step_event_count (%d)", b.DecelerateAfter, b.StepEventCount)
	}
	if b.InitialRate < MinimalStepRate || b.FinalRate < MinimalStepRate {
		t.Fatalf("rates fell below the floor: initial=%d final=%d", b.InitialRate, b.FinalRate)
	}
}

func TestFitTrapezoidDegenerateTriangle(t *testing.T) {
	// A very short, fast move: there isn't enough distance to both reach
	// nominal speed and decelerate back down, so the plateau goes negative
	// and accelerate_until must equal decelerate_after.
	b := &Block{
		StepEventCount:         40,
		NominalSpeedSqr:        1_000_000,
		NominalRate:            1000,
		AccelerationStepsPerS2: 500,
	}
	b.FitTrapezoid(0, 0)
	if b.AccelerateUntil != b.DecelerateAfter {
		t.Fatalf("degenerate profile should have accelerate_until == decelerate_after, got %d and %d",
			b.AccelerateUntil, b.DecelerateAfter)
	}
	if b.AccelerateUntil > b.StepEventCount {
		t.Fatalf("accelerate_until (%d) exceeds step_event_count (%d)", b.AccelerateUntil, b.StepEventCount)
	}
}

func TestFitTrapezoidZeroAcceleration(t *testing.T) {
	b := &Block{
		StepEventCount:         100,
		NominalSpeedSqr:        100,
		NominalRate:            100,
		AccelerationStepsPerS2: 0,
	}
	b.FitTrapezoid(100, 100)
	if b.AccelerateUntil != 0 || b.DecelerateAfter != b.StepEventCount {
		t.Fatalf("zero acceleration should be an immediate full-length plateau, got accelerate_until=%d decelerate_after=%d",
			b.AccelerateUntil, b.DecelerateAfter)
	}
}
