package kinematics

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCartesianIdentity(t *testing.T) {
	c := Cartesian{}
	got := c.ToAxes(1, 2, 3, 4)
	want := [4]float64{1, 2, 3, 4}
	if got != want {
		t.Fatalf("ToAxes = %v, want %v", got, want)
	}
	if d := c.HeadDeltaMM([4]float64{5, 6, 7, 8}); d != [4]float64{5, 6, 7, 8} {
		t.Fatalf("HeadDeltaMM = %v", d)
	}
}

func TestCoreXYRoundTrip(t *testing.T) {
	k := CoreXY{Factor: 1}
	axes := k.ToAxes(10, 4, 2, 0)
	back := k.HeadDeltaMM(axes)
	if !almostEqual(back[0], 10) || !almostEqual(back[1], 4) {
		t.Fatalf("round trip = %v, want x=10 y=4", back)
	}
}

func TestCoreXYDefaultFactor(t *testing.T) {
	k := CoreXY{}
	a := k.ToAxes(1, 1, 0, 0)
	if !almostEqual(a[A], 2) || !almostEqual(a[B], 0) {
		t.Fatalf("ToAxes with zero factor = %v, want factor 1 behavior", a)
	}
}

func TestDeltaToAxesSymmetricAtCenter(t *testing.T) {
	d := Delta{RadiusMM: 140, DiagonalMM: 285, TowerAngles: [3]float64{
		210 * math.Pi / 180, 330 * math.Pi / 180, 90 * math.Pi / 180,
	}}
	axes := d.ToAxes(0, 0, 100, 0)
	for i := 1; i < 3; i++ {
		if !almostEqual(axes[i], axes[0]) {
			t.Fatalf("tower heights at machine center should match, got %v", axes)
		}
	}
}

func TestScaraDefaultsToIdentityWithoutFn(t *testing.T) {
	s := Scara{}
	got := s.ToAxes(1, 2, 3, 4)
	if got != [4]float64{1, 2, 3, 4} {
		t.Fatalf("Scara with no ToAxesFn = %v, want identity", got)
	}
}

func TestScaraUsesInjectedFn(t *testing.T) {
	s := Scara{ToAxesFn: func(x, y, z, e float64) [4]float64 {
		return [4]float64{x * 2, y, z, e}
	}}
	got := s.ToAxes(3, 4, 5, 6)
	if got != [4]float64{6, 4, 5, 6} {
		t.Fatalf("Scara injected fn not used, got %v", got)
	}
}

func TestAxisLimitsStepsToMM(t *testing.T) {
	a := AxisLimits{StepsPerMM: 80}
	if !almostEqual(a.StepsToMM(), 1.0/80) {
		t.Fatalf("StepsToMM = %v", a.StepsToMM())
	}
	zero := AxisLimits{}
	if zero.StepsToMM() != 0 {
		t.Fatalf("StepsToMM with zero steps_per_mm should be 0, got %v", zero.StepsToMM())
	}
}
