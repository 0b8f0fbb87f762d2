// Package kinematics implements C1: the per-axis kinematic model and the
// cartesian_to_axes / axes_to_cartesian pair of pure functions. It carries
// no planner state.
package kinematics

import "math"

// Axis indexes into the four-element mm/step vectors used throughout this
// module: A, B, C are the three machine axes (Cartesian x/y/z, or their
// CoreXY/Delta counterparts); E is the extruder.
const (
	A = 0
	B = 1
	C = 2
	E = 3
)

// AxisLimits holds the per-axis kinematic configuration named in spec.md §4.1.
type AxisLimits struct {
	StepsPerMM           float64
	MaxFeedrateMMs       float64
	MaxAccelerationMMs2  float64
	MaxJerkMMs           float64
}

func (a AxisLimits) StepsToMM() float64 {
	if a.StepsPerMM == 0 {
		return 0
	}
	return 1 / a.StepsPerMM
}

// Model bundles the four axis limits plus the scalar junction-deviation
// bound. It is pure configuration: no mutable state, safe to share.
type Model struct {
	Axes                [4]AxisLimits
	JunctionDeviationMM float64
	Kind                Kinematics
}

// Kinematics is the strategy object from the Design Notes (spec.md §9):
// each machine geometry implements the same two-function interface, and the
// block record never needs to know which one it is.
type Kinematics interface {
	// ToAxes converts a head-space Cartesian/angular target (x, y, z) plus
	// the extruder position e into the four machine-axis coordinates the
	// rest of the planner operates in.
	ToAxes(x, y, z, e float64) [4]float64
	// HeadDeltaMM converts a motor-axis delta back into the head-space
	// delta used for millimeters/junction-deviation geometry. For
	// Cartesian and Delta this is the identity; for CoreXY it undoes the
	// a/b mixing.
	HeadDeltaMM(axesDelta [4]float64) [4]float64
	// Name identifies the geometry for diagnostics.
	Name() string
}

// Cartesian is the identity mapping: machine axes equal head axes.
type Cartesian struct{}

func (Cartesian) ToAxes(x, y, z, e float64) [4]float64 { return [4]float64{x, y, z, e} }
func (Cartesian) HeadDeltaMM(d [4]float64) [4]float64  { return d }
func (Cartesian) Name() string                         { return "cartesian" }

// CoreXY implements a = x + k*y, b = x - k*y, per spec.md §4.1.
type CoreXY struct {
	Factor float64 // k, typically 1
}

func (k CoreXY) factor() float64 {
	if k.Factor == 0 {
		return 1
	}
	return k.Factor
}

func (k CoreXY) ToAxes(x, y, z, e float64) [4]float64 {
	f := k.factor()
	return [4]float64{x + f*y, x - f*y, z, e}
}

func (k CoreXY) HeadDeltaMM(d [4]float64) [4]float64 {
	f := k.factor()
	// Invert a = x + f*y, b = x - f*y:
	//   x = (a+b)/2, y = (a-b)/(2f)
	return [4]float64{
		(d[A] + d[B]) / 2,
		(d[A] - d[B]) / (2 * f),
		d[C],
		d[E],
	}
}

func (CoreXY) Name() string { return "corexy" }

// Delta implements a linear-delta tower transform: three vertical towers at
// 120 degrees, each axis value is that tower's carriage height. This is the
// one non-trivial closed-form carried over from the original source; it is
// not load-bearing for look-ahead correctness (per spec.md §1/§9, the
// planner treats it as a pure function).
type Delta struct {
	RadiusMM    float64
	DiagonalMM  float64
	TowerAngles [3]float64 // radians, conventionally 210, 330, 90 degrees
}

func (d Delta) towerXY(i int) (float64, float64) {
	a := d.TowerAngles[i]
	return d.RadiusMM * math.Cos(a), d.RadiusMM * math.Sin(a)
}

func (d Delta) ToAxes(x, y, z, e float64) [4]float64 {
	var out [4]float64
	for i := 0; i < 3; i++ {
		tx, ty := d.towerXY(i)
		dx, dy := x-tx, y-ty
		horiz2 := dx*dx + dy*dy
		diag2 := d.DiagonalMM * d.DiagonalMM
		// Carriage height above the tower's effective base so that the
		// diagonal rod of length DiagonalMM reaches (x, y, z).
		out[i] = z + math.Sqrt(math.Max(diag2-horiz2, 0))
	}
	out[E] = e
	return out
}

// HeadDeltaMM for Delta is the identity: the planner's geometry (segment
// length, junction vectors) is computed in head space; the per-tower axis
// values are only used by the downstream step generator.
func (Delta) HeadDeltaMM(d [4]float64) [4]float64 { return d }
func (Delta) Name() string                        { return "delta" }

// Scara is modeled as an injectable pure function, per the Design Note in
// spec.md §9: its closed-form is explicitly out of scope, so the host
// supplies it.
type Scara struct {
	ToAxesFn func(x, y, z, e float64) [4]float64
}

func (s Scara) ToAxes(x, y, z, e float64) [4]float64 {
	if s.ToAxesFn == nil {
		return [4]float64{x, y, z, e}
	}
	return s.ToAxesFn(x, y, z, e)
}

func (Scara) HeadDeltaMM(d [4]float64) [4]float64 { return d }
func (Scara) Name() string                        { return "scara" }
