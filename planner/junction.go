package planner

import "math"

// maxEntrySpeedSqr computes the bound on this move's entry speed imposed by
// the angle between it and the previous move, per spec.md §4.3 step 10. The
// very first move queued after a reset, or after quick_stop cleared the
// buffer, has no previous unit vector to compare against: there is no
// momentum to carry into the junction, so it is bounded at the minimum
// planner speed rather than left unbounded.
func (p *Planner) maxEntrySpeedSqr(mv *admissionMove) float64 {
	if !p.havePrevUnit {
		return p.cfg.minimumPlannerSpeedSqr()
	}

	// junctionCosTheta is -(dot of the two direction vectors): it is +1
	// when the new move exactly reverses the previous one (the two unit
	// vectors point opposite ways, dot = -1) and -1 when the move
	// continues straight on (the vectors are identical, dot = 1).
	junctionCosTheta := -(p.prevUnit[0]*mv.unit[0] + p.prevUnit[1]*mv.unit[1] +
		p.prevUnit[2]*mv.unit[2] + p.prevUnit[3]*mv.unit[3])
	if junctionCosTheta > 1 {
		junctionCosTheta = 1
	}
	if junctionCosTheta < -1 {
		junctionCosTheta = -1
	}

	var bound float64
	switch p.cfg.Policy {
	case PolicyClassicJerk:
		bound = p.classicJerkBoundSqr(mv, junctionCosTheta)
	default:
		bound = p.junctionDeviationBoundSqr(mv, junctionCosTheta)
	}

	// spec.md §4.3 step 10 (also invariant P5): "Finally upper-bound by
	// min(nominal_speed_sqr, previous.nominal_speed_sqr)". The two bound
	// functions above already clamp to this move's own nominal_speed_sqr;
	// this clamps the other half, so a fast move colinear with a slow one
	// can't enter the junction faster than the slow block ahead of it was
	// ever going to travel.
	if p.prevNominalSpeedSqr < bound {
		bound = p.prevNominalSpeedSqr
	}
	return bound
}

// junctionDeviationBoundSqr implements Klipper/Marlin's junction-deviation
// formula (policy A, spec.md §9): a single scalar radius stands in for the
// per-axis jerk table, so corner speed falls directly out of the geometry
// of the two path segments meeting at this junction.
func (p *Planner) junctionDeviationBoundSqr(mv *admissionMove, cosTheta float64) float64 {
	if cosTheta > 0.999999 {
		// Near-exact reversal: the junction must be crossed at (near) zero
		// speed.
		return p.cfg.minimumPlannerSpeedSqr()
	}
	sinThetaD2 := math.Sqrt(math.Max(0, 0.5*(1-cosTheta)))
	if sinThetaD2 > 0.9999 {
		// Near-exact straight line: no junction bound beyond the nominal
		// speed ceiling.
		return mv.feedrate * mv.feedrate
	}
	r := p.cfg.JunctionDeviationMM * sinThetaD2 / (1 - sinThetaD2)
	accel := minNonZero(mv.maxAccel[:3]...)
	if accel <= 0 {
		accel = mv.maxAccel[3]
	}
	bound := accel * r

	// Short segments that reverse sharply can't trust the deviation-radius
	// formula above: a tiny move turning through more than 135 degrees
	// needs an arc fit instead, or the radius formula overestimates the
	// safe junction speed for how little room the segment has to carry it
	// through the corner (spec.md §4.3 step 10, scenario S4). cosTheta
	// climbs toward +1 as the turn sharpens toward a full reversal, so
	// sqrt(2)/2 marks the 135-degree threshold.
	if mv.millimeters < 1.0 && cosTheta > math.Sqrt2/2 {
		dot := -cosTheta
		if dot < -1 {
			dot = -1
		}
		if dot > 1 {
			dot = 1
		}
		theta := math.Acos(dot)
		if theta > math.Pi-0.033 {
			theta = math.Pi - 0.033
		}
		if arcBound := mv.millimeters * accel / (math.Pi - theta); arcBound < bound {
			bound = arcBound
		}
	}

	nominalSqr := mv.feedrate * mv.feedrate
	if bound > nominalSqr {
		bound = nominalSqr
	}
	return bound
}

// classicJerkBoundSqr implements the older per-axis-jerk bound (policy B):
// the junction speed is capped by the square-corner velocity floor,
// blended down to zero as the turn approaches a full reversal (spec.md §9,
// marked optional). This is an explicitly simplified rendition: a faithful
// per-axis jerk table walk is out of scope here, matching the
// "implementations SHOULD offer (A)" framing that makes this path
// secondary.
func (p *Planner) classicJerkBoundSqr(mv *admissionMove, cosTheta float64) float64 {
	if cosTheta > 0.999999 {
		return p.cfg.minimumPlannerSpeedSqr()
	}
	if cosTheta < -0.999999 {
		return mv.feedrate * mv.feedrate
	}
	scv := p.cfg.SquareCornerVelocity
	if scv <= 0 {
		return p.cfg.minimumPlannerSpeedSqr()
	}
	blend := math.Max(0, cosTheta)
	bound := scv * (1 - blend)
	boundSqr := bound * bound
	minSqr := p.cfg.minimumPlannerSpeedSqr()
	if boundSqr < minSqr {
		boundSqr = minSqr
	}
	if nominalSqr := mv.feedrate * mv.feedrate; boundSqr > nominalSqr {
		boundSqr = nominalSqr
	}
	return boundSqr
}
