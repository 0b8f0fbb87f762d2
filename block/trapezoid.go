package block

import "math"

// MaxAllowableSpeedSqr computes target² − 2·a·d, clamped at zero. Per
// spec.md §4.3/§4.4, callers pass a negative acceleration when asking "what
// entry speed lets this segment decelerate to target by the end", so the
// expression becomes target² + 2·accel·d.
func MaxAllowableSpeedSqr(a, targetSqr, d float64) float64 {
	v := targetSqr - 2*a*d
	if v < 0 {
		return 0
	}
	return v
}

func clampSteps(v, lo, hi float64) uint32 {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return uint32(v)
}

// FitTrapezoid implements §4.5: given entry/nominal/exit squared speeds and
// the block's acceleration (steps/s²), it fills AccelerateUntil,
// DecelerateAfter, InitialRate and FinalRate in place.
func (b *Block) FitTrapezoid(entrySqr, exitSqr float64) {
	nominalSqr := b.NominalSpeedSqr
	n := float64(b.StepEventCount)
	accel := b.AccelerationStepsPerS2
	nominalRate := float64(b.NominalRate)

	rateFor := func(speedSqr float64) uint32 {
		if nominalSqr <= 0 {
			return MinimalStepRate
		}
		r := math.Ceil(math.Sqrt(speedSqr/nominalSqr) * nominalRate)
		if r < MinimalStepRate {
			r = MinimalStepRate
		}
		return uint32(r)
	}

	initialRate := rateFor(entrySqr)
	finalRate := rateFor(exitSqr)

	var accelSteps, decelSteps float64
	if accel > 0 {
		accelSteps = math.Ceil((nominalRate*nominalRate - float64(initialRate)*float64(initialRate)) / (2 * accel))
		decelSteps = math.Floor((nominalRate*nominalRate - float64(finalRate)*float64(finalRate)) / (2 * accel))
	}
	plateau := n - accelSteps - decelSteps

	var accelerateUntil uint32
	if plateau < 0 {
		if accel > 0 {
			accelSteps = (2*accel*n + float64(finalRate)*float64(finalRate) - float64(initialRate)*float64(initialRate)) / (4 * accel)
			accelSteps = math.Ceil(accelSteps)
		} else {
			accelSteps = 0
		}
		accelerateUntil = clampSteps(accelSteps, 0, n)
		b.AccelerateUntil = accelerateUntil
		b.DecelerateAfter = accelerateUntil
	} else {
		accelerateUntil = clampSteps(accelSteps, 0, n)
		b.AccelerateUntil = accelerateUntil
		b.DecelerateAfter = clampSteps(accelSteps+plateau, 0, n)
	}
	b.InitialRate = initialRate
	b.FinalRate = finalRate
}
