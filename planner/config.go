package planner

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/onekk/gplanner/kinematics"
)

// Policy selects the junction-speed strategy used by move admission
// (spec.md §4.3 step 10). The two are mutually exclusive.
type Policy int

const (
	PolicyJunctionDeviation Policy = iota
	PolicyClassicJerk
)

// Config is the configuration surface named in spec.md §6.
type Config struct {
	RingCapacity int

	MinimumPlannerSpeedMMs float64 // default 0.05
	MinStepsPerSegment     uint32  // default 6
	BlockDelayFor1stMove   time.Duration // default 100ms
	MinSegmentTimeUs       float64       // slowdown floor; 0 disables the hook

	Policy               Policy
	JunctionDeviationMM  float64
	SquareCornerVelocity float64 // used by PolicyClassicJerk's safe-speed term

	MinFeedrateMMs       float64
	MinTravelFeedrateMMs float64

	TravelAcceleration  float64
	PrintAcceleration   float64
	RetractAcceleration float64
}

func defaultConfig() Config {
	return Config{
		RingCapacity:            32,
		MinimumPlannerSpeedMMs:  0.05,
		MinStepsPerSegment:      6,
		BlockDelayFor1stMove:    100 * time.Millisecond,
		Policy:                  PolicyJunctionDeviation,
		JunctionDeviationMM:     0.05,
		SquareCornerVelocity:    5,
		MinFeedrateMMs:          0.0,
		MinTravelFeedrateMMs:    0.0,
	}
}

// withDefaults fills any zero-valued field of cfg from defaultConfig,
// leaving explicit values alone.
func (cfg Config) withDefaults() Config {
	d := defaultConfig()
	if cfg.RingCapacity == 0 {
		cfg.RingCapacity = d.RingCapacity
	}
	if cfg.MinimumPlannerSpeedMMs == 0 {
		cfg.MinimumPlannerSpeedMMs = d.MinimumPlannerSpeedMMs
	}
	if cfg.MinStepsPerSegment == 0 {
		cfg.MinStepsPerSegment = d.MinStepsPerSegment
	}
	if cfg.BlockDelayFor1stMove == 0 {
		cfg.BlockDelayFor1stMove = d.BlockDelayFor1stMove
	}
	if cfg.JunctionDeviationMM == 0 {
		cfg.JunctionDeviationMM = d.JunctionDeviationMM
	}
	if cfg.SquareCornerVelocity == 0 {
		cfg.SquareCornerVelocity = d.SquareCornerVelocity
	}
	return cfg
}

func (cfg Config) minimumPlannerSpeedSqr() float64 {
	return cfg.MinimumPlannerSpeedMMs * cfg.MinimumPlannerSpeedMMs
}

// ValidateModel aggregates every per-axis configuration violation into one
// error via multierr, rather than stopping at the first, since a
// misconfigured machine typically has more than one bad axis entry
// (SPEC_FULL.md "Config validation errors").
func ValidateModel(model kinematics.Model) error {
	var err error
	names := [4]string{"a", "b", "c", "e"}
	for i, axis := range model.Axes {
		if axis.StepsPerMM <= 0 {
			err = multierr.Append(err, fmt.Errorf("axis %s: steps_per_mm must be positive", names[i]))
		}
		if axis.MaxFeedrateMMs <= 0 {
			err = multierr.Append(err, fmt.Errorf("axis %s: max_feedrate must be positive", names[i]))
		}
		if axis.MaxAccelerationMMs2 <= 0 {
			err = multierr.Append(err, fmt.Errorf("axis %s: max_acceleration must be positive", names[i]))
		}
	}
	if model.Kind == nil {
		err = multierr.Append(err, fmt.Errorf("kinematics: no geometry strategy configured"))
	}
	return err
}
