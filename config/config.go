// Package config loads the active TOML deployment configuration, layers it
// over an embedded YAML default machine profile, and assembles the
// kinematic model, extruder table and planner configuration the rest of
// the module needs to construct a planner.Planner.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/onekk/gplanner/extruder"
	"github.com/onekk/gplanner/internal/logger"
	"github.com/onekk/gplanner/kinematics"
	"github.com/onekk/gplanner/planner"
)

type axisOverrideTOML struct {
	StepsPerMM          *float64 `toml:"steps_per_mm"`
	MaxFeedrateMMs      *float64 `toml:"max_feedrate_mms"`
	MaxAccelerationMMs2 *float64 `toml:"max_acceleration_mms2"`
	MaxJerkMMs          *float64 `toml:"max_jerk_mms"`
}

func (o axisOverrideTOML) apply(a kinematics.AxisLimits) kinematics.AxisLimits {
	if o.StepsPerMM != nil {
		a.StepsPerMM = *o.StepsPerMM
	}
	if o.MaxFeedrateMMs != nil {
		a.MaxFeedrateMMs = *o.MaxFeedrateMMs
	}
	if o.MaxAccelerationMMs2 != nil {
		a.MaxAccelerationMMs2 = *o.MaxAccelerationMMs2
	}
	if o.MaxJerkMMs != nil {
		a.MaxJerkMMs = *o.MaxJerkMMs
	}
	return a
}

type extruderTOML struct {
	StepsPerMM          float64 `toml:"steps_per_mm"`
	MaxFeedrateMMs      float64 `toml:"max_feedrate_mms"`
	MaxAccelerationMMs2 float64 `toml:"max_acceleration_mms2"`
	EFactor             float64 `toml:"e_factor"`
	MinExtrudeTempC     float64 `toml:"min_extrude_temp_c"`
	MaxExtrudeLengthMM  float64 `toml:"max_extrude_length_mm"`
}

type loggingTOML struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// fileConfig is the shape of the active TOML config file. Every field
// outside Profile is optional: an absent field keeps the profile's or the
// planner package's own default.
type fileConfig struct {
	Profile string `toml:"profile"`

	RingCapacity           int     `toml:"ring_capacity"`
	MinimumPlannerSpeedMMs float64 `toml:"minimum_planner_speed_mms"`
	MinStepsPerSegment     int     `toml:"min_steps_per_segment"`
	BlockDelayFor1stMoveMs int     `toml:"block_delay_for_1st_move_ms"`
	MinSegmentTimeUs       float64 `toml:"min_segment_time_us"`

	Policy               string  `toml:"policy"`
	JunctionDeviationMM  float64 `toml:"junction_deviation_mm"`
	SquareCornerVelocity float64 `toml:"square_corner_velocity"`

	MinFeedrateMMs       float64 `toml:"min_feedrate_mms"`
	MinTravelFeedrateMMs float64 `toml:"min_travel_feedrate_mms"`
	TravelAcceleration   float64 `toml:"travel_acceleration"`
	PrintAcceleration    float64 `toml:"print_acceleration"`
	RetractAcceleration  float64 `toml:"retract_acceleration"`

	Axes      map[string]axisOverrideTOML `toml:"axes"`
	Extruders []extruderTOML              `toml:"extruders"`
	Logging   loggingTOML                 `toml:"logging"`
}

// Result bundles everything Load produces; New turns it into a running
// planner.Planner.
type Result struct {
	Model     kinematics.Model
	Extruders extruder.Table
	Planner   planner.Config
	Logging   loggingTOML
}

// Load reads the active TOML config at path, resolves its `profile`
// reference against the embedded defaults, and applies every override the
// file specifies on top.
func Load(path string) (Result, error) {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return Result{}, fmt.Errorf("decode %s: %w", path, err)
	}

	profiles, err := defaultProfiles()
	if err != nil {
		return Result{}, err
	}
	profileName := fc.Profile
	if profileName == "" {
		profileName = "cartesian"
	}
	profile, ok := profiles[profileName]
	if !ok {
		return Result{}, fmt.Errorf("unknown profile %q", profileName)
	}

	model, err := profile.toModel()
	if err != nil {
		return Result{}, fmt.Errorf("profile %q: %w", profileName, err)
	}
	order := [4]string{axisOrderA, axisOrderB, axisOrderC, axisOrderE}
	for i, name := range order {
		if override, ok := fc.Axes[name]; ok {
			model.Axes[i] = override.apply(model.Axes[i])
		}
	}
	if fc.JunctionDeviationMM > 0 {
		model.JunctionDeviationMM = fc.JunctionDeviationMM
	}

	var table extruder.Table
	for _, e := range fc.Extruders {
		table.Extruders = append(table.Extruders, extruder.Config{
			AxisLimits: kinematics.AxisLimits{
				StepsPerMM:          e.StepsPerMM,
				MaxFeedrateMMs:      e.MaxFeedrateMMs,
				MaxAccelerationMMs2: e.MaxAccelerationMMs2,
			},
			EFactor:            e.EFactor,
			MinExtrudeTempC:    e.MinExtrudeTempC,
			MaxExtrudeLengthMM: e.MaxExtrudeLengthMM,
		})
	}
	if len(table.Extruders) == 0 {
		table.Extruders = []extruder.Config{{AxisLimits: model.Axes[kinematics.E]}}
	}

	policy := planner.PolicyJunctionDeviation
	if fc.Policy == "classic_jerk" {
		policy = planner.PolicyClassicJerk
	}

	pcfg := planner.Config{
		RingCapacity:            fc.RingCapacity,
		MinimumPlannerSpeedMMs:  fc.MinimumPlannerSpeedMMs,
		MinStepsPerSegment:      uint32(fc.MinStepsPerSegment),
		MinSegmentTimeUs:        fc.MinSegmentTimeUs,
		Policy:                  policy,
		JunctionDeviationMM:     model.JunctionDeviationMM,
		SquareCornerVelocity:    fc.SquareCornerVelocity,
		MinFeedrateMMs:          fc.MinFeedrateMMs,
		MinTravelFeedrateMMs:    fc.MinTravelFeedrateMMs,
		TravelAcceleration:      fc.TravelAcceleration,
		PrintAcceleration:       fc.PrintAcceleration,
		RetractAcceleration:     fc.RetractAcceleration,
	}
	if fc.BlockDelayFor1stMoveMs > 0 {
		pcfg.BlockDelayFor1stMove = time.Duration(fc.BlockDelayFor1stMoveMs) * time.Millisecond
	}

	return Result{Model: model, Extruders: table, Planner: pcfg, Logging: fc.Logging}, nil
}

// New loads path and constructs a ready-to-use planner, also wiring up the
// process-wide logger from the file's [logging] table.
func New(path string) (*planner.Planner, error) {
	res, err := Load(path)
	if err != nil {
		return nil, err
	}

	level := logger.InfoLevel
	switch res.Logging.Level {
	case "debug":
		level = logger.DebugLevel
	case "warn":
		level = logger.WarnLevel
	case "error":
		level = logger.ErrorLevel
	}
	logger.Init(level, res.Logging.File, res.Logging.MaxSizeMB, res.Logging.MaxBackups, res.Logging.MaxAgeDays)

	return planner.New(res.Model, &res.Extruders, res.Planner)
}
