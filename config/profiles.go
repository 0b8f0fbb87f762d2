package config

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/onekk/gplanner/kinematics"
)

//go:embed profiles.yaml
var profilesFS embed.FS

type axisYAML struct {
	StepsPerMM          float64 `yaml:"steps_per_mm"`
	MaxFeedrateMMs      float64 `yaml:"max_feedrate_mms"`
	MaxAccelerationMMs2 float64 `yaml:"max_acceleration_mms2"`
	MaxJerkMMs          float64 `yaml:"max_jerk_mms"`
}

func (a axisYAML) toLimits() kinematics.AxisLimits {
	return kinematics.AxisLimits{
		StepsPerMM:          a.StepsPerMM,
		MaxFeedrateMMs:      a.MaxFeedrateMMs,
		MaxAccelerationMMs2: a.MaxAccelerationMMs2,
		MaxJerkMMs:          a.MaxJerkMMs,
	}
}

type profileYAML struct {
	Kinematics          string               `yaml:"kinematics"`
	CoreXYFactor        float64              `yaml:"corexy_factor"`
	JunctionDeviationMM float64              `yaml:"junction_deviation_mm"`
	DeltaRadiusMM       float64              `yaml:"delta_radius_mm"`
	DeltaDiagonalMM     float64              `yaml:"delta_diagonal_mm"`
	DeltaTowerAnglesDeg [3]float64           `yaml:"delta_tower_angles_deg"`
	Axes                map[string]axisYAML  `yaml:"axes"`
}

// defaultProfiles holds the machine geometry presets shipped inside the
// binary (spec.md §6's "reasonable factory defaults" requirement): a
// deployment picks one by name in its active TOML config and overrides
// only the fields that differ for its specific machine.
func defaultProfiles() (map[string]profileYAML, error) {
	raw, err := profilesFS.ReadFile("profiles.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded profiles: %w", err)
	}
	var out map[string]profileYAML
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse embedded profiles: %w", err)
	}
	return out, nil
}

const axisOrderA, axisOrderB, axisOrderC, axisOrderE = "a", "b", "c", "e"

func (p profileYAML) toModel() (kinematics.Model, error) {
	model := kinematics.Model{JunctionDeviationMM: p.JunctionDeviationMM}
	order := [4]string{axisOrderA, axisOrderB, axisOrderC, axisOrderE}
	for i, name := range order {
		axis, ok := p.Axes[name]
		if !ok {
			return model, fmt.Errorf("profile missing axis %q", name)
		}
		model.Axes[i] = axis.toLimits()
	}

	switch p.Kinematics {
	case "", "cartesian":
		model.Kind = kinematics.Cartesian{}
	case "corexy":
		model.Kind = kinematics.CoreXY{Factor: p.CoreXYFactor}
	case "delta":
		var angles [3]float64
		for i, deg := range p.DeltaTowerAnglesDeg {
			angles[i] = deg * 3.14159265358979 / 180
		}
		model.Kind = kinematics.Delta{
			RadiusMM:    p.DeltaRadiusMM,
			DiagonalMM:  p.DeltaDiagonalMM,
			TowerAngles: angles,
		}
	default:
		return model, fmt.Errorf("unknown kinematics %q (scara requires a host-supplied transform, not a config profile)", p.Kinematics)
	}
	return model, nil
}
