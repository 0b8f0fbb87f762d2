// Package extruder models the small external collaborator referenced
// throughout spec.md §4.3/§6: a table of per-extruder kinematic limits plus
// the cold/over-long extrusion checks used by move admission.
package extruder

import "github.com/onekk/gplanner/kinematics"

// Config is one extruder's entry in the table (spec.md §6).
type Config struct {
	kinematics.AxisLimits
	EFactor              float64 // unit-conversion scalar for multi-extruder compensation
	MinExtrudeTempC      float64
	MaxExtrudeLengthMM   float64
	Temperature          float64 // current reading, supplied by the (out-of-scope) heater subsystem
}

// Table holds every configured extruder, indexed by the small non-negative
// index named in spec.md §6.
type Table struct {
	Extruders []Config
}

func (t *Table) Get(i int) (Config, bool) {
	if i < 0 || i >= len(t.Extruders) {
		return Config{}, false
	}
	return t.Extruders[i], true
}

// IsCold reports whether extruder i is below its minimum extrusion
// temperature. A table with no configured minimum (zero value) is never
// cold, matching machines that don't gate on temperature.
func (c Config) IsCold() bool {
	return c.MinExtrudeTempC > 0 && c.Temperature < c.MinExtrudeTempC
}

// OverLong reports whether an extrusion delta (in mm, before EFactor is
// applied; OverLong scales it by EFactor itself) exceeds the configured maximum extrude length, per spec.md §4.3
// step 4: |delta_e| * e_factor > axis_steps_per_mm * MAX_EXTRUDE_LENGTH.
func (c Config) OverLong(deltaEMM float64) bool {
	if c.MaxExtrudeLengthMM <= 0 {
		return false
	}
	scaled := deltaEMM * c.efactorOrOne()
	if scaled < 0 {
		scaled = -scaled
	}
	return scaled > c.MaxExtrudeLengthMM
}

func (c Config) efactorOrOne() float64 {
	if c.EFactor == 0 {
		return 1
	}
	return c.EFactor
}
