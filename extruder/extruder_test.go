package extruder

import "testing"

func TestGetOutOfRange(t *testing.T) {
	tbl := Table{Extruders: []Config{{}}}
	if _, ok := tbl.Get(-1); ok {
		t.Fatalf("Get(-1) should fail")
	}
	if _, ok := tbl.Get(1); ok {
		t.Fatalf("Get(1) should fail on a single-entry table")
	}
	if _, ok := tbl.Get(0); !ok {
		t.Fatalf("Get(0) should succeed")
	}
}

func TestIsCold(t *testing.T) {
	cold := Config{MinExtrudeTempC: 180, Temperature: 25}
	if !cold.IsCold() {
		t.Fatalf("extruder below minimum temperature should be cold")
	}
	hot := Config{MinExtrudeTempC: 180, Temperature: 200}
	if hot.IsCold() {
		t.Fatalf("extruder above minimum temperature should not be cold")
	}
	noGate := Config{Temperature: 25}
	if noGate.IsCold() {
		t.Fatalf("a table entry with no minimum configured should never be cold")
	}
}

func TestOverLong(t *testing.T) {
	c := Config{MaxExtrudeLengthMM: 50}
	if c.OverLong(49) {
		t.Fatalf("49mm should not exceed a 50mm limit")
	}
	if !c.OverLong(51) {
		t.Fatalf("51mm should exceed a 50mm limit")
	}
	if !c.OverLong(-51) {
		t.Fatalf("OverLong should compare magnitude, not sign")
	}
	noLimit := Config{}
	if noLimit.OverLong(1e9) {
		t.Fatalf("MaxExtrudeLengthMM == 0 should mean no limit")
	}
}

func TestOverLongAppliesEFactor(t *testing.T) {
	c := Config{MaxExtrudeLengthMM: 50, EFactor: 2}
	if !c.OverLong(30) {
		t.Fatalf("30mm * e_factor 2 = 60mm should exceed a 50mm limit")
	}
}
