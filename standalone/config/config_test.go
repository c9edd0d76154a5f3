package config

import (
	"errors"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{"axes": {"X": {"oid": 2, "counts_per_unit": 100, "max_rate": 20}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != "standalone" || cfg.Kinematics != "cartesian" || cfg.QueueSize != 16 {
		t.Errorf("machine defaults = %+v", cfg)
	}

	x := cfg.Axes["X"]
	if x.Accel != 200 || x.Decel != 200 || x.DefaultRate != 10 {
		t.Errorf("axis defaults = %+v", x)
	}
	limits := x.Limits()
	if limits.MaxRate != 2000 || limits.Accel != 20000 || limits.Decel != 20000 {
		t.Errorf("limits = %+v", limits)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"no axes", `{}`, ErrNoAxes},
		{"bad name", `{"axes": {"Q": {"counts_per_unit": 1}}}`, ErrAxisName},
		{"no scale", `{"axes": {"X": {}}}`, ErrCountsPerUnit},
		{"oid", `{"axes": {"X": {"oid": 16, "counts_per_unit": 1}}}`, ErrOID},
		{"duplicate", `{"axes": {"X": {"counts_per_unit": 1}, "Y": {"counts_per_unit": 1}}}`, ErrDuplicateOID},
		{"too fast", `{"axes": {"X": {"counts_per_unit": 100000, "max_rate": 1000}}}`, ErrLimits},
		{"travel", `{"axes": {"X": {"counts_per_unit": 1, "min_position": 5}}}`, ErrPositionLimits},
		{"kinematics", `{"kinematics": "delta", "axes": {"X": {"counts_per_unit": 1}}}`, ErrKinematics},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig([]byte(tt.json))
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadConfig error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := LoadConfig([]byte(`{"axes": [`)); err == nil {
		t.Error("malformed JSON accepted")
	}
}

func TestAxisErrorNamesAxis(t *testing.T) {
	_, err := LoadConfig([]byte(`{"axes": {"Z": {"oid": 20, "counts_per_unit": 1}}}`))
	var axisErr *AxisError
	if !errors.As(err, &axisErr) || axisErr.Axis != "Z" {
		t.Fatalf("error = %v", err)
	}
	if err.Error() != "axis Z: oid out of range" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestUnitConversion(t *testing.T) {
	a := AxisConfig{CountsPerUnit: 80}
	tests := []struct {
		units  float64
		counts int32
	}{
		{1.5, 120},
		{-1.5, -120},
		{0.006, 0},
		{0.007, 1},
		{-0.007, -1},
	}
	for _, tt := range tests {
		if got := a.ToCounts(tt.units); got != tt.counts {
			t.Errorf("ToCounts(%v) = %d, want %d", tt.units, got, tt.counts)
		}
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	names := cfg.AxisNames()
	if len(names) != 2 || names[0] != "X" || names[1] != "Y" {
		t.Errorf("axis names = %v", names)
	}
}
