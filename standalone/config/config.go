package config

import (
	"encoding/json"
	"errors"

	"motionhub/core"
	"motionhub/trajectory"
)

var (
	ErrNoAxes         = errors.New("no axes configured")
	ErrAxisName       = errors.New("axis name must be one of XYZABCUVW")
	ErrCountsPerUnit  = errors.New("counts_per_unit must be positive")
	ErrOID            = errors.New("oid out of range")
	ErrDuplicateOID   = errors.New("oid used by another axis")
	ErrLimits         = errors.New("rate or acceleration outside supported range")
	ErrPositionLimits = errors.New("min_position above max_position")
	ErrKinematics     = errors.New("unsupported kinematics")
)

// AxisError reports which axis failed validation.
type AxisError struct {
	Axis string
	Err  error
}

func (e *AxisError) Error() string { return "axis " + e.Axis + ": " + e.Err.Error() }
func (e *AxisError) Unwrap() error { return e.Err }

// LoadConfig parses a JSON configuration and returns a validated
// MachineConfig with defaults applied.
func LoadConfig(jsonData []byte) (*MachineConfig, error) {
	var config MachineConfig

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(config *MachineConfig) {
	if config.Mode == "" {
		config.Mode = "standalone"
	}
	if config.Kinematics == "" {
		config.Kinematics = "cartesian"
	}
	if config.QueueSize == 0 {
		config.QueueSize = 16
	}

	for name, axis := range config.Axes {
		if axis.MaxRate == 0 {
			axis.MaxRate = 100
		}
		if axis.Accel == 0 {
			axis.Accel = 10 * axis.MaxRate
		}
		if axis.Decel == 0 {
			axis.Decel = axis.Accel
		}
		if axis.DefaultRate == 0 {
			axis.DefaultRate = axis.MaxRate / 2
		}
		config.Axes[name] = axis
	}
}

// Validate checks every axis against the servo limits.
func (c *MachineConfig) Validate() error {
	if c.Kinematics != "cartesian" {
		return ErrKinematics
	}
	if len(c.Axes) == 0 {
		return ErrNoAxes
	}
	seen := map[uint8]string{}
	for _, name := range c.AxisNames() {
		axis := c.Axes[name]
		if err := axis.validate(name); err != nil {
			return &AxisError{Axis: name, Err: err}
		}
		if _, dup := seen[axis.OID]; dup {
			return &AxisError{Axis: name, Err: ErrDuplicateOID}
		}
		seen[axis.OID] = name
	}
	return nil
}

func (a AxisConfig) validate(name string) error {
	if len(name) != 1 || !isAxisLetter(name[0]) {
		return ErrAxisName
	}
	if a.CountsPerUnit <= 0 {
		return ErrCountsPerUnit
	}
	if a.OID >= core.MaxServos {
		return ErrOID
	}
	if a.MinPosition > a.MaxPosition {
		return ErrPositionLimits
	}
	for _, v := range [...]float64{a.MaxRate, a.Accel, a.Decel, a.DefaultRate} {
		counts := v * a.CountsPerUnit
		if counts < 1 || counts > trajectory.RateMax {
			return ErrLimits
		}
	}
	return nil
}

func isAxisLetter(c byte) bool {
	switch c {
	case 'X', 'Y', 'Z', 'A', 'B', 'C', 'U', 'V', 'W':
		return true
	}
	return false
}

// AxisNames returns the configured axis names in order.
func (c *MachineConfig) AxisNames() []string {
	names := make([]string, 0, len(c.Axes))
	for name := range c.Axes {
		i := len(names)
		names = append(names, name)
		for i > 0 && names[i-1] > name {
			names[i] = names[i-1]
			i--
		}
		names[i] = name
	}
	return names
}

// Limits converts the axis limits to counts.
func (a AxisConfig) Limits() core.Limits {
	return core.Limits{
		MaxRate: a.ToCounts(a.MaxRate),
		Accel:   a.ToCounts(a.Accel),
		Decel:   a.ToCounts(a.Decel),
	}
}

// ToCounts converts a distance or rate in units to counts, rounded to
// nearest.
func (a AxisConfig) ToCounts(units float64) int32 {
	v := units * a.CountsPerUnit
	if v < 0 {
		return int32(v - 0.5)
	}
	return int32(v + 0.5)
}

// ToUnits converts a position to units.
func (a AxisConfig) ToUnits(p trajectory.Position) float64 {
	return float64(p.Milli()) / 1000 / a.CountsPerUnit
}

// HasSoftLimits reports whether the axis travel is bounded.
func (a AxisConfig) HasSoftLimits() bool {
	return a.MinPosition != a.MaxPosition
}

// DefaultConfig returns a two-axis configuration for 200 step/rev motors
// at 16 microsteps on 8 mm leadscrews.
func DefaultConfig() *MachineConfig {
	cfg := &MachineConfig{
		Axes: map[string]AxisConfig{
			"X": {
				OID:           0,
				CountsPerUnit: 400,
				MaxRate:       50,
				Accel:         500,
				MaxPosition:   200,
				StepPin:       2,
				DirPin:        3,
			},
			"Y": {
				OID:           1,
				CountsPerUnit: 400,
				MaxRate:       50,
				Accel:         500,
				MaxPosition:   200,
				StepPin:       4,
				DirPin:        5,
			},
		},
	}
	applyDefaults(cfg)
	return cfg
}
