package kinematics

import (
	"errors"

	"motionhub/standalone/config"
)

var (
	ErrUnknownAxis = errors.New("unknown axis")
	ErrOutOfLimits = errors.New("position out of limits")
)

// Cartesian maps every axis 1:1 onto its servo.
type Cartesian struct {
	config *config.MachineConfig
	names  []string
}

// NewCartesian creates a new Cartesian kinematics instance
func NewCartesian(cfg *config.MachineConfig) *Cartesian {
	return &Cartesian{config: cfg, names: cfg.AxisNames()}
}

func (k *Cartesian) CalcCounts(target map[string]float64) (map[string]int32, error) {
	if err := k.CheckLimits(target); err != nil {
		return nil, err
	}
	counts := make(map[string]int32, len(target))
	for name, units := range target {
		counts[name] = k.config.Axes[name].ToCounts(units)
	}
	return counts, nil
}

func (k *Cartesian) GetAxisNames() []string {
	return k.names
}

// CheckLimits rejects unknown axes and targets outside the travel of axes
// that have soft limits.
func (k *Cartesian) CheckLimits(target map[string]float64) error {
	for name, units := range target {
		axis, ok := k.config.Axes[name]
		if !ok {
			return &config.AxisError{Axis: name, Err: ErrUnknownAxis}
		}
		if axis.HasSoftLimits() && (units < axis.MinPosition || units > axis.MaxPosition) {
			return &config.AxisError{Axis: name, Err: ErrOutOfLimits}
		}
	}
	return nil
}
