package kinematics

import "motionhub/standalone/config"

// Kinematics maps machine coordinates onto servo counts.
type Kinematics interface {
	// CalcCounts converts target coordinates (units) to counts per axis.
	CalcCounts(target map[string]float64) (map[string]int32, error)

	// GetAxisNames returns the names of axes controlled by this kinematics
	GetAxisNames() []string

	// CheckLimits validates that a position is within configured limits
	CheckLimits(target map[string]float64) error
}

// New returns the kinematics named by the configuration.
func New(cfg *config.MachineConfig) (Kinematics, error) {
	switch cfg.Kinematics {
	case "cartesian":
		return NewCartesian(cfg), nil
	}
	return nil, config.ErrKinematics
}
