package config

// AxisConfig is one servo axis. Distances are in machine units (mm or
// degrees), converted to encoder counts with CountsPerUnit.
type AxisConfig struct {
	OID           uint8   `json:"oid"`
	CountsPerUnit float64 `json:"counts_per_unit"`
	MaxRate       float64 `json:"max_rate"`     // units/s
	Accel         float64 `json:"accel"`        // units/s^2
	Decel         float64 `json:"decel"`        // units/s^2, defaults to Accel
	DefaultRate   float64 `json:"default_rate"` // units/s for moves without F
	MinPosition   float64 `json:"min_position"`
	MaxPosition   float64 `json:"max_position"`

	// Actuator wiring, used by the target when it creates the servo.
	StepPin    uint8 `json:"step_pin"`
	DirPin     uint8 `json:"dir_pin"`
	InvertStep bool  `json:"invert_step"`
	InvertDir  bool  `json:"invert_dir"`
}

// MachineConfig is the complete standalone configuration.
type MachineConfig struct {
	Mode       string                `json:"mode"`       // "standalone" or "host"
	Kinematics string                `json:"kinematics"` // "cartesian"
	Axes       map[string]AxisConfig `json:"axes"`       // keyed by G-code letter

	// QueueSize bounds the moves waiting behind the active one.
	QueueSize int `json:"queue_size"`
}
