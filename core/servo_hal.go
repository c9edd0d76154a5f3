package core

import "motionhub/trajectory"

// Actuator drives one axis toward the reference it is given each control
// tick. Implementations can use step pulses (GPIO, PIO), a coil driver or a
// closed-loop motor controller.
type Actuator interface {
	// Init prepares the hardware for servo oid.
	Init(oid uint8) error

	// Apply moves the output toward ref. It is called from the control
	// timer with interrupts disabled, so it must return quickly.
	Apply(now uint32, ref trajectory.Reference)

	// Stop halts the output immediately.
	Stop()

	GetName() string
}

// Encoder reports where the axis actually is. Actuators that count their
// own output (open-loop steppers) implement it too.
type Encoder interface {
	Position() trajectory.Position
	ResetPosition(p trajectory.Position)
}
