package core

// StepperBackend generates step and direction signals for a StepActuator.
// Implementations can use GPIO, PIO, or other methods.
type StepperBackend interface {
	// Init claims the step and direction pins.
	Init(stepPin, dirPin uint8, invertStep, invertDir bool) error

	// Step emits a single step pulse. It is called from the step timer and
	// must handle pulse width timing internally.
	Step()

	// SetDirection sets the direction output; true is reverse. The backend
	// ensures the dir-to-step setup time.
	SetDirection(reverse bool)

	// Stop immediately halts stepping.
	Stop()

	GetName() string
}
