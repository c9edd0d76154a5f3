//go:build rp2040

// Package pio builds step actuators on the RP2040's PIO blocks.
package pio

import (
	"motionhub/core"
)

// pioAllocations tracks claimed state machines, [pio block][state machine].
var pioAllocations = [2][4]bool{}

// StepPins describes one step/dir output.
type StepPins struct {
	Step, Dir             uint8
	InvertStep, InvertDir bool
}

// NewStepActuator returns a step actuator on the pins, backed by a free PIO
// state machine or by SIO when none is left or the step output is inverted.
func NewStepActuator(p StepPins) *core.StepActuator {
	var backend core.StepperBackend
	if !p.InvertStep {
		if pioNum, smNum, ok := allocatePIO(); ok {
			backend = NewPIOStepperBackend(pioNum, smNum)
		}
	}
	if backend == nil {
		backend = NewSIOStepperBackend()
	}
	return core.NewStepActuator(backend, p.Step, p.Dir, p.InvertStep, p.InvertDir)
}

// allocatePIO claims the first free state machine.
func allocatePIO() (uint8, uint8, bool) {
	for pioNum := range pioAllocations {
		for smNum, used := range pioAllocations[pioNum] {
			if !used {
				pioAllocations[pioNum][smNum] = true
				return uint8(pioNum), uint8(smNum), true
			}
		}
	}
	return 0, 0, false
}

// ResetPIOAllocations frees every state machine.
func ResetPIOAllocations() {
	pioAllocations = [2][4]bool{}
}
