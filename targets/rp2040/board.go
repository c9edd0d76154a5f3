//go:build rp2040

package main

import (
	"motionhub/core"
	"motionhub/standalone/config"
	"motionhub/targets/pio"
)

type outputKind uint8

const (
	outputStep outputKind = iota
	outputServo
)

// boardOutput is what sits behind one oid on this board.
type boardOutput struct {
	kind outputKind
	pins pio.StepPins
	// servo signal pin and pulse change per count
	pwmPin     core.PWMPin
	nsPerCount int32
}

// boardOutputs lists the outputs by oid. Oids past the table get no
// actuator and only run their reference.
var boardOutputs = []boardOutput{
	{kind: outputStep, pins: pio.StepPins{Step: 2, Dir: 3}},
	{kind: outputStep, pins: pio.StepPins{Step: 4, Dir: 5}},
	{kind: outputStep, pins: pio.StepPins{Step: 6, Dir: 7}},
	{kind: outputStep, pins: pio.StepPins{Step: 8, Dir: 9}},
	{kind: outputServo, pwmPin: 14, nsPerCount: 1000},
	{kind: outputServo, pwmPin: 15, nsPerCount: 1000},
}

// boardActuator builds the actuator of oid from boardOutputs.
func boardActuator(oid uint8) core.Actuator {
	if int(oid) >= len(boardOutputs) {
		return nil
	}
	out := boardOutputs[oid]
	switch out.kind {
	case outputServo:
		return core.NewPWMActuator(core.MustPWM(), out.pwmPin, out.nsPerCount)
	default:
		return pio.NewStepActuator(out.pins)
	}
}

// standaloneActuators uses the step pins of each configured axis instead
// of the board table.
func standaloneActuators(cfg *config.MachineConfig) func(oid uint8) core.Actuator {
	pins := make(map[uint8]pio.StepPins, len(cfg.Axes))
	for _, axis := range cfg.Axes {
		pins[axis.OID] = pio.StepPins{
			Step:       axis.StepPin,
			Dir:        axis.DirPin,
			InvertStep: axis.InvertStep,
			InvertDir:  axis.InvertDir,
		}
	}
	return func(oid uint8) core.Actuator {
		p, ok := pins[oid]
		if !ok {
			return nil
		}
		return pio.NewStepActuator(p)
	}
}
