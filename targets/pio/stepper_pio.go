//go:build rp2040

package pio

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

var errInvertedStep = errors.New("pio: inverted step output not supported")

// Command word consumed by the step program:
//
//	Bits 0-15:  pulse count minus one (X is tested after each pulse)
//	Bits 16-23: delay cycles after each pulse
//	Bit 24:     direction (1 = reverse)
func buildStepperProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestX, 16).Encode(),   // 1: out x, 16
		asm.Out(rp2pio.OutDestY, 8).Encode(),    // 2: out y, 8
		asm.Out(rp2pio.OutDestPins, 1).Encode(), // 3: out pins, 1
		// step_loop:
		asm.Set(rp2pio.SetDestPins, 1).Delay(7).Encode(), // 4: set pins, 1 [7]
		asm.Set(rp2pio.SetDestPins, 0).Encode(),          // 5: set pins, 0
		// delay_loop:
		asm.Jmp(6, rp2pio.JmpYNZeroDec).Encode(), // 6: jmp y--, 6
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(), // 7: jmp x--, 4
		// .wrap
	}
}

// the jump targets above are absolute
const stepperPIOOrigin = 0

// programLoaded tracks which PIO blocks hold the step program.
var programLoaded [2]bool

// PIOStepperBackend drives step and direction from a PIO state machine, so
// pulse width does not depend on timer jitter.
type PIOStepperBackend struct {
	pio       *rp2pio.PIO
	sm        rp2pio.StateMachine
	stepPin   machine.Pin
	dirPin    machine.Pin
	dirBit    uint32
	invertDir bool
	pioNum    uint8
	smNum     uint8
}

// NewPIOStepperBackend returns a backend on state machine smNum of PIO
// block pioNum.
func NewPIOStepperBackend(pioNum, smNum uint8) *PIOStepperBackend {
	pioHW := rp2pio.PIO0
	if pioNum != 0 {
		pioHW = rp2pio.PIO1
	}
	return &PIOStepperBackend{
		pio:    pioHW,
		sm:     pioHW.StateMachine(smNum),
		pioNum: pioNum,
		smNum:  smNum,
	}
}

func (b *PIOStepperBackend) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	if invertStep {
		return errInvertedStep
	}
	b.stepPin = machine.Pin(stepPin)
	b.dirPin = machine.Pin(dirPin)
	b.invertDir = invertDir

	b.sm.TryClaim()

	program := buildStepperProgram()
	if !programLoaded[b.pioNum] {
		if _, err := b.pio.AddProgram(program, stepperPIOOrigin); err != nil {
			return err
		}
		programLoaded[b.pioNum] = true
	}
	offset := uint8(stepperPIOOrigin)

	b.stepPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	b.dirPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(b.stepPin, 1)
	cfg.SetOutPins(b.dirPin, 1)
	// shift right, explicit pull
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1000, 0)

	// pin directions only stick after Init
	b.sm.Init(offset, cfg)
	b.sm.SetPindirsConsecutive(b.stepPin, 1, true)
	b.sm.SetPindirsConsecutive(b.dirPin, 1, true)
	b.sm.SetPinsConsecutive(b.stepPin, 1, false)
	b.sm.SetPinsConsecutive(b.dirPin, 1, invertDir)
	b.SetDirection(false)

	b.sm.SetEnabled(true)
	return nil
}

// Step queues one pulse on the current direction.
func (b *PIOStepperBackend) Step() {
	cmd := uint32(1)<<16 | b.dirBit
	for b.sm.IsTxFIFOFull() {
	}
	b.sm.TxPut(cmd)
}

func (b *PIOStepperBackend) SetDirection(reverse bool) {
	b.dirBit = 0
	if reverse != b.invertDir {
		b.dirBit = 1 << 24
	}
}

// Stop drops queued pulses and restarts the program.
func (b *PIOStepperBackend) Stop() {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Restart()
	b.sm.SetEnabled(true)
}

func (b *PIOStepperBackend) GetName() string {
	return "pio"
}
