//go:build rp2040

package pio

import (
	"device/arm"
	"device/rp"
	"machine"
)

// SIOStepperBackend toggles step and direction through the single-cycle IO
// block. It is the fallback once every PIO state machine is taken.
type SIOStepperBackend struct {
	stepMask   uint32
	dirMask    uint32
	invertStep bool
	invertDir  bool
}

func NewSIOStepperBackend() *SIOStepperBackend {
	return &SIOStepperBackend{}
}

func (b *SIOStepperBackend) Init(stepPin, dirPin uint8, invertStep, invertDir bool) error {
	b.stepMask = 1 << stepPin
	b.dirMask = 1 << dirPin
	b.invertStep = invertStep
	b.invertDir = invertDir

	machine.Pin(stepPin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	machine.Pin(dirPin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	b.idle()
	b.SetDirection(false)
	return nil
}

func (b *SIOStepperBackend) idle() {
	if b.invertStep {
		rp.SIO.GPIO_OUT_SET.Set(b.stepMask)
	} else {
		rp.SIO.GPIO_OUT_CLR.Set(b.stepMask)
	}
}

// Step emits one pulse of about 100ns at 125MHz.
func (b *SIOStepperBackend) Step() {
	rp.SIO.GPIO_OUT_XOR.Set(b.stepMask)
	arm.Asm("nop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop")
	b.idle()
}

// SetDirection holds off for the 20ns dir-to-step setup of TMC drivers.
func (b *SIOStepperBackend) SetDirection(reverse bool) {
	if reverse != b.invertDir {
		rp.SIO.GPIO_OUT_SET.Set(b.dirMask)
	} else {
		rp.SIO.GPIO_OUT_CLR.Set(b.dirMask)
	}
	arm.Asm("nop\nnop\nnop")
}

func (b *SIOStepperBackend) Stop() {
	b.idle()
}

func (b *SIOStepperBackend) GetName() string {
	return "sio"
}
