package core

import (
	"errors"

	"motionhub/trajectory"
)

var errPulseRange = errors.New("pwm: pulse range outside cycle")

// PWMActuator drives a hobby servo. The reference position is mapped
// linearly onto the pulse width every tick; the servo's own loop does the
// rest. It has no position feedback.
type PWMActuator struct {
	Pin     PWMPin
	CycleUs uint32 // PWM period, 20000 for standard servos

	CenterUs uint32 // pulse at count zero
	MinUs    uint32
	MaxUs    uint32

	// NsPerCount is the pulse width change per count.
	NsPerCount int32

	driver     PWMDriver
	cycleTicks uint32
	pulseNs    uint32
}

// NewPWMActuator returns an actuator with the usual 50 Hz, 1.5 ms centre
// timing on pin.
func NewPWMActuator(d PWMDriver, pin PWMPin, nsPerCount int32) *PWMActuator {
	return &PWMActuator{
		Pin:        pin,
		CycleUs:    20000,
		CenterUs:   1500,
		MinUs:      500,
		MaxUs:      2500,
		NsPerCount: nsPerCount,
		driver:     d,
	}
}

func (a *PWMActuator) Init(oid uint8) error {
	if a.driver == nil {
		a.driver = MustPWM()
	}
	if a.MinUs > a.CenterUs || a.CenterUs > a.MaxUs || a.MaxUs >= a.CycleUs {
		return errPulseRange
	}
	cycle, err := a.driver.ConfigureHardwarePWM(a.Pin, a.CycleUs*(TimerFreq/1000000))
	if err != nil {
		return err
	}
	a.cycleTicks = cycle
	a.setPulse(a.CenterUs * 1000)
	return nil
}

// Apply sets the pulse for ref's position.
func (a *PWMActuator) Apply(now uint32, ref trajectory.Reference) {
	ns := int64(a.CenterUs)*1000 + ref.Position.Milli()*int64(a.NsPerCount)/1000
	switch {
	case ns < int64(a.MinUs)*1000:
		ns = int64(a.MinUs) * 1000
	case ns > int64(a.MaxUs)*1000:
		ns = int64(a.MaxUs) * 1000
	}
	a.setPulse(uint32(ns))
}

func (a *PWMActuator) setPulse(ns uint32) {
	a.pulseNs = ns
	ticksNs := uint64(a.cycleTicks) * (1000000000 / TimerFreq)
	if ticksNs == 0 {
		return
	}
	duty := uint64(ns) * uint64(a.driver.GetMaxValue()) / ticksNs
	_ = a.driver.SetDutyCycle(a.Pin, PWMValue(duty))
}

// Stop releases the servo by turning the output off.
func (a *PWMActuator) Stop() {
	_ = a.driver.SetDutyCycle(a.Pin, 0)
}

func (a *PWMActuator) GetName() string {
	return "pwm"
}

// PulseNs returns the pulse width last set.
func (a *PWMActuator) PulseNs() uint32 {
	return a.pulseNs
}
