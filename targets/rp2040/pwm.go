//go:build rp2040

package main

import (
	"machine"

	"motionhub/core"
)

// pwmMax is the duty range exposed to PWMActuator. A 20ms servo cycle
// then resolves about 0.3us of pulse width.
const pwmMax = 0xFFFF

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup.
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// RP2040PWMDriver implements core.PWMDriver on the 8 PWM slices. GPIO N
// belongs to slice (N>>1)&7, channel A for even pins and B for odd.
type RP2040PWMDriver struct {
	// configured period per slice (ns)
	slices map[uint8]uint64
	// channel of each configured pin
	channels    map[uint32]uint8
	peripherals map[uint8]pwmPeripheral
}

func NewRP2040PWMDriver() *RP2040PWMDriver {
	return &RP2040PWMDriver{
		slices:      make(map[uint8]uint64),
		channels:    make(map[uint32]uint8),
		peripherals: make(map[uint8]pwmPeripheral),
	}
}

func (d *RP2040PWMDriver) GetMaxValue() uint32 {
	return pwmMax
}

func sliceOf(pin uint32) uint8 {
	return uint8((pin >> 1) & 0x7)
}

// ConfigureHardwarePWM sets the slice period to cycleTicks core timer
// ticks. Both pins of a slice share the period; the last call wins.
func (d *RP2040PWMDriver) ConfigureHardwarePWM(pin core.PWMPin, cycleTicks uint32) (uint32, error) {
	pinNum := uint32(pin)
	slice := sliceOf(pinNum)

	pwm, exists := d.peripherals[slice]
	if !exists {
		pwm = pwmSlice(slice)
		d.peripherals[slice] = pwm
	}

	period := uint64(cycleTicks) * (1000000000 / core.TimerFreq)
	if err := pwm.Configure(machine.PWMConfig{Period: period}); err != nil {
		return 0, err
	}
	channel, err := pwm.Channel(machine.Pin(pinNum))
	if err != nil {
		return 0, err
	}

	d.slices[slice] = period
	d.channels[pinNum] = channel
	return cycleTicks, nil
}

// SetDutyCycle scales value from 0..pwmMax onto the slice's counter top.
// Unconfigured pins are ignored.
func (d *RP2040PWMDriver) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	pinNum := uint32(pin)
	channel, exists := d.channels[pinNum]
	if !exists {
		return nil
	}
	pwm := d.peripherals[sliceOf(pinNum)]
	duty := uint64(value) * uint64(pwm.Top()) / pwmMax
	pwm.Set(channel, uint32(duty))
	return nil
}

// DisablePWM forgets the pin. TinyGo cannot hand a pin back to GPIO, so
// the output is parked low.
func (d *RP2040PWMDriver) DisablePWM(pin core.PWMPin) error {
	if err := d.SetDutyCycle(pin, 0); err != nil {
		return err
	}
	delete(d.channels, uint32(pin))
	return nil
}

func pwmSlice(slice uint8) pwmPeripheral {
	switch slice {
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	case 7:
		return machine.PWM7
	}
	return machine.PWM0
}
