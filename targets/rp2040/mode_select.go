//go:build rp2040

package main

import "machine"

// modePin selects standalone G-code mode when strapped to ground at boot.
const modePin = machine.GPIO22

// ModeConfig is the boot mode.
type ModeConfig struct {
	Standalone bool
}

// GetMode reads the mode strap. The pin is pulled up, so an open strap
// keeps the host protocol.
func GetMode() ModeConfig {
	modePin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return ModeConfig{Standalone: !modePin.Get()}
}
