//go:build rp2040

package main

import (
	"machine"
	"time"

	"motionhub/core"
	"motionhub/standalone"
	"motionhub/standalone/config"
)

// blinkForever signals a fatal start-up error on the LED.
func blinkForever() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}

// RunStandaloneMode accepts G-code over USB and plans moves on the MCU.
func RunStandaloneMode() {
	cfg := config.DefaultConfig()
	core.SetActuatorFactory(standaloneActuators(cfg))

	manager, err := standalone.NewManagerWithConfig(cfg)
	if err != nil {
		blinkForever()
	}
	if err := manager.Initialize(); err != nil {
		blinkForever()
	}
	if err := manager.Start(); err != nil {
		blinkForever()
	}

	for {
		UpdateSystemTime()

		for USBAvailable() > 0 {
			b, err := USBRead()
			if err != nil {
				break
			}
			manager.ProcessByte(b)
		}

		core.ProcessTimers()
		manager.Poll()

		if out := manager.GetOutput(); len(out) > 0 {
			_, _ = USBWriteBytes(out)
		}

		time.Sleep(10 * time.Microsecond)
	}
}
