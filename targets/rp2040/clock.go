//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"motionhub/core"
)

// The RP2040 TIMER block counts microseconds in 64 bits. The core keeps
// its own wrap count, so only the raw low word is read.
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// InitClock syncs the core clock and names the MCU in the dictionary. The
// timer already ticks at core.TimerFreq.
func InitClock() {
	core.RegisterConstant("MCU", "rp2040")
	UpdateSystemTime()
}

// GetHardwareTime returns the low word of the microsecond timer.
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// UpdateSystemTime copies the hardware timer into the core clock. Called
// from the main loop before timers run.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
