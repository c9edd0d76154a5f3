package core

import "sync/atomic"

// TimerFreq is the system clock rate. One tick is one microsecond, the time
// unit trajectories are solved in.
const TimerFreq = 1000000

var (
	systemTicks uint32 // atomic

	// uptime tracking, updated from the main loop
	uptimeHigh uint32
	uptimeLast uint32
)

// GetTime returns the current system time in ticks.
func GetTime() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// SetTime sets the system time. Targets call it from their hardware timer;
// tests use it to move time forward.
func SetTime(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// GetUptime returns the 64-bit uptime in ticks. The high word counts clock
// wraps seen since boot, so it must be polled at least once per wrap (about
// 71 minutes); ProcessTimers does that.
func GetUptime() uint64 {
	now := GetTime()
	if now < uptimeLast {
		uptimeHigh++
	}
	uptimeLast = now
	return uint64(uptimeHigh)<<32 | uint64(now)
}

// TimerFromMS converts milliseconds to ticks.
func TimerFromMS(ms uint32) uint32 {
	return ms * (TimerFreq / 1000)
}

// TimerInit resets uptime tracking. Call once at boot after the clock runs.
func TimerInit() {
	uptimeHigh = 0
	uptimeLast = GetTime()
}

// ProcessTimers runs every timer that is due.
func ProcessTimers() {
	GetUptime()
	currentTime = GetTime()
	TimerDispatch()
}
