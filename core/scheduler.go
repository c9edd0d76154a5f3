package core

// Timer is a scheduled event. Handler runs with interrupts disabled and
// returns SF_RESCHEDULE to run again at the (updated) WakeTime.
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer

	queued bool
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var (
	timerList   *Timer
	currentTime uint32
)

// timerBefore compares clock values across the 32-bit wrap.
func timerBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// ScheduleTimer adds t to the schedule, moving it if it is already queued.
func ScheduleTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if t.queued {
		removeTimer(t)
	}
	insertTimer(t)
}

// CancelTimer removes t from the schedule. It is a no-op for a timer that
// is not queued.
func CancelTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if t.queued {
		removeTimer(t)
	}
}

// Scheduled reports whether t is queued.
func (t *Timer) Scheduled() bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return t.queued
}

// insertTimer keeps the list sorted by WakeTime. Timers with equal wake
// times run in the order they were added.
func insertTimer(t *Timer) {
	t.queued = true
	if timerList == nil || timerBefore(t.WakeTime, timerList.WakeTime) {
		t.Next = timerList
		timerList = t
		return
	}

	current := timerList
	for current.Next != nil && !timerBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

func removeTimer(t *Timer) {
	for p := &timerList; *p != nil; p = &(*p).Next {
		if *p == t {
			*p = t.Next
			break
		}
	}
	t.Next = nil
	t.queued = false
}

// TimerDispatch runs the timers due at currentTime.
func TimerDispatch() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for timerList != nil && !timerBefore(currentTime, timerList.WakeTime) {
		timer := timerList
		timerList = timer.Next
		timer.Next = nil
		timer.queued = false

		if timer.Handler(timer) == SF_RESCHEDULE {
			insertTimer(timer)
		}
	}
}

// resetTimers drops every queued timer.
func resetTimers() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for timerList != nil {
		t := timerList
		timerList = t.Next
		t.Next = nil
		t.queued = false
	}
}
