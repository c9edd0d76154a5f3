package core

// DebugWriter writes one debug line.
type DebugWriter func(string)

// TimingEvent is one entry of the post-mortem event ring.
type TimingEvent struct {
	EventType uint8
	OID       uint8
	Clock     uint32
	Value1    uint32 // meaning depends on EventType
	Value2    uint32
}

// Event type codes
const (
	EvtSolved    = 1 // new trajectory solved: v1=duration, v2=kind
	EvtExtended  = 2 // trajectory revised: v1=duration, v2=kind
	EvtStretched = 3 // trajectory retimed: v1=new duration
	EvtRejected  = 4 // request rejected: v1=request kind
	EvtScheduled = 5 // request deferred: v1=start clock
	EvtStarted   = 6 // deferred request installed
	EvtTickLate  = 7 // control tick ran late: v1=lateness (µs)
	EvtDone      = 8 // trajectory reached its end: v1=count
	EvtEmergency = 9 // emergency stop
)

const TimingRingSize = 32

var (
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled gates DebugPrintln; toggled by set_debug.
	debugEnabled bool

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  = true

	debugChan chan string
)

// SetDebugWriter sets where debug output goes (UART, USB, log).
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the goroutine that drains DebugAsync messages.
// Call it after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go func() {
		for msg := range debugChan {
			if debugPrintln != nil {
				debugPrintln(msg)
			}
		}
	}()
}

// DebugPrintln writes msg if debug output is enabled.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues msg without blocking. It is dropped if the queue is
// full or async output was never started.
func DebugAsync(msg string) {
	if debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordTiming stores an event in the ring. Safe to call from timer
// handlers.
func RecordTiming(eventType, oid uint8, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		OID:       oid,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
}

// TimingEvents returns the recorded events, oldest first.
func TimingEvents() []TimingEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	var out []TimingEvent
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(timingRingHead+i)%TimingRingSize]
		if evt.EventType != 0 {
			out = append(out, evt)
		}
	}
	return out
}

func eventName(t uint8) string {
	switch t {
	case EvtSolved:
		return "SOLVED"
	case EvtExtended:
		return "EXTENDED"
	case EvtStretched:
		return "STRETCHED"
	case EvtRejected:
		return "REJECTED"
	case EvtScheduled:
		return "SCHEDULED"
	case EvtStarted:
		return "STARTED"
	case EvtTickLate:
		return "TICK_LATE!"
	case EvtDone:
		return "DONE"
	case EvtEmergency:
		return "ESTOP"
	}
	return "UNKNOWN"
}

// DumpTimingRing writes the ring through the debug writer, regardless of
// the debug enable flag.
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}
	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		line := append([]byte("[TIMING] "), eventName(evt.EventType)...)
		line = append(line, " oid="...)
		line = appendUint(line, uint64(evt.OID))
		line = append(line, " clock="...)
		line = appendUint(line, uint64(evt.Clock))
		line = append(line, " v1="...)
		line = appendInt(line, int64(int32(evt.Value1)))
		line = append(line, " v2="...)
		line = appendInt(line, int64(int32(evt.Value2)))
		debugPrintln(string(line))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

func ClearTimingRing() {
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
