package core

import (
	"sync/atomic"

	"motionhub/protocol"
	"motionhub/trajectory"
)

var (
	isShutdown uint32 // atomic bool

	// resetPending is set by the reset command. The reset itself runs from
	// the main loop once the ACK has gone out.
	resetPending       uint32 // atomic bool
	globalResetHandler func()
)

// InitCommands registers the whole message table with its handlers and the
// firmware constants. Message IDs follow protocol.Messages, with
// identify_response and identify first as the host expects.
func InitCommands() {
	handlers := map[string]CommandHandler{
		"identify":       handleIdentify,
		"get_clock":      handleGetClock,
		"get_uptime":     handleGetUptime,
		"emergency_stop": handleEmergencyStop,
		"reset":          handleReset,
		"set_debug":      handleSetDebug,
	}
	for name, h := range servoHandlers() {
		handlers[name] = h
	}
	globalRegistry.RegisterTable(protocol.Messages, handlers)

	RegisterConstant("CLOCK_FREQ", uint32(TimerFreq))
	RegisterConstant("SERVO_MAX", MaxServos)
	RegisterConstant("CONTROL_PERIOD_US", ControlPeriodUs)
	RegisterConstant("RATE_MAX", trajectory.RateMax)
	RegisterConstant("ACCEL_MAX", trajectory.AccelMax)
	RegisterConstant("DURATION_MAX_MS", trajectory.DurationMaxMs)
}

// handleIdentify returns a chunk of the data dictionary.
func handleIdentify(data *[]byte) error {
	a := protocol.NewArgs(data)
	offset, count := a.Uint(), a.Byte()
	if err := a.Err(); err != nil {
		return err
	}
	chunk := GetGlobalDictionary().GetChunk(offset, count)
	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

func handleGetClock(data *[]byte) error {
	clock := GetTime()
	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})
	return nil
}

func handleGetUptime(data *[]byte) error {
	uptime := GetUptime()
	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(uptime>>32))
		protocol.EncodeVLQUint(output, uint32(uptime))
	})
	return nil
}

// handleEmergencyStop halts every servo and refuses motion until the host
// restarts the link.
func handleEmergencyStop(data *[]byte) error {
	TryShutdown()
	return nil
}

// TryShutdown stops all motion immediately.
func TryShutdown() {
	atomic.StoreUint32(&isShutdown, 1)
	ForEachServo(func(s *Servo) { s.Halt() })
	RecordTiming(EvtEmergency, 0, GetTime(), 0, 0)
	DebugPrintln("[core] emergency stop")
}

func IsShutdown() bool {
	return atomic.LoadUint32(&isShutdown) != 0
}

// ResetFirmwareState clears the shutdown state. Called when the host
// restarts its sequence.
func ResetFirmwareState() {
	atomic.StoreUint32(&isShutdown, 0)
}

func handleSetDebug(data *[]byte) error {
	enable, err := protocol.DecodeVLQBool(data)
	if err != nil {
		return err
	}
	SetDebugEnabled(enable)
	if !enable {
		DumpTimingRing()
	}
	return nil
}

// ResponseSender is the part of a transport used to send responses.
type ResponseSender interface {
	SendCommand(cmdID uint16, args func(output protocol.OutputBuffer))
}

var globalTransport ResponseSender

// SetGlobalTransport sets where responses go. With no transport set,
// responses are dropped.
func SetGlobalTransport(transport ResponseSender) {
	globalTransport = transport
}

// SendResponse sends a registered response message.
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		panic("response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

// SetResetHandler sets the platform reset routine.
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

func handleReset(_ *[]byte) error {
	atomic.StoreUint32(&resetPending, 1)
	return nil
}

// CheckPendingReset runs the reset handler if a reset was requested. Call
// it from the main loop after output has been flushed.
func CheckPendingReset() {
	if atomic.LoadUint32(&resetPending) != 0 && globalResetHandler != nil {
		globalResetHandler()
	}
}
