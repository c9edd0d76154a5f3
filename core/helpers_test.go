package core

import (
	"sync/atomic"
	"testing"

	"motionhub/protocol"
	"motionhub/trajectory"
)

// fakeActuator records every reference it is asked to follow and counts
// its own position like an open-loop stepper.
type fakeActuator struct {
	oid     uint8
	applied []trajectory.Reference
	stopped int
	pos     trajectory.Position
}

func (f *fakeActuator) Init(oid uint8) error { f.oid = oid; return nil }

func (f *fakeActuator) Apply(now uint32, ref trajectory.Reference) {
	f.applied = append(f.applied, ref)
	f.pos = ref.Position
}

func (f *fakeActuator) Stop()           { f.stopped++ }
func (f *fakeActuator) GetName() string { return "fake" }

func (f *fakeActuator) Position() trajectory.Position       { return f.pos }
func (f *fakeActuator) ResetPosition(p trajectory.Position) { f.pos = p }

func (f *fakeActuator) last(t *testing.T) trajectory.Reference {
	t.Helper()
	if len(f.applied) == 0 {
		t.Fatal("actuator never applied a reference")
	}
	return f.applied[len(f.applied)-1]
}

type sentMessage struct {
	id      uint16
	payload []byte
}

// recordingSender stands in for the firmware transport.
type recordingSender struct {
	sent []sentMessage
}

func (r *recordingSender) SendCommand(id uint16, args func(output protocol.OutputBuffer)) {
	out := protocol.NewScratchOutput()
	if args != nil {
		args(out)
	}
	r.sent = append(r.sent, sentMessage{id: id, payload: append([]byte(nil), out.Result()...)})
}

// find returns the payloads of every message sent under name.
func (r *recordingSender) find(name string) [][]byte {
	id, _ := protocol.MessageID(name)
	var out [][]byte
	for _, m := range r.sent {
		if m.id == id {
			out = append(out, m.payload)
		}
	}
	return out
}

func (r *recordingSender) lastResult(t *testing.T) protocol.Result {
	t.Helper()
	results := r.find("trajectory_result")
	if len(results) == 0 {
		t.Fatal("no trajectory_result sent")
	}
	var res protocol.Result
	data := results[len(results)-1]
	if err := res.Decode(&data); err != nil {
		t.Fatal(err)
	}
	return res
}

// resetCore clears every piece of global firmware state and sets the clock
// to start.
func resetCore(t *testing.T, start uint32) *fakeActuator {
	t.Helper()
	resetTimers()
	ResetServos()
	SetGlobalTransport(nil)
	atomic.StoreUint32(&isShutdown, 0)
	ClearTimingRing()
	SetTime(start)
	TimerInit()

	act := &fakeActuator{}
	SetActuatorFactory(func(oid uint8) Actuator { return act })
	t.Cleanup(func() {
		SetActuatorFactory(nil)
		ResetServos()
		resetTimers()
		SetGlobalTransport(nil)
	})
	return act
}

// advance moves the clock forward in control-period steps, running timers
// after each step.
func advance(us uint32) {
	for us > 0 {
		step := uint32(ControlPeriodUs)
		if us < step {
			step = us
		}
		SetTime(GetTime() + step)
		ProcessTimers()
		us -= step
	}
}
