package core

import (
	"errors"
	"testing"

	"motionhub/trajectory"
)

var testLimits = Limits{MaxRate: 1000, Accel: 2000, Decel: 2000}

func newTestServo(t *testing.T) *Servo {
	t.Helper()
	s, err := NewServo(0, testLimits)
	if err != nil {
		t.Fatalf("NewServo: %v", err)
	}
	return s
}

func TestNewServoValidates(t *testing.T) {
	resetCore(t, 1000)

	if _, err := NewServo(MaxServos, testLimits); err != errServoOID {
		t.Errorf("oid out of range: err = %v", err)
	}
	if _, err := NewServo(0, Limits{MaxRate: 1000, Accel: 0, Decel: 10}); err != errServoLimits {
		t.Errorf("zero accel: err = %v", err)
	}

	s := newTestServo(t)
	again, err := NewServo(0, Limits{MaxRate: 50, Accel: 10, Decel: 10})
	if err != nil || again != s || s.Limits.MaxRate != 50 {
		t.Errorf("reconfigure: %v, same=%v, limits=%+v", err, again == s, s.Limits)
	}
	if GetServo(0) != s || GetServo(1) != nil || GetServo(200) != nil {
		t.Errorf("GetServo lookup wrong")
	}
}

func TestServoRunAngleReachesTarget(t *testing.T) {
	act := resetCore(t, 1000)
	s := newTestServo(t)
	dones := 0
	s.OnDone = func(s *Servo, now uint32) { dones++ }

	if err := s.RunAngle(GetTime(), 1000, 0, false); err != nil {
		t.Fatalf("RunAngle: %v", err)
	}
	tr := s.Trajectory()
	if tr.Duration() != 1500000 {
		t.Errorf("duration = %d µs, want 1500000", tr.Duration())
	}

	advance(1600000)

	last := act.last(t)
	if last.Position != trajectory.Counts(1000) || last.Rate != 0 {
		t.Errorf("final reference = %+v", last)
	}
	if dones != 1 {
		t.Errorf("done reported %d times, want 1", dones)
	}
	if !s.Done(GetTime()) {
		t.Error("Done() false after the move")
	}

	// 1000 counts/s over a 1 ms tick moves one count.
	for i := 1; i < len(act.applied); i++ {
		step := act.applied[i].Position.Sub(act.applied[i-1].Position)
		if step < 0 || step > 1001 {
			t.Fatalf("tick %d moved %d millicounts", i, step)
		}
	}
}

func TestServoExtendsWhileCruising(t *testing.T) {
	resetCore(t, 1000)
	s := newTestServo(t)

	if err := s.RunAngle(GetTime(), 10000, 0, false); err != nil {
		t.Fatal(err)
	}
	first := s.Trajectory()
	advance(2000000)

	now := GetTime()
	before := s.Reference(now)
	if err := s.RunAngle(now, 12000, 0, false); err != nil {
		t.Fatal(err)
	}
	tr := s.Trajectory()
	if tr.T0 != first.T0 || tr.T1 != first.T1 {
		t.Errorf("head of the trajectory changed: %+v", tr)
	}
	if tr.Th3 != trajectory.Counts(12000) {
		t.Errorf("Th3 = %+v", tr.Th3)
	}
	after := s.Reference(now)
	if d := after.Position.Sub(before.Position); d > 1000 || d < -1000 || after.Rate != before.Rate {
		t.Errorf("splice jumped from %+v to %+v", before, after)
	}
}

func TestServoStopBrakes(t *testing.T) {
	act := resetCore(t, 1000)
	s := newTestServo(t)

	if err := s.Run(GetTime(), 1000); err != nil {
		t.Fatal(err)
	}
	advance(1000000)

	now := GetTime()
	ref := s.Reference(now)
	if ref.Rate != 1000 {
		t.Fatalf("rate before stop = %d", ref.Rate)
	}
	if err := s.Stop(now); err != nil {
		t.Fatal(err)
	}
	tr := s.Trajectory()
	if tr.Continuing() || tr.T3-int32(now) != 500000 {
		t.Errorf("stop profile = %+v", tr)
	}
	if got := tr.Th3.Sub(ref.Position); got != 250000 {
		t.Errorf("braking distance = %d millicounts, want 250000", got)
	}

	advance(600000)
	if !s.Done(GetTime()) || act.last(t).Rate != 0 {
		t.Errorf("not at rest after stop: %+v", act.last(t))
	}
}

func TestServoStopAtRestHolds(t *testing.T) {
	resetCore(t, 1000)
	s := newTestServo(t)

	if err := s.Stop(GetTime()); err != nil {
		t.Fatal(err)
	}
	if tr := s.Trajectory(); !tr.IsConstant() {
		t.Errorf("stop at rest = %+v", tr)
	}
}

func TestServoHold(t *testing.T) {
	resetCore(t, 1000)
	s := newTestServo(t)

	if err := s.RunAngle(GetTime(), 10000, 0, false); err != nil {
		t.Fatal(err)
	}
	advance(1000000)

	now := GetTime()
	ref := s.Reference(now)
	if err := s.Hold(now); err != nil {
		t.Fatal(err)
	}
	tr := s.Trajectory()
	if !tr.IsConstant() || tr.Th0 != ref.Position {
		t.Errorf("hold = %+v, reference was %+v", tr, ref)
	}
}

func TestServoScheduledRequest(t *testing.T) {
	resetCore(t, 5000)
	s := newTestServo(t)

	now := GetTime()
	scheduled, err := s.Submit(now, now+5000, Request{Kind: ReqAngle, Target: 100})
	if err != nil || !scheduled {
		t.Fatalf("Submit = %v, %v", scheduled, err)
	}

	advance(4000)
	if tr := s.Trajectory(); !tr.IsConstant() {
		t.Fatalf("request started early: %+v", tr)
	}

	advance(1000)
	tr := s.Trajectory()
	if tr.IsConstant() || tr.T0 != int32(now+5000) {
		t.Errorf("deferred start = %+v", tr)
	}
	if !s.ControlTimer.Scheduled() {
		t.Error("control timer not running")
	}
}

func TestServoImmediateRequestDropsPending(t *testing.T) {
	resetCore(t, 5000)
	s := newTestServo(t)

	now := GetTime()
	s.Submit(now, now+5000, Request{Kind: ReqAngle, Target: 100})
	if err := s.Hold(now); err != nil {
		t.Fatal(err)
	}
	if s.startTimer.Scheduled() {
		t.Error("pending request survived an immediate one")
	}
	advance(10000)
	if tr := s.Trajectory(); !tr.IsConstant() {
		t.Errorf("dropped request ran: %+v", tr)
	}
}

func TestServoAcrossClockWrap(t *testing.T) {
	act := resetCore(t, 0xFFFF0000)
	s := newTestServo(t)

	if err := s.RunAngle(GetTime(), -1000, 0, false); err != nil {
		t.Fatal(err)
	}
	advance(1600000)

	if last := act.last(t); last.Position != trajectory.Counts(-1000) || last.Rate != 0 {
		t.Errorf("final reference after wrap = %+v", last)
	}
}

func TestServoRejectsInvalid(t *testing.T) {
	resetCore(t, 1000)
	s := newTestServo(t)
	before := s.Trajectory()

	err := s.RunTime(GetTime(), trajectory.DurationMaxMs+1, 100, false)
	if !errors.Is(err, trajectory.ErrInvalidArgument) {
		t.Errorf("err = %v, want invalid argument", err)
	}
	if s.Trajectory() != before {
		t.Error("rejected request changed the trajectory")
	}
	if _, err := s.Plan(GetTime(), Request{Kind: RequestKind(9)}); err != errUnknownKind {
		t.Errorf("unknown kind: err = %v", err)
	}
}

func TestServoRebasesLongRun(t *testing.T) {
	resetCore(t, 1000)
	s := newTestServo(t)

	if err := s.Run(GetTime(), 100); err != nil {
		t.Fatal(err)
	}
	old := s.Trajectory()

	// One late tick well past the end of the timed part.
	SetTime(GetTime() + 1700000000)
	ProcessTimers()

	now := int32(GetTime())
	tr := s.Trajectory()
	if tr.T0 != now || tr.W1 != 100 || tr.W3 != 100 {
		t.Fatalf("rebased trajectory = %+v", tr)
	}
	if want := old.Reference(now).Position; tr.Th0 != want {
		t.Errorf("rebased from %+v, want %+v", tr.Th0, want)
	}
}

func TestServoSetPosition(t *testing.T) {
	act := resetCore(t, 1000)
	s := newTestServo(t)

	s.SetPosition(GetTime(), 500)
	if act.pos != trajectory.Counts(500) {
		t.Errorf("encoder position = %+v", act.pos)
	}
	if ref := s.Reference(GetTime() + 1000); ref.Position != trajectory.Counts(500) || ref.Rate != 0 {
		t.Errorf("reference = %+v", ref)
	}
}

func TestServoStretch(t *testing.T) {
	resetCore(t, 1000)
	s := newTestServo(t)

	if err := s.RunAngle(GetTime(), 1000, 0, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Stretch(600000, 1200000, 1800000); err != nil {
		t.Fatalf("Stretch: %v", err)
	}
	tr := s.Trajectory()
	if tr.Duration() != 1800000 || tr.Th3 != trajectory.Counts(1000) {
		t.Errorf("stretched = %+v", tr)
	}

	if err := s.Stretch(100000, 200000, 300000); !errors.Is(err, trajectory.ErrInvalidArgument) {
		t.Errorf("compression: err = %v", err)
	}
	if s.Trajectory() != tr {
		t.Error("rejected stretch changed the trajectory")
	}
}

func TestEmergencyStopHaltsServos(t *testing.T) {
	act := resetCore(t, 1000)
	s := newTestServo(t)

	if err := s.RunAngle(GetTime(), 5000, 0, false); err != nil {
		t.Fatal(err)
	}
	advance(100000)
	stops := act.stopped

	TryShutdown()
	if !IsShutdown() {
		t.Error("not shut down")
	}
	if s.ControlTimer.Scheduled() {
		t.Error("control timer still running")
	}
	if act.stopped != stops+1 {
		t.Errorf("actuator stopped %d times", act.stopped-stops)
	}
	if tr := s.Trajectory(); !tr.IsConstant() || tr.Th0 != act.pos {
		t.Errorf("halted trajectory = %+v, actuator at %+v", tr, act.pos)
	}

	ResetFirmwareState()
	if IsShutdown() {
		t.Error("still shut down after reset")
	}
}

func TestServoRecordsTiming(t *testing.T) {
	resetCore(t, 1000)
	s := newTestServo(t)

	s.RunAngle(GetTime(), 1000, 0, false)
	s.RunTime(GetTime(), trajectory.DurationMaxMs+1, 0, false)

	var kinds []uint8
	for _, evt := range TimingEvents() {
		kinds = append(kinds, evt.EventType)
	}
	if len(kinds) != 2 || kinds[0] != EvtSolved || kinds[1] != EvtRejected {
		t.Errorf("timing events = %v", kinds)
	}
}
