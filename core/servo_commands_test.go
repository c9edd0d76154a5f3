package core

import (
	"testing"

	"motionhub/protocol"
)

func setupCommands(t *testing.T) *recordingSender {
	t.Helper()
	resetCore(t, 1000)
	InitCommands()
	rec := &recordingSender{}
	SetGlobalTransport(rec)
	return rec
}

func dispatch(t *testing.T, name string, args func(output protocol.OutputBuffer)) {
	t.Helper()
	out := protocol.NewScratchOutput()
	if args != nil {
		args(out)
	}
	data := out.Result()
	if err := DispatchCommand(mustID(t, name), &data); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if len(data) != 0 {
		t.Errorf("%s left %d bytes undecoded", name, len(data))
	}
}

func configureServo(t *testing.T, rec *recordingSender, oid uint8) {
	t.Helper()
	cfg := protocol.ServoConfig{OID: oid, MaxRate: 1000, Accel: 2000, Decel: 2000}
	dispatch(t, "config_servo", cfg.Encode)
	if res := rec.lastResult(t); res.Status != protocol.StatusOK {
		t.Fatalf("config_servo status = %d", res.Status)
	}
}

func TestAngleCommandOverTheWire(t *testing.T) {
	rec := setupCommands(t)
	configureServo(t, rec, 1)

	req := protocol.AngleRequest{OID: 1, Target: 1000}
	dispatch(t, "trajectory_angle", req.Encode)
	if res := rec.lastResult(t); res.OID != 1 || res.Status != protocol.StatusOK {
		t.Fatalf("trajectory_angle result = %+v", res)
	}

	dispatch(t, "servo_get_trajectory", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, 1)
	})
	var times protocol.TrajectoryReport
	data := rec.find("servo_trajectory")[0]
	if err := times.Decode(&data); err != nil {
		t.Fatal(err)
	}
	if times.T3-times.T0 != 1500000 || times.W1 != 1000 {
		t.Errorf("servo_trajectory = %+v", times)
	}
	var pos protocol.PositionReport
	data = rec.find("servo_trajectory_position")[0]
	if err := pos.Decode(&data); err != nil {
		t.Fatal(err)
	}
	if pos.Count[0] != 0 || pos.Count[3] != 1000 || pos.Ext[3] != 0 {
		t.Errorf("servo_trajectory_position = %+v", pos)
	}

	advance(1600000)

	done := rec.find("servo_done")
	if len(done) != 1 {
		t.Fatalf("servo_done sent %d times", len(done))
	}
	var d protocol.DoneReport
	data = done[0]
	if err := d.Decode(&data); err != nil {
		t.Fatal(err)
	}
	if d.OID != 1 || d.Count != 1000 {
		t.Errorf("servo_done = %+v", d)
	}

	dispatch(t, "servo_get_reference", (&protocol.ServoClock{OID: 1}).Encode)
	var ref protocol.ReferenceReport
	data = rec.find("servo_reference")[0]
	if err := ref.Decode(&data); err != nil {
		t.Fatal(err)
	}
	if ref.Count != 1000 || ref.Rate != 0 || ref.Clock != GetTime() {
		t.Errorf("servo_reference = %+v", ref)
	}
}

func TestReferenceAtRequestedClock(t *testing.T) {
	rec := setupCommands(t)
	configureServo(t, rec, 0)

	dispatch(t, "trajectory_time", (&protocol.TimeRequest{OID: 0, DurationMs: 2000, Rate: 500}).Encode)
	start := GetTime()

	// Half way through the in-phase: 500 counts/s reached at 2000 counts/s^2
	// after 250 ms.
	dispatch(t, "servo_get_reference", (&protocol.ServoClock{OID: 0, Clock: start + 125000}).Encode)
	var ref protocol.ReferenceReport
	data := rec.find("servo_reference")[0]
	if err := ref.Decode(&data); err != nil {
		t.Fatal(err)
	}
	if ref.Rate != 250 || ref.Accel != 2000 {
		t.Errorf("reference mid-acceleration = %+v", ref)
	}
}

func TestMotionCommandStatuses(t *testing.T) {
	rec := setupCommands(t)

	dispatch(t, "trajectory_hold", (&protocol.ServoClock{OID: 7}).Encode)
	if res := rec.lastResult(t); res.OID != 7 || res.Status != protocol.StatusNotConfigured {
		t.Errorf("unknown oid result = %+v", res)
	}

	dispatch(t, "config_servo", (&protocol.ServoConfig{OID: 2, MaxRate: 100}).Encode)
	if res := rec.lastResult(t); res.Status != protocol.StatusInvalid {
		t.Errorf("config without accel result = %+v", res)
	}

	configureServo(t, rec, 2)

	dispatch(t, "trajectory_time", (&protocol.TimeRequest{OID: 2, DurationMs: 700000, Rate: 10}).Encode)
	if res := rec.lastResult(t); res.Status != protocol.StatusInvalid {
		t.Errorf("too long result = %+v", res)
	}

	future := protocol.TimeRequest{OID: 2, Clock: GetTime() + 10000, DurationMs: 1000, Rate: 500}
	dispatch(t, "trajectory_time", future.Encode)
	if res := rec.lastResult(t); res.Status != protocol.StatusScheduled {
		t.Errorf("future request result = %+v", res)
	}

	dispatch(t, "trajectory_stop", (&protocol.ServoClock{OID: 2}).Encode)
	if res := rec.lastResult(t); res.Status != protocol.StatusOK {
		t.Errorf("stop result = %+v", res)
	}

	dispatch(t, "emergency_stop", nil)
	dispatch(t, "trajectory_angle", (&protocol.AngleRequest{OID: 2, Target: 10}).Encode)
	if res := rec.lastResult(t); res.Status != protocol.StatusShutdown {
		t.Errorf("request after emergency stop = %+v", res)
	}
}

func TestDeferredRequestFailureIsReported(t *testing.T) {
	rec := setupCommands(t)
	configureServo(t, rec, 0)

	// Deferred requests are only solved at their start clock.
	s := GetServo(0)
	now := GetTime()
	if scheduled, _ := s.Submit(now, now+2000, Request{Kind: ReqTime, DurationMs: 700000, Rate: 10}); !scheduled {
		t.Fatal("request not deferred")
	}
	advance(2000)
	if res := rec.lastResult(t); res.OID != 0 || res.Status != protocol.StatusInvalid {
		t.Errorf("deferred failure result = %+v", res)
	}
}

func TestStretchAndSetPositionCommands(t *testing.T) {
	rec := setupCommands(t)
	configureServo(t, rec, 3)

	dispatch(t, "trajectory_angle", (&protocol.AngleRequest{OID: 3, Target: 1000}).Encode)
	dispatch(t, "trajectory_stretch", (&protocol.StretchRequest{OID: 3, T1: 600000, T2: 1200000, T3: 1800000}).Encode)
	if res := rec.lastResult(t); res.Status != protocol.StatusOK {
		t.Errorf("stretch result = %+v", res)
	}
	if tr := GetServo(3).Trajectory(); tr.Duration() != 1800000 {
		t.Errorf("stretched duration = %d", tr.Duration())
	}

	dispatch(t, "trajectory_stretch", (&protocol.StretchRequest{OID: 3, T1: 1, T2: 2, T3: 3}).Encode)
	if res := rec.lastResult(t); res.Status != protocol.StatusInvalid {
		t.Errorf("compressing stretch result = %+v", res)
	}

	dispatch(t, "servo_set_position", (&protocol.SetPosition{OID: 3, Count: -250}).Encode)
	if ref := GetServo(3).Reference(GetTime()); ref.Position.Count != -250 || ref.Rate != 0 {
		t.Errorf("reference after set position = %+v", ref)
	}
}

func TestIdentifyReturnsDictionary(t *testing.T) {
	rec := setupCommands(t)

	var raw []byte
	for offset := uint32(0); ; offset += 40 {
		before := len(rec.find("identify_response"))
		dispatch(t, "identify", func(output protocol.OutputBuffer) {
			protocol.EncodeVLQUint(output, offset)
			protocol.EncodeVLQUint(output, 40)
		})
		responses := rec.find("identify_response")
		if len(responses) != before+1 {
			t.Fatal("no identify_response")
		}
		data := responses[len(responses)-1]
		a := protocol.NewArgs(&data)
		if got := a.Uint(); got != offset {
			t.Fatalf("response offset %d, want %d", got, offset)
		}
		chunk, err := protocol.DecodeVLQBytes(&data)
		if err != nil {
			t.Fatal(err)
		}
		if len(chunk) == 0 {
			break
		}
		raw = append(raw, chunk...)
	}

	d := parseDictionary(t, raw)
	if _, ok := d.Commands["config_servo oid=%c max_rate=%u accel=%u decel=%u"]; !ok {
		t.Errorf("config_servo missing from %v", d.Commands)
	}
	if d.Config["CLOCK_FREQ"] != "1000000" || d.Config["SERVO_MAX"] != "16" {
		t.Errorf("config = %v", d.Config)
	}
}

func TestClockCommands(t *testing.T) {
	rec := setupCommands(t)
	SetTime(123456)

	dispatch(t, "get_clock", nil)
	data := rec.find("clock")[0]
	if v, _ := protocol.DecodeVLQUint(&data); v != 123456 {
		t.Errorf("clock = %d", v)
	}

	dispatch(t, "get_uptime", nil)
	data = rec.find("uptime")[0]
	a := protocol.NewArgs(&data)
	if high, low := a.Uint(), a.Uint(); high != 0 || low != 123456 {
		t.Errorf("uptime = %d:%d", high, low)
	}
}
