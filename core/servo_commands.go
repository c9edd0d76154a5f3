package core

import (
	"motionhub/protocol"
	"motionhub/trajectory"
)

// servoHandlers returns the handlers of the servo and trajectory commands.
// Every motion command answers with trajectory_result; only malformed
// arguments make a handler fail.
func servoHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"config_servo":         handleConfigServo,
		"servo_set_position":   handleSetPosition,
		"trajectory_angle":     handleTrajectoryAngle,
		"trajectory_time":      handleTrajectoryTime,
		"trajectory_hold":      handleTrajectoryHold,
		"trajectory_stop":      handleTrajectoryStop,
		"trajectory_stretch":   handleTrajectoryStretch,
		"servo_get_reference":  handleGetReference,
		"servo_get_trajectory": handleGetTrajectory,
	}
}

func statusFor(err error) uint8 {
	if err != nil {
		return protocol.StatusInvalid
	}
	return protocol.StatusOK
}

func reportResult(oid, status uint8) {
	res := protocol.Result{OID: oid, Status: status}
	SendResponse("trajectory_result", res.Encode)
}

// reportDone is the default Servo.OnDone.
func reportDone(s *Servo, now uint32) {
	done := protocol.DoneReport{OID: s.OID, Clock: now, Count: s.lastRef.Position.Count}
	SendResponse("servo_done", done.Encode)
}

func handleConfigServo(data *[]byte) error {
	var m protocol.ServoConfig
	if err := m.Decode(data); err != nil {
		return err
	}
	_, err := NewServo(m.OID, Limits{
		MaxRate: int32(m.MaxRate),
		Accel:   int32(m.Accel),
		Decel:   int32(m.Decel),
	})
	reportResult(m.OID, statusFor(err))
	return nil
}

func handleSetPosition(data *[]byte) error {
	var m protocol.SetPosition
	if err := m.Decode(data); err != nil {
		return err
	}
	s := GetServo(m.OID)
	if s == nil {
		reportResult(m.OID, protocol.StatusNotConfigured)
		return nil
	}
	s.SetPosition(GetTime(), m.Count)
	reportResult(m.OID, protocol.StatusOK)
	return nil
}

// submitRequest runs r on servo oid and reports the outcome.
func submitRequest(oid uint8, clock uint32, r Request) {
	s := GetServo(oid)
	switch {
	case s == nil:
		reportResult(oid, protocol.StatusNotConfigured)
		return
	case IsShutdown():
		reportResult(oid, protocol.StatusShutdown)
		return
	}
	scheduled, err := s.Submit(GetTime(), clock, r)
	if scheduled {
		reportResult(oid, protocol.StatusScheduled)
		return
	}
	reportResult(oid, statusFor(err))
}

func handleTrajectoryAngle(data *[]byte) error {
	var m protocol.AngleRequest
	if err := m.Decode(data); err != nil {
		return err
	}
	submitRequest(m.OID, m.Clock, Request{Kind: ReqAngle, Target: m.Target, Rate: m.Rate, Continue: m.Continue})
	return nil
}

func handleTrajectoryTime(data *[]byte) error {
	var m protocol.TimeRequest
	if err := m.Decode(data); err != nil {
		return err
	}
	submitRequest(m.OID, m.Clock, Request{Kind: ReqTime, DurationMs: m.DurationMs, Rate: m.Rate, Continue: m.Continue})
	return nil
}

func handleTrajectoryHold(data *[]byte) error {
	var m protocol.ServoClock
	if err := m.Decode(data); err != nil {
		return err
	}
	submitRequest(m.OID, m.Clock, Request{Kind: ReqHold})
	return nil
}

func handleTrajectoryStop(data *[]byte) error {
	var m protocol.ServoClock
	if err := m.Decode(data); err != nil {
		return err
	}
	submitRequest(m.OID, m.Clock, Request{Kind: ReqStop})
	return nil
}

func handleTrajectoryStretch(data *[]byte) error {
	var m protocol.StretchRequest
	if err := m.Decode(data); err != nil {
		return err
	}
	s := GetServo(m.OID)
	if s == nil {
		reportResult(m.OID, protocol.StatusNotConfigured)
		return nil
	}
	reportResult(m.OID, statusFor(s.Stretch(m.T1, m.T2, m.T3)))
	return nil
}

// handleGetReference reports the reference at clock, or now for clock 0.
func handleGetReference(data *[]byte) error {
	var m protocol.ServoClock
	if err := m.Decode(data); err != nil {
		return err
	}
	s := GetServo(m.OID)
	if s == nil {
		reportResult(m.OID, protocol.StatusNotConfigured)
		return nil
	}
	clock := m.Clock
	if clock == 0 {
		clock = GetTime()
	}
	ref := s.Reference(clock)
	report := protocol.ReferenceReport{
		OID:   m.OID,
		Clock: clock,
		Count: ref.Position.Count,
		Ext:   uint32(ref.Position.Ext),
		Rate:  ref.Rate,
		Accel: ref.Acceleration,
	}
	SendResponse("servo_reference", report.Encode)
	return nil
}

// handleGetTrajectory reports the live trajectory in two messages, times
// and rates first, then the boundary positions.
func handleGetTrajectory(data *[]byte) error {
	a := protocol.NewArgs(data)
	oid := a.Byte()
	if err := a.Err(); err != nil {
		return err
	}
	s := GetServo(oid)
	if s == nil {
		reportResult(oid, protocol.StatusNotConfigured)
		return nil
	}
	tr := s.Trajectory()
	times := protocol.TrajectoryReport{
		OID: oid,
		T0:  uint32(tr.T0), T1: uint32(tr.T1), T2: uint32(tr.T2), T3: uint32(tr.T3),
		W0: tr.W0, W1: tr.W1, W3: tr.W3,
		A0: tr.A0, A2: tr.A2,
	}
	SendResponse("servo_trajectory", times.Encode)

	pos := protocol.PositionReport{OID: oid}
	for i, p := range [...]trajectory.Position{tr.Th0, tr.Th1, tr.Th2, tr.Th3} {
		pos.Count[i], pos.Ext[i] = p.Count, uint32(p.Ext)
	}
	SendResponse("servo_trajectory_position", pos.Encode)
	return nil
}
