package mcu

import (
	"fmt"

	"github.com/pkg/errors"

	"motionhub/protocol"
)

// StatusError is a trajectory_result other than OK or Scheduled.
type StatusError struct {
	OID    uint8
	Status uint8
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("servo %d: %s", e.OID, StatusText(e.Status))
}

// StatusText names a trajectory_result status.
func StatusText(status uint8) string {
	switch status {
	case protocol.StatusOK:
		return "ok"
	case protocol.StatusInvalid:
		return "invalid argument"
	case protocol.StatusNotConfigured:
		return "not configured"
	case protocol.StatusScheduled:
		return "scheduled"
	case protocol.StatusShutdown:
		return "shut down"
	}
	return fmt.Sprintf("status %d", status)
}

// Trajectory is a servo's live trajectory as reported by the firmware.
type Trajectory struct {
	protocol.TrajectoryReport
	Positions protocol.PositionReport
}

// command sends a motion command and waits for its trajectory_result.
// Scheduled counts as success and is returned as true.
func (m *MCU) command(name string, oid uint8, encode func(protocol.OutputBuffer)) (bool, error) {
	resp, err := m.request(name, encode, int(oid), "trajectory_result")
	if err != nil {
		return false, err
	}
	var res protocol.Result
	if err := res.Decode(&resp.payload); err != nil {
		return false, errors.Wrap(err, "decode trajectory_result")
	}
	switch res.Status {
	case protocol.StatusOK:
		return false, nil
	case protocol.StatusScheduled:
		return true, nil
	}
	return false, &StatusError{OID: res.OID, Status: res.Status}
}

// ConfigServo creates or reconfigures a servo.
func (m *MCU) ConfigServo(cfg protocol.ServoConfig) error {
	_, err := m.command("config_servo", cfg.OID, cfg.Encode)
	return err
}

// SetPosition redefines the resting position of a servo.
func (m *MCU) SetPosition(oid uint8, count int32) error {
	msg := protocol.SetPosition{OID: oid, Count: count}
	_, err := m.command("servo_set_position", oid, msg.Encode)
	return err
}

// Angle runs a servo to an absolute target. The bool reports a request
// deferred to a future clock.
func (m *MCU) Angle(req protocol.AngleRequest) (bool, error) {
	return m.command("trajectory_angle", req.OID, req.Encode)
}

// Time runs a servo at a rate for a duration.
func (m *MCU) Time(req protocol.TimeRequest) (bool, error) {
	return m.command("trajectory_time", req.OID, req.Encode)
}

// Hold keeps a servo at its position from clock on.
func (m *MCU) Hold(oid uint8, clock uint32) (bool, error) {
	msg := protocol.ServoClock{OID: oid, Clock: clock}
	return m.command("trajectory_hold", oid, msg.Encode)
}

// Stop decelerates a servo to rest.
func (m *MCU) Stop(oid uint8, clock uint32) (bool, error) {
	msg := protocol.ServoClock{OID: oid, Clock: clock}
	return m.command("trajectory_stop", oid, msg.Encode)
}

// Stretch retimes the running trajectory of a servo.
func (m *MCU) Stretch(req protocol.StretchRequest) error {
	_, err := m.command("trajectory_stretch", req.OID, req.Encode)
	return err
}

// Reference returns the reference of a servo at clock, or now for 0.
func (m *MCU) Reference(oid uint8, clock uint32) (protocol.ReferenceReport, error) {
	msg := protocol.ServoClock{OID: oid, Clock: clock}
	resp, err := m.request("servo_get_reference", msg.Encode, int(oid), "servo_reference", "trajectory_result")
	if err != nil {
		return protocol.ReferenceReport{}, err
	}
	if err := resultError(resp); err != nil {
		return protocol.ReferenceReport{}, err
	}
	var report protocol.ReferenceReport
	err = report.Decode(&resp.payload)
	return report, errors.Wrap(err, "decode servo_reference")
}

// Trajectory returns the live trajectory of a servo. The firmware answers
// with two messages; both are read under one exchange.
func (m *MCU) Trajectory(oid uint8) (Trajectory, error) {
	m.exchange.Lock()
	defer m.exchange.Unlock()

	var tr Trajectory
	err := m.Send("servo_get_trajectory", func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(oid))
	})
	if err != nil {
		return tr, err
	}
	resp, err := m.await(int(oid), "servo_trajectory", "trajectory_result")
	if err != nil {
		return tr, err
	}
	if err := resultError(resp); err != nil {
		return tr, err
	}
	if err := tr.TrajectoryReport.Decode(&resp.payload); err != nil {
		return tr, errors.Wrap(err, "decode servo_trajectory")
	}

	pos, err := m.await(int(oid), "servo_trajectory_position")
	if err != nil {
		return tr, err
	}
	err = tr.Positions.Decode(&pos.payload)
	return tr, errors.Wrap(err, "decode servo_trajectory_position")
}

// resultError turns a trajectory_result that came in place of a report
// into an error.
func resultError(resp response) error {
	if resp.name != "trajectory_result" {
		return nil
	}
	var res protocol.Result
	payload := resp.payload
	if err := res.Decode(&payload); err != nil {
		return errors.Wrap(err, "decode trajectory_result")
	}
	return &StatusError{OID: res.OID, Status: res.Status}
}
