package protocol

// MessageDef is one entry of the message table. Responses flow from the
// firmware to the host; everything else is a command.
type MessageDef struct {
	Name     string
	Format   string
	Response bool
}

// Messages lists every message in ID order. The firmware registers them in
// this order, so a host that cannot read the dictionary can still rely on
// these IDs. identify_response and identify must stay first.
var Messages = []MessageDef{
	{Name: "identify_response", Format: "offset=%u data=%*s", Response: true},
	{Name: "identify", Format: "offset=%u count=%c"},
	{Name: "get_clock"},
	{Name: "clock", Format: "clock=%u", Response: true},
	{Name: "get_uptime"},
	{Name: "uptime", Format: "high=%u clock=%u", Response: true},
	{Name: "emergency_stop"},
	{Name: "reset"},
	{Name: "set_debug", Format: "enable=%c"},
	{Name: "config_servo", Format: "oid=%c max_rate=%u accel=%u decel=%u"},
	{Name: "servo_set_position", Format: "oid=%c count=%i"},
	{Name: "trajectory_angle", Format: "oid=%c clock=%u target=%i rate=%i continue=%c"},
	{Name: "trajectory_time", Format: "oid=%c clock=%u duration=%u rate=%i continue=%c"},
	{Name: "trajectory_hold", Format: "oid=%c clock=%u"},
	{Name: "trajectory_stop", Format: "oid=%c clock=%u"},
	{Name: "trajectory_stretch", Format: "oid=%c t1=%u t2=%u t3=%u"},
	{Name: "servo_get_reference", Format: "oid=%c clock=%u"},
	{Name: "servo_get_trajectory", Format: "oid=%c"},
	{Name: "trajectory_result", Format: "oid=%c status=%c", Response: true},
	{Name: "servo_reference", Format: "oid=%c clock=%u count=%i ext=%u rate=%i accel=%i", Response: true},
	{Name: "servo_trajectory", Format: "oid=%c t0=%u t1=%u t2=%u t3=%u w0=%i w1=%i w3=%i a0=%i a2=%i", Response: true},
	{Name: "servo_trajectory_position", Format: "oid=%c th0=%i th0_ext=%u th1=%i th1_ext=%u th2=%i th2_ext=%u th3=%i th3_ext=%u", Response: true},
	{Name: "servo_done", Format: "oid=%c clock=%u count=%i", Response: true},
}

var messageIDs = func() map[string]uint16 {
	m := make(map[string]uint16, len(Messages))
	for i, def := range Messages {
		m[def.Name] = uint16(i)
	}
	return m
}()

// MessageID returns the table ID of the named message.
func MessageID(name string) (uint16, bool) {
	id, ok := messageIDs[name]
	return id, ok
}

// Result codes carried by trajectory_result.
const (
	StatusOK            = 0
	StatusInvalid       = 1 // rejected as an invalid argument
	StatusNotConfigured = 2 // no servo with that oid
	StatusScheduled     = 3 // accepted, starts at the requested clock
	StatusShutdown      = 4 // refused after emergency_stop
)

// Args decodes consecutive VLQ arguments and keeps the first error, so a
// handler can decode all fields and check once.
type Args struct {
	data *[]byte
	err  error
}

func NewArgs(data *[]byte) *Args {
	return &Args{data: data}
}

func (a *Args) Int() int32 {
	if a.err != nil {
		return 0
	}
	v, err := DecodeVLQInt(a.data)
	a.err = err
	return v
}

func (a *Args) Uint() uint32 { return uint32(a.Int()) }
func (a *Args) Byte() uint8  { return uint8(a.Int()) }
func (a *Args) Bool() bool   { return a.Int() != 0 }
func (a *Args) Err() error   { return a.err }

// ServoConfig is the config_servo payload. Limits are counts/s and
// counts/s^2.
type ServoConfig struct {
	OID     uint8
	MaxRate uint32
	Accel   uint32
	Decel   uint32
}

func (m *ServoConfig) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(m.OID))
	EncodeVLQUint(out, m.MaxRate)
	EncodeVLQUint(out, m.Accel)
	EncodeVLQUint(out, m.Decel)
}

func (m *ServoConfig) Decode(data *[]byte) error {
	a := NewArgs(data)
	m.OID, m.MaxRate, m.Accel, m.Decel = a.Byte(), a.Uint(), a.Uint(), a.Uint()
	return a.Err()
}

// SetPosition is the servo_set_position payload.
type SetPosition struct {
	OID   uint8
	Count int32
}

func (m *SetPosition) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(m.OID))
	EncodeVLQInt(out, m.Count)
}

func (m *SetPosition) Decode(data *[]byte) error {
	a := NewArgs(data)
	m.OID, m.Count = a.Byte(), a.Int()
	return a.Err()
}

// AngleRequest is the trajectory_angle payload. A zero Clock means now.
type AngleRequest struct {
	OID      uint8
	Clock    uint32
	Target   int32
	Rate     int32
	Continue bool
}

func (m *AngleRequest) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(m.OID))
	EncodeVLQUint(out, m.Clock)
	EncodeVLQInt(out, m.Target)
	EncodeVLQInt(out, m.Rate)
	EncodeVLQBool(out, m.Continue)
}

func (m *AngleRequest) Decode(data *[]byte) error {
	a := NewArgs(data)
	m.OID, m.Clock, m.Target, m.Rate, m.Continue = a.Byte(), a.Uint(), a.Int(), a.Int(), a.Bool()
	return a.Err()
}

// TimeRequest is the trajectory_time payload.
type TimeRequest struct {
	OID        uint8
	Clock      uint32
	DurationMs uint32
	Rate       int32
	Continue   bool
}

func (m *TimeRequest) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(m.OID))
	EncodeVLQUint(out, m.Clock)
	EncodeVLQUint(out, m.DurationMs)
	EncodeVLQInt(out, m.Rate)
	EncodeVLQBool(out, m.Continue)
}

func (m *TimeRequest) Decode(data *[]byte) error {
	a := NewArgs(data)
	m.OID, m.Clock, m.DurationMs, m.Rate, m.Continue = a.Byte(), a.Uint(), a.Uint(), a.Int(), a.Bool()
	return a.Err()
}

// ServoClock is the payload of trajectory_hold, trajectory_stop and
// servo_get_reference.
type ServoClock struct {
	OID   uint8
	Clock uint32
}

func (m *ServoClock) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(m.OID))
	EncodeVLQUint(out, m.Clock)
}

func (m *ServoClock) Decode(data *[]byte) error {
	a := NewArgs(data)
	m.OID, m.Clock = a.Byte(), a.Uint()
	return a.Err()
}

// StretchRequest is the trajectory_stretch payload. The durations are
// microseconds from the start of the running trajectory.
type StretchRequest struct {
	OID        uint8
	T1, T2, T3 uint32
}

func (m *StretchRequest) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(m.OID))
	EncodeVLQUint(out, m.T1)
	EncodeVLQUint(out, m.T2)
	EncodeVLQUint(out, m.T3)
}

func (m *StretchRequest) Decode(data *[]byte) error {
	a := NewArgs(data)
	m.OID, m.T1, m.T2, m.T3 = a.Byte(), a.Uint(), a.Uint(), a.Uint()
	return a.Err()
}

// Result is the trajectory_result payload.
type Result struct {
	OID    uint8
	Status uint8
}

func (m *Result) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(m.OID))
	EncodeVLQUint(out, uint32(m.Status))
}

func (m *Result) Decode(data *[]byte) error {
	a := NewArgs(data)
	m.OID, m.Status = a.Byte(), a.Byte()
	return a.Err()
}

// ReferenceReport is the servo_reference payload.
type ReferenceReport struct {
	OID   uint8
	Clock uint32
	Count int32
	Ext   uint32 // millicounts, 0-999
	Rate  int32
	Accel int32
}

func (m *ReferenceReport) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(m.OID))
	EncodeVLQUint(out, m.Clock)
	EncodeVLQInt(out, m.Count)
	EncodeVLQUint(out, m.Ext)
	EncodeVLQInt(out, m.Rate)
	EncodeVLQInt(out, m.Accel)
}

func (m *ReferenceReport) Decode(data *[]byte) error {
	a := NewArgs(data)
	m.OID, m.Clock, m.Count, m.Ext, m.Rate, m.Accel = a.Byte(), a.Uint(), a.Int(), a.Uint(), a.Int(), a.Int()
	return a.Err()
}

// TrajectoryReport is the servo_trajectory payload: boundary times, rates
// and accelerations.
type TrajectoryReport struct {
	OID            uint8
	T0, T1, T2, T3 uint32
	W0, W1, W3     int32
	A0, A2         int32
}

func (m *TrajectoryReport) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(m.OID))
	for _, t := range [...]uint32{m.T0, m.T1, m.T2, m.T3} {
		EncodeVLQUint(out, t)
	}
	for _, v := range [...]int32{m.W0, m.W1, m.W3, m.A0, m.A2} {
		EncodeVLQInt(out, v)
	}
}

func (m *TrajectoryReport) Decode(data *[]byte) error {
	a := NewArgs(data)
	m.OID = a.Byte()
	m.T0, m.T1, m.T2, m.T3 = a.Uint(), a.Uint(), a.Uint(), a.Uint()
	m.W0, m.W1, m.W3 = a.Int(), a.Int(), a.Int()
	m.A0, m.A2 = a.Int(), a.Int()
	return a.Err()
}

// PositionReport is the servo_trajectory_position payload: the four
// boundary positions as count and millicount pairs.
type PositionReport struct {
	OID   uint8
	Count [4]int32
	Ext   [4]uint32
}

func (m *PositionReport) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(m.OID))
	for i := range m.Count {
		EncodeVLQInt(out, m.Count[i])
		EncodeVLQUint(out, m.Ext[i])
	}
}

func (m *PositionReport) Decode(data *[]byte) error {
	a := NewArgs(data)
	m.OID = a.Byte()
	for i := range m.Count {
		m.Count[i], m.Ext[i] = a.Int(), a.Uint()
	}
	return a.Err()
}

// DoneReport is the servo_done payload, sent when a trajectory that comes
// to rest reaches its end.
type DoneReport struct {
	OID   uint8
	Clock uint32
	Count int32
}

func (m *DoneReport) Encode(out OutputBuffer) {
	EncodeVLQUint(out, uint32(m.OID))
	EncodeVLQUint(out, m.Clock)
	EncodeVLQInt(out, m.Count)
}

func (m *DoneReport) Decode(data *[]byte) error {
	a := NewArgs(data)
	m.OID, m.Clock, m.Count = a.Byte(), a.Uint(), a.Int()
	return a.Err()
}
