package core

// Servo control loop: one trajectory slot per axis, sampled by a periodic
// timer and handed to the axis actuator.

import (
	"errors"

	"motionhub/trajectory"
)

const (
	// MaxServos bounds the oid space.
	MaxServos = 16

	// ControlPeriodUs is the default control tick.
	ControlPeriodUs = 1000

	// rebaseAfterUs is how far past T3 a continuing trajectory may run
	// before it is rebased, keeping time differences clear of the wrap.
	rebaseAfterUs = 1 << 30
)

var (
	errServoOID    = errors.New("servo oid out of range")
	errServoLimits = errors.New("servo limits out of range")
	errUnknownKind = errors.New("unknown request kind")
)

// Limits are the motion limits of one axis: counts/s and counts/s^2.
type Limits struct {
	MaxRate int32
	Accel   int32
	Decel   int32
}

func (l Limits) validate() error {
	if l.MaxRate <= 0 || l.Accel <= 0 || l.Decel <= 0 ||
		l.MaxRate > trajectory.RateMax || l.Accel > trajectory.AccelMax || l.Decel > trajectory.AccelMax {
		return errServoLimits
	}
	return nil
}

// RequestKind selects what a Request asks for.
type RequestKind uint8

const (
	ReqAngle RequestKind = iota // move to Target counts
	ReqTime                     // run at Rate for DurationMs
	ReqHold                     // hold the current reference position
	ReqStop                     // brake to rest with the axis deceleration
)

// Request is a motion request before it is bound to a start state.
type Request struct {
	Kind       RequestKind
	Target     int32  // counts, ReqAngle
	DurationMs uint32 // ReqTime
	Rate       int32  // counts/s; zero means MaxRate for ReqAngle
	Continue   bool
}

// Servo owns the live trajectory of one axis.
type Servo struct {
	OID    uint8
	Limits Limits
	Period uint32 // control tick (µs)

	// traj is the only trajectory the control timer reads. It is replaced
	// as a whole, inside a critical section.
	traj     trajectory.Trajectory
	doneSent bool
	lastRef  trajectory.Reference

	ControlTimer Timer

	// A request with a start clock in the future waits here.
	startTimer Timer
	pending    Request

	Actuator Actuator
	Encoder  Encoder

	// OnDone runs from the control timer once a trajectory that comes to
	// rest has reached its end.
	OnDone func(s *Servo, now uint32)
}

var (
	servos [MaxServos]*Servo

	// actuatorFactory builds the backend of each new servo. Set by the
	// target.
	actuatorFactory func(oid uint8) Actuator
)

// SetActuatorFactory sets how servo backends are created.
func SetActuatorFactory(factory func(oid uint8) Actuator) {
	actuatorFactory = factory
}

// NewServo configures servo oid. Configuring an existing oid only updates
// its limits.
func NewServo(oid uint8, limits Limits) (*Servo, error) {
	if oid >= MaxServos {
		return nil, errServoOID
	}
	if err := limits.validate(); err != nil {
		return nil, err
	}
	if s := servos[oid]; s != nil {
		state := disableInterrupts()
		s.Limits = limits
		restoreInterrupts(state)
		return s, nil
	}

	s := &Servo{
		OID:      oid,
		Limits:   limits,
		Period:   ControlPeriodUs,
		doneSent: true,
		OnDone:   reportDone,
	}
	s.ControlTimer.Handler = s.controlHandler
	s.startTimer.Handler = s.startHandler

	if actuatorFactory != nil {
		if act := actuatorFactory(oid); act != nil {
			if err := act.Init(oid); err != nil {
				return nil, err
			}
			s.Actuator = act
			if enc, ok := act.(Encoder); ok {
				s.Encoder = enc
			}
		}
	}

	now := int32(GetTime())
	start := trajectory.Position{}
	if s.Encoder != nil {
		start = s.Encoder.Position()
	}
	s.traj = trajectory.MakeConstant(trajectory.Command{Time: now, Start: start})
	s.lastRef = trajectory.Reference{Position: start}

	servos[oid] = s
	return s, nil
}

// GetServo returns the servo with the given oid, or nil.
func GetServo(oid uint8) *Servo {
	if oid >= MaxServos {
		return nil
	}
	return servos[oid]
}

// ForEachServo calls fn for every configured servo in oid order.
func ForEachServo(fn func(*Servo)) {
	for _, s := range servos {
		if s != nil {
			fn(s)
		}
	}
}

// ResetServos halts and forgets every servo.
func ResetServos() {
	ForEachServo(func(s *Servo) { s.Halt() })
	servos = [MaxServos]*Servo{}
}

// Trajectory returns a copy of the live trajectory.
func (s *Servo) Trajectory() trajectory.Trajectory {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return s.traj
}

// Install publishes tr as the live trajectory.
func (s *Servo) Install(tr trajectory.Trajectory) {
	state := disableInterrupts()
	s.traj = tr
	s.doneSent = false
	restoreInterrupts(state)
}

// Reference evaluates the live trajectory at now.
func (s *Servo) Reference(now uint32) trajectory.Reference {
	tr := s.Trajectory()
	return tr.Reference(int32(now))
}

// LastReference returns the reference applied at the latest control tick.
func (s *Servo) LastReference() trajectory.Reference {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return s.lastRef
}

// Done reports whether the live trajectory has come to rest at its end.
func (s *Servo) Done(now uint32) bool {
	tr := s.Trajectory()
	return tr.Finished(int32(now))
}

// Plan solves r starting from the reference at now without installing
// it. A running trajectory is revised in place of a fresh solve when the
// request allows it.
func (s *Servo) Plan(now uint32, r Request) (trajectory.Trajectory, error) {
	old := s.Trajectory()
	t := int32(now)
	ref := old.Reference(t)

	c := trajectory.Command{
		Time:            t,
		Start:           ref.Position,
		StartRate:       ref.Rate,
		TargetRate:      r.Rate,
		MaxRate:         s.Limits.MaxRate,
		Accel:           s.Limits.Accel,
		Decel:           s.Limits.Decel,
		ContinueRunning: r.Continue,
	}
	switch r.Kind {
	case ReqAngle:
		if c.TargetRate == 0 {
			c.TargetRate = s.Limits.MaxRate
		}
		c.Target = trajectory.AngleTarget{Position: trajectory.Counts(r.Target)}
	case ReqTime:
		c.Target = trajectory.DurationTarget{Ms: int32(r.DurationMs)}
	case ReqHold:
		return trajectory.MakeConstant(c), nil
	case ReqStop:
		c.TargetRate, c.ContinueRunning = 0, false
		c.Accel = s.Limits.Decel
		c.Target = trajectory.DurationTarget{Ms: stopTimeMs(ref.Rate, s.Limits.Decel)}
	default:
		return trajectory.Trajectory{}, errUnknownKind
	}
	return trajectory.Extend(old, c)
}

// stopTimeMs is the time to brake from rate at decel, rounded up.
func stopTimeMs(rate, decel int32) int32 {
	w := int64(rate)
	if w < 0 {
		w = -w
	}
	return int32((w*trajectory.MsPerSecond + int64(decel) - 1) / int64(decel))
}

// Submit applies r. A clock ahead of now defers it to that clock and
// returns scheduled; a zero or past clock applies it at once. Either way a
// request still waiting from before is dropped.
func (s *Servo) Submit(now, clock uint32, r Request) (scheduled bool, err error) {
	CancelTimer(&s.startTimer)
	if clock != 0 && timerBefore(now, clock) {
		s.pending = r
		s.startTimer.WakeTime = clock
		ScheduleTimer(&s.startTimer)
		RecordTiming(EvtScheduled, s.OID, now, clock, uint32(r.Kind))
		return true, nil
	}
	return false, s.apply(now, r)
}

func (s *Servo) apply(now uint32, r Request) error {
	tr, err := s.Plan(now, r)
	if err != nil {
		RecordTiming(EvtRejected, s.OID, now, uint32(r.Kind), 0)
		return err
	}
	s.Install(tr)
	evt := uint8(EvtSolved)
	if tr.T0 != int32(now) {
		evt = EvtExtended
	}
	RecordTiming(evt, s.OID, now, uint32(tr.Duration()), uint32(r.Kind))
	s.Start()
	return nil
}

// RunAngle moves to target counts at up to rate.
func (s *Servo) RunAngle(now uint32, target, rate int32, cont bool) error {
	_, err := s.Submit(now, 0, Request{Kind: ReqAngle, Target: target, Rate: rate, Continue: cont})
	return err
}

// RunTime runs at rate for durationMs, then stops unless cont is set.
func (s *Servo) RunTime(now, durationMs uint32, rate int32, cont bool) error {
	_, err := s.Submit(now, 0, Request{Kind: ReqTime, DurationMs: durationMs, Rate: rate, Continue: cont})
	return err
}

// Run keeps running at rate until told otherwise.
func (s *Servo) Run(now uint32, rate int32) error {
	return s.RunTime(now, trajectory.DurationMaxMs, rate, true)
}

// Hold stops the reference where it is now.
func (s *Servo) Hold(now uint32) error {
	_, err := s.Submit(now, 0, Request{Kind: ReqHold})
	return err
}

// Stop brakes to rest.
func (s *Servo) Stop(now uint32) error {
	_, err := s.Submit(now, 0, Request{Kind: ReqStop})
	return err
}

// Stretch retimes the live trajectory so its phase boundaries fall at the
// given offsets (µs) from its start.
func (s *Servo) Stretch(t1mt0, t2mt0, t3mt0 uint32) error {
	old := s.Trajectory()
	tr, err := trajectory.Stretch(old, int32(t1mt0), int32(t2mt0), int32(t3mt0))
	if err != nil {
		RecordTiming(EvtRejected, s.OID, GetTime(), 0, 0)
		return err
	}
	s.Install(tr)
	RecordTiming(EvtStretched, s.OID, GetTime(), uint32(tr.Duration()), 0)
	return nil
}

// SetPosition redefines the current position as count and holds there.
func (s *Servo) SetPosition(now uint32, count int32) {
	CancelTimer(&s.startTimer)
	p := trajectory.Counts(count)
	state := disableInterrupts()
	if s.Encoder != nil {
		s.Encoder.ResetPosition(p)
	}
	s.traj = trajectory.MakeConstant(trajectory.Command{Time: int32(now), Start: p})
	s.lastRef = trajectory.Reference{Position: p}
	s.doneSent = true
	restoreInterrupts(state)
}

// Start queues the control timer if it is not running.
func (s *Servo) Start() {
	if s.ControlTimer.Scheduled() {
		return
	}
	s.ControlTimer.WakeTime = GetTime() + s.Period
	ScheduleTimer(&s.ControlTimer)
}

// Halt stops the control timer and the actuator. The reference freezes
// where the last tick left it.
func (s *Servo) Halt() {
	CancelTimer(&s.ControlTimer)
	CancelTimer(&s.startTimer)

	state := disableInterrupts()
	p := s.lastRef.Position
	if s.Encoder != nil {
		p = s.Encoder.Position()
	}
	s.traj = trajectory.MakeConstant(trajectory.Command{Time: int32(GetTime()), Start: p})
	s.doneSent = true
	restoreInterrupts(state)

	if s.Actuator != nil {
		s.Actuator.Stop()
	}
}

func (s *Servo) controlHandler(t *Timer) uint8 {
	now := t.WakeTime
	if late := int32(currentTime - now); late > int32(s.Period) {
		RecordTiming(EvtTickLate, s.OID, currentTime, uint32(late), 0)
		now = currentTime
	}

	if s.traj.Continuing() && int32(now-uint32(s.traj.T3)) > rebaseAfterUs {
		s.traj = s.traj.Rebase(int32(now))
	}
	ref := s.traj.Reference(int32(now))
	s.lastRef = ref
	if s.Actuator != nil {
		s.Actuator.Apply(now, ref)
	}

	if !s.doneSent && s.traj.Finished(int32(now)) {
		s.doneSent = true
		RecordTiming(EvtDone, s.OID, now, uint32(ref.Position.Count), 0)
		if s.OnDone != nil {
			s.OnDone(s, now)
		}
	}

	t.WakeTime = now + s.Period
	return SF_RESCHEDULE
}

// startHandler installs a deferred request at its start clock.
func (s *Servo) startHandler(t *Timer) uint8 {
	if err := s.apply(t.WakeTime, s.pending); err != nil {
		reportResult(s.OID, statusFor(err))
	} else {
		RecordTiming(EvtStarted, s.OID, t.WakeTime, uint32(s.pending.Kind), 0)
	}
	return SF_DONE
}
