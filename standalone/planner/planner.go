package planner

import (
	"errors"

	"motionhub/core"
	"motionhub/standalone/config"
	"motionhub/standalone/kinematics"
	"motionhub/trajectory"
)

var (
	ErrQueueFull = errors.New("move queue full")
	ErrBusy      = errors.New("axis still moving")
)

// Kind selects what a queued Move does.
type Kind uint8

const (
	MoveTo Kind = iota // synchronized move to Targets
	RunFor             // timed run, Targets holds the rate per axis
	Dwell              // wait DurationMs
)

// Move is one queued motion. MoveTo positions and RunFor rates are in
// machine units.
type Move struct {
	Kind       Kind
	Targets    map[string]float64
	Rate       float64 // MoveTo: units/s, zero for each axis default
	DurationMs uint32  // RunFor, Dwell
}

// Axis binds an axis configuration to its servo.
type Axis struct {
	Name   string
	Config config.AxisConfig
	Servo  *core.Servo
}

// Planner runs queued moves one at a time. Every axis of a move is solved
// from its own reference, then retimed so that all axes start and finish
// together.
type Planner struct {
	config     *config.MachineConfig
	kinematics kinematics.Kinematics
	axes       map[string]*Axis

	queue      []Move
	active     []*Axis
	running    bool
	dwelling   bool
	dwellUntil uint32
}

// NewPlanner configures a servo for every axis.
func NewPlanner(cfg *config.MachineConfig, kin kinematics.Kinematics) (*Planner, error) {
	p := &Planner{
		config:     cfg,
		kinematics: kin,
		axes:       make(map[string]*Axis, len(cfg.Axes)),
		queue:      make([]Move, 0, cfg.QueueSize),
	}
	for _, name := range kin.GetAxisNames() {
		axisConfig := cfg.Axes[name]
		servo, err := core.NewServo(axisConfig.OID, axisConfig.Limits())
		if err != nil {
			return nil, &config.AxisError{Axis: name, Err: err}
		}
		p.axes[name] = &Axis{Name: name, Config: axisConfig, Servo: servo}
	}
	return p, nil
}

// Axis returns the named axis.
func (p *Planner) Axis(name string) (*Axis, bool) {
	a, ok := p.axes[name]
	return a, ok
}

// Queue adds a move behind the ones already waiting.
func (p *Planner) Queue(m Move) error {
	switch m.Kind {
	case MoveTo:
		if err := p.kinematics.CheckLimits(m.Targets); err != nil {
			return err
		}
	case RunFor:
		for name := range m.Targets {
			if _, ok := p.axes[name]; !ok {
				return &config.AxisError{Axis: name, Err: kinematics.ErrUnknownAxis}
			}
		}
	}
	if len(p.queue) >= p.config.QueueSize {
		return ErrQueueFull
	}
	p.queue = append(p.queue, m)
	return nil
}

// Poll starts the next queued move once the active one has finished. Call
// it from the main loop.
func (p *Planner) Poll(now uint32) error {
	if p.running {
		if p.dwelling && int32(now-p.dwellUntil) < 0 {
			return nil
		}
		for _, a := range p.active {
			if !a.Servo.Done(now) {
				return nil
			}
		}
		p.running, p.dwelling, p.active = false, false, p.active[:0]
	}
	if len(p.queue) == 0 {
		return nil
	}

	m := p.queue[0]
	copy(p.queue, p.queue[1:])
	p.queue = p.queue[:len(p.queue)-1]
	return p.start(now, m)
}

func (p *Planner) start(now uint32, m Move) error {
	if m.Kind == Dwell {
		p.running, p.dwelling = true, true
		p.dwellUntil = now + core.TimerFromMS(m.DurationMs)
		return nil
	}

	names := make([]string, 0, len(m.Targets))
	reqs := make([]core.Request, 0, len(m.Targets))
	for _, name := range p.kinematics.GetAxisNames() {
		v, ok := m.Targets[name]
		if !ok {
			continue
		}
		axis := p.axes[name].Config
		r := core.Request{Kind: core.ReqTime, DurationMs: m.DurationMs, Rate: axis.ToCounts(v)}
		if m.Kind == MoveTo {
			rate := m.Rate
			if rate <= 0 {
				rate = axis.DefaultRate
			}
			if rate > axis.MaxRate {
				rate = axis.MaxRate
			}
			r = core.Request{Kind: core.ReqAngle, Target: axis.ToCounts(v), Rate: axis.ToCounts(rate)}
		}
		names = append(names, name)
		reqs = append(reqs, r)
	}
	return p.Sync(now, names, reqs)
}

// Sync solves reqs on the named axes and installs them. Unless they already
// end together, every axis is stretched to the longest in, cruise and out
// phases among them. Nothing is installed if any axis fails.
func (p *Planner) Sync(now uint32, names []string, reqs []core.Request) error {
	plans := make([]trajectory.Trajectory, len(names))
	var in, cruise, out, end int32
	sameEnd, moving := true, false
	for i, name := range names {
		a, ok := p.axes[name]
		if !ok {
			return &config.AxisError{Axis: name, Err: kinematics.ErrUnknownAxis}
		}
		tr, err := a.Servo.Plan(now, reqs[i])
		if err != nil {
			return &config.AxisError{Axis: name, Err: err}
		}
		if !tr.IsConstant() {
			if tr.T0 != int32(now) {
				return &config.AxisError{Axis: name, Err: ErrBusy}
			}
			if moving && tr.T3 != end {
				sameEnd = false
			}
			end, moving = tr.T3, true
		}
		i0, c0, o0 := tr.Phases()
		if i0 > in {
			in = i0
		}
		if c0 > cruise {
			cruise = c0
		}
		if o0 > out {
			out = o0
		}
		plans[i] = tr
	}

	for i := 0; i < len(plans) && !sameEnd; i++ {
		tr, err := trajectory.Stretch(plans[i], in, in+cruise, in+cruise+out)
		if err != nil {
			return &config.AxisError{Axis: names[i], Err: err}
		}
		plans[i] = tr
	}

	p.active = p.active[:0]
	for i, name := range names {
		a := p.axes[name]
		a.Servo.Install(plans[i])
		a.Servo.Start()
		core.RecordTiming(core.EvtStretched, a.Servo.OID, now, uint32(plans[i].Duration()), uint32(len(names)))
		p.active = append(p.active, a)
	}
	p.running = true
	return nil
}

// Positions returns the reference position of every axis in units.
func (p *Planner) Positions(now uint32) map[string]float64 {
	pos := make(map[string]float64, len(p.axes))
	for name, a := range p.axes {
		pos[name] = a.Config.ToUnits(a.Servo.Reference(now).Position)
	}
	return pos
}

// SetPosition redefines the position of the named axes without moving.
func (p *Planner) SetPosition(now uint32, pos map[string]float64) error {
	for name := range pos {
		if _, ok := p.axes[name]; !ok {
			return &config.AxisError{Axis: name, Err: kinematics.ErrUnknownAxis}
		}
	}
	for name, units := range pos {
		a := p.axes[name]
		a.Servo.SetPosition(now, a.Config.ToCounts(units))
	}
	return nil
}

// HoldAll drops the queue and holds every axis where its reference is.
func (p *Planner) HoldAll(now uint32) error {
	p.ClearQueue()
	for _, name := range p.kinematics.GetAxisNames() {
		if err := p.axes[name].Servo.Hold(now); err != nil {
			return &config.AxisError{Axis: name, Err: err}
		}
	}
	return nil
}

// StopAll drops the queue and brakes every axis to rest.
func (p *Planner) StopAll(now uint32) error {
	p.ClearQueue()
	for _, name := range p.kinematics.GetAxisNames() {
		if err := p.axes[name].Servo.Stop(now); err != nil {
			return &config.AxisError{Axis: name, Err: err}
		}
	}
	return nil
}

// ClearQueue forgets the waiting moves and the active one.
func (p *Planner) ClearQueue() {
	p.queue = p.queue[:0]
	p.active = p.active[:0]
	p.running, p.dwelling = false, false
}

// Busy reports whether a move is active or waiting.
func (p *Planner) Busy() bool {
	return p.running || len(p.queue) > 0
}

// QueueLen returns the number of waiting moves.
func (p *Planner) QueueLen() int {
	return len(p.queue)
}
