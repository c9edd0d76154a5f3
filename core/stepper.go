package core

import "motionhub/trajectory"

// StepActuator turns the servo reference into step pulses. Each control
// tick it compares the reference count with the steps already emitted and
// spreads the difference evenly over the next period with its own timer.
// It counts its own output, so it is also the servo's Encoder.
type StepActuator struct {
	StepPin    uint8
	DirPin     uint8
	InvertStep bool
	InvertDir  bool

	// MinInterval is the shortest time between pulses (µs). Steps that do
	// not fit are caught up on the next tick.
	MinInterval uint32
	// Period is the window a tick's steps are spread over; zero means
	// ControlPeriodUs.
	Period uint32

	Backend StepperBackend

	StepTimer Timer

	oid       uint8
	position  int32 // steps emitted
	dir       int32 // +1 forward, -1 reverse
	interval  uint32
	remaining uint32
}

// NewStepActuator creates an actuator on backend.
func NewStepActuator(backend StepperBackend, stepPin, dirPin uint8, invertStep, invertDir bool) *StepActuator {
	a := &StepActuator{
		StepPin:     stepPin,
		DirPin:      dirPin,
		InvertStep:  invertStep,
		InvertDir:   invertDir,
		MinInterval: 2,
		Backend:     backend,
		dir:         1,
	}
	a.StepTimer.Handler = a.stepHandler
	return a
}

func (a *StepActuator) Init(oid uint8) error {
	a.oid = oid
	if a.Period == 0 {
		a.Period = ControlPeriodUs
	}
	return a.Backend.Init(a.StepPin, a.DirPin, a.InvertStep, a.InvertDir)
}

// Apply schedules the steps needed to reach ref by the next tick.
func (a *StepActuator) Apply(now uint32, ref trajectory.Reference) {
	CancelTimer(&a.StepTimer)
	delta := ref.Position.Count - a.position
	if delta == 0 {
		a.remaining = 0
		return
	}

	dir := int32(1)
	count := uint32(delta)
	if delta < 0 {
		dir, count = -1, uint32(-delta)
	}
	if dir != a.dir {
		a.Backend.SetDirection(dir < 0)
		a.dir = dir
	}

	a.interval = a.Period / count
	if a.interval < a.MinInterval {
		a.interval = a.MinInterval
	}
	a.remaining = count
	a.StepTimer.WakeTime = now + a.interval
	ScheduleTimer(&a.StepTimer)
}

func (a *StepActuator) stepHandler(t *Timer) uint8 {
	a.Backend.Step()
	a.position += a.dir
	a.remaining--
	if a.remaining == 0 {
		return SF_DONE
	}
	t.WakeTime += a.interval
	return SF_RESCHEDULE
}

// Stop drops the pending steps and halts the backend.
func (a *StepActuator) Stop() {
	CancelTimer(&a.StepTimer)
	a.remaining = 0
	a.Backend.Stop()
}

func (a *StepActuator) GetName() string {
	return "step/" + a.Backend.GetName()
}

// Position returns the steps emitted so far.
func (a *StepActuator) Position() trajectory.Position {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return trajectory.Counts(a.position)
}

// ResetPosition redefines the current step count without moving.
func (a *StepActuator) ResetPosition(p trajectory.Position) {
	CancelTimer(&a.StepTimer)
	state := disableInterrupts()
	a.position = p.Count
	a.remaining = 0
	restoreInterrupts(state)
}

// Pending reports the steps still queued for this tick.
func (a *StepActuator) Pending() uint32 {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return a.remaining
}
