package trajectory

// Kind selects the terminal constraint of a Command.
type Kind uint8

const (
	KindAngle Kind = iota
	KindDuration
)

func (k Kind) String() string {
	switch k {
	case KindAngle:
		return "angle"
	case KindDuration:
		return "duration"
	}
	return "unknown"
}

// Target is the terminal constraint of a move. It is implemented by
// AngleTarget and DurationTarget only.
type Target interface {
	Kind() Kind
	isTarget()
}

// AngleTarget ends the move at an absolute position.
type AngleTarget struct {
	Position Position
}

func (AngleTarget) Kind() Kind { return KindAngle }
func (AngleTarget) isTarget()  {}

// DurationTarget ends the move after Ms milliseconds.
type DurationTarget struct {
	Ms int32
}

func (DurationTarget) Kind() Kind { return KindDuration }
func (DurationTarget) isTarget()  {}

// Command is a single motion request together with the state the actuator
// is in when it takes effect.
type Command struct {
	Time   int32    // start time (µs)
	Start  Position // start position
	Target Target

	StartRate  int32 // signed rate at Time (counts/s)
	TargetRate int32 // cruise rate, sign gives direction for duration moves
	MaxRate    int32 // cap on the cruise rate magnitude
	Accel      int32 // in-phase acceleration magnitude (counts/s^2)
	Decel      int32 // out-phase acceleration magnitude

	// ContinueRunning keeps the cruise rate after the move instead of
	// stopping at the end.
	ContinueRunning bool
}

// Kind returns the kind of the command's target.
func (c *Command) Kind() Kind {
	if c.Target == nil {
		return KindAngle
	}
	return c.Target.Kind()
}

func (c *Command) validate() error {
	if c.Target == nil {
		return errNoTarget
	}
	if c.MaxRate < 0 || c.Accel < 0 || c.Decel < 0 {
		return errNegativeLimit
	}
	if abs64(int64(c.StartRate)) > RateMax || abs64(int64(c.TargetRate)) > RateMax ||
		c.MaxRate > RateMax || c.Accel > AccelMax || c.Decel > AccelMax {
		return errOutOfRange
	}
	if d, ok := c.Target.(DurationTarget); ok {
		if d.Ms < 0 || d.Ms > DurationMaxMs {
			return errDuration
		}
	}
	return nil
}

// cruiseRate is the magnitude of the cruise rate after applying the cap.
func (c *Command) cruiseRate() int64 {
	w := int64(abs64(int64(c.TargetRate)))
	if m := int64(c.MaxRate); w > m {
		w = m
	}
	return w
}
