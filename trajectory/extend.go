package trajectory

// Extend revises a running profile to satisfy c from the instant c.Time on.
// c.Start and c.StartRate must describe the actuator at c.Time, normally the
// reference of old at that time.
//
// When old is cruising at c.Time (or running on past its end) at exactly the
// rate c asks for, and the new end is still ahead, only the end of the
// profile is recomputed so the splice introduces no new acceleration. In
// every other case the profile is solved anew from the start state of c.
func Extend(old Trajectory, c Command) (Trajectory, error) {
	if err := c.validate(); err != nil {
		return Trajectory{}, err
	}
	if tr, ok := continueCruise(&old, &c); ok {
		return tr, nil
	}
	return CalculateNew(c)
}

func continueCruise(old *Trajectory, c *Command) (Trajectory, bool) {
	now := c.Time
	tr := Trajectory{
		T0: old.T0, T1: old.T1,
		Th0: old.Th0, Th1: old.Th1,
		W0: old.W0, A0: old.A0,
	}
	var w int64
	switch {
	case old.W1 != 0 && !before(now, old.T1) && before(now, old.T2):
		w = int64(old.W1)
	case old.W3 != 0 && !before(now, old.T3):
		w = int64(old.W3)
		tr.T0, tr.T1 = old.T3, old.T3
		tr.Th0, tr.Th1 = old.Th3, old.Th3
		tr.W0, tr.A0 = old.W3, 0
	default:
		return Trajectory{}, false
	}

	// The command must start from the state the old profile is in.
	ref := old.Reference(now)
	if int64(ref.Rate) != w || int64(c.StartRate) != w || abs64(ref.Position.Sub(c.Start)) >= millicountsPerCount {
		return Trajectory{}, false
	}
	dir := sign(w)
	speed := w * dir
	if c.cruiseRate() != speed {
		return Trajectory{}, false
	}

	var t23, d23, a2, w3 int64
	if c.ContinueRunning {
		w3 = w
	} else {
		b := int64(c.Decel)
		if b == 0 {
			return Trajectory{}, false
		}
		a2 = -dir * b
		t23 = speed * UsPerSecond / b
		d23 = dir * stopDistance(speed, b)
	}

	var t2 int32
	switch t := c.Target.(type) {
	case AngleTarget:
		th2 := t.Position.Milli() - d23
		if (th2-ref.Position.Milli())*dir < 0 || (t.Position.Sub(ref.Position))*dir <= 0 {
			return Trajectory{}, false
		}
		t12 := cruiseTime((th2-tr.Th1.Milli())*dir, speed)
		if t12 > maxProfileUs {
			return Trajectory{}, false
		}
		t2 = tr.T1 + int32(t12)
	case DurationTarget:
		if int64(c.TargetRate)*dir <= 0 {
			return Trajectory{}, false
		}
		rest := int64(t.Ms)*UsPerMs - t23
		if rest < 0 {
			return Trajectory{}, false
		}
		t2 = now + int32(rest)
	default:
		return Trajectory{}, false
	}
	if before(t2, now) {
		return Trajectory{}, false
	}
	if span := int64(t2-tr.T0) + t23; span < 0 || span > maxProfileUs {
		return Trajectory{}, false
	}

	tr.W1, tr.W3 = int32(w), int32(w3)
	tr.A2 = int32(a2)
	tr.T2 = t2
	tr.T3 = t2 + int32(t23)
	tr.Th2 = tr.Th1.Add(DistanceOverTime(tr.W1, t2-tr.T1))
	tr.Th3 = tr.Th2.Add(rampDistance(tr.W1, tr.A2, int32(t23)))
	if t, ok := c.Target.(AngleTarget); ok {
		tr.endAt(t.Position, true)
	}
	return tr, true
}
