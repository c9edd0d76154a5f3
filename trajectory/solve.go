package trajectory

const maxProfileUs = int64(DurationMaxMs) * UsPerMs

// profile is a solution in the forward frame, where travel is in the
// positive direction. Rates and accelerations are signed within that frame.
type profile struct {
	w0, w1, w3    int64
	a0, a2        int64
	t01, t12, t23 int64
}

// CalculateNew solves a complete profile for c, starting at c.Time from
// c.Start at c.StartRate.
func CalculateNew(c Command) (Trajectory, error) {
	if err := c.validate(); err != nil {
		return Trajectory{}, err
	}
	switch t := c.Target.(type) {
	case AngleTarget:
		return solveAngle(&c, t)
	case DurationTarget:
		return solveDuration(&c, t)
	}
	return Trajectory{}, errNoTarget
}

func solveAngle(c *Command, t AngleTarget) (Trajectory, error) {
	delta := t.Position.Sub(c.Start)
	if delta == 0 && c.StartRate == 0 {
		return MakeConstant(*c), nil
	}
	dir := sign(delta)
	if dir == 0 {
		dir = sign(int64(c.StartRate))
	}
	d := delta * dir
	w0 := int64(c.StartRate) * dir
	wc := c.cruiseRate()
	if wc == 0 {
		return Trajectory{}, errZeroRate
	}
	a, b := int64(c.Accel), int64(c.Decel)
	if a == 0 && w0 != wc {
		return Trajectory{}, errZeroAccel
	}

	var p profile
	var err error
	if c.ContinueRunning {
		p = angleContinuing(d, w0, wc, a)
	} else {
		if b == 0 {
			return Trajectory{}, errZeroAccel
		}
		p, err = angleStopping(d, w0, wc, a, b)
		if err != nil {
			return Trajectory{}, err
		}
	}
	tr, err := p.build(c, dir)
	if err != nil {
		return Trajectory{}, err
	}
	tr.endAt(t.Position, false)
	return tr, nil
}

// inPhase returns the acceleration and duration needed to go from w0 to w1.
func inPhase(w0, w1, a int64) (accel, dt int64) {
	switch {
	case w1 > w0:
		return a, (w1 - w0) * UsPerSecond / a
	case w1 < w0:
		return -a, (w0 - w1) * UsPerSecond / a
	}
	return 0, 0
}

func angleStopping(d, w0, wc, a, b int64) (profile, error) {
	p := profile{a2: -b}

	// Reach the cruise rate, cruise, brake.
	var d01 int64
	if w0 != wc {
		d01 = (wc*wc - w0*w0) * (millicountsPerCount / 2) / a
		if w0 > wc {
			d01 = -d01
		}
	}
	d23 := stopDistance(wc, b)
	if d01+d23 <= d {
		p.w0, p.w1 = w0, wc
		p.a0, p.t01 = inPhase(w0, wc, a)
		p.t12 = cruiseTime(d-d01-d23, wc)
		p.t23 = wc * UsPerSecond / b
		return p, nil
	}

	s0b := stopDistance(w0, b)
	switch {
	case w0 <= wc && (w0 <= 0 || s0b <= d):
		// Triangle with a peak below the cruise rate.
		w1 := isqrt(mulDiv(d+stopDistance(w0, a), a*b, (millicountsPerCount/2)*(a+b)))
		if w1 < w0 {
			w1 = w0
		}
		p.w0, p.w1 = w0, w1
		p.a0, p.t01 = inPhase(w0, w1, a)
		p.t23 = w1 * UsPerSecond / b
		return p, nil
	case w0 > wc && s0b <= d:
		// Coast at the start rate, then brake.
		p.w0, p.w1 = w0, w0
		p.t12 = cruiseTime(d-s0b, w0)
		p.t23 = w0 * UsPerSecond / b
		return p, nil
	}

	// Moving too fast to stop at the target.
	if a == 0 {
		return profile{}, errZeroAccel
	}
	s0a := stopDistance(w0, a)
	p.w0, p.a0 = w0, -a
	if s0a <= d {
		// Stop harder at first, then finish at the out-phase rate. Only
		// reachable with a > b.
		w1 := isqrt(mulDiv(d-s0a, a*b, (millicountsPerCount/2)*(a-b)))
		p.w1 = w1
		p.t01 = (w0 - w1) * UsPerSecond / a
		p.t23 = w1 * UsPerSecond / b
		return p, nil
	}

	// Overshoot, return at up to the cruise rate and brake onto the target.
	v := wc
	back := s0a - stopDistance(wc, a) - stopDistance(wc, b) - d
	if back >= 0 {
		p.t12 = cruiseTime(back, wc)
	} else {
		v = isqrt(mulDiv(s0a-d, a*b, (millicountsPerCount/2)*(a+b)))
	}
	p.w1 = -v
	p.t01 = (w0 + v) * UsPerSecond / a
	p.a2 = b
	p.t23 = v * UsPerSecond / b
	return p, nil
}

func angleContinuing(d, w0, wc, a int64) profile {
	p := profile{w0: w0}
	if w0 == wc {
		p.w1, p.w3 = wc, wc
		p.t12 = cruiseTime(d, wc)
		return p
	}
	d01 := (wc*wc - w0*w0) * (millicountsPerCount / 2) / a
	if w0 > wc {
		d01 = -d01
	}
	w1 := wc
	if d01 > d {
		// The target is passed before the cruise rate is reached.
		sq := w0*w0 + mulDiv(d, a, millicountsPerCount/2)
		if w0 > wc {
			sq = w0*w0 - mulDiv(d, a, millicountsPerCount/2)
		}
		w1 = isqrt(sq)
	} else {
		p.t12 = cruiseTime(d-d01, wc)
	}
	p.w1, p.w3 = w1, w1
	p.a0, p.t01 = inPhase(w0, w1, a)
	return p
}

func solveDuration(c *Command, t DurationTarget) (Trajectory, error) {
	wc := c.cruiseRate()
	if c.StartRate == 0 && wc == 0 {
		return MakeConstant(*c), nil
	}
	dir := sign(int64(c.TargetRate))
	if dir == 0 {
		dir = sign(int64(c.StartRate))
	}
	w0 := int64(c.StartRate) * dir
	a, b := int64(c.Accel), int64(c.Decel)
	total := int64(t.Ms) * UsPerMs

	var p profile
	if c.ContinueRunning {
		if a == 0 && w0 != wc {
			return Trajectory{}, errZeroAccel
		}
		p = durationContinuing(total, w0, wc, a)
	} else {
		if b == 0 {
			return Trajectory{}, errZeroAccel
		}
		// Limit the start rate to what can be stopped in time.
		if lim := mulDiv(b, total, UsPerSecond); w0 > lim {
			w0 = lim
		}
		if lim := mulDiv(a, total, UsPerSecond); w0 < -lim {
			w0 = -lim
		}
		if a == 0 && w0 != wc {
			return Trajectory{}, errZeroAccel
		}
		p = durationStopping(total, w0, wc, a, b)
	}
	return p.build(c, dir)
}

func durationStopping(total, w0, wc, a, b int64) profile {
	p := profile{w0: w0, w1: wc, a2: -b}
	p.a0, p.t01 = inPhase(w0, wc, a)
	p.t23 = wc * UsPerSecond / b
	if p.t01+p.t23 > total {
		if w0 <= wc {
			w1 := (mulDiv(a*b, total, UsPerSecond) + b*w0) / (a + b)
			if w1 < w0 {
				w1 = w0
			}
			p.w1 = w1
			p.a0, p.t01 = inPhase(w0, w1, a)
		} else {
			// Not enough time to slow to cruise: coast, then brake.
			p.w1, p.a0, p.t01 = w0, 0, 0
		}
		p.t23 = p.w1 * UsPerSecond / b
	}
	p.t12 = total - p.t01 - p.t23
	if p.t12 < 0 {
		p.t12 = 0
	}
	return p
}

func durationContinuing(total, w0, wc, a int64) profile {
	p := profile{w0: w0, w1: wc, w3: wc}
	p.a0, p.t01 = inPhase(w0, wc, a)
	if p.t01 > total {
		p.t01 = total
		p.w1 = w0 + p.a0*total/UsPerSecond
		p.w3 = p.w1
	}
	p.t12 = total - p.t01
	return p
}

// build maps a forward-frame solution onto absolute time and position.
func (p *profile) build(c *Command, dir int64) (Trajectory, error) {
	if p.t01 < 0 || p.t12 < 0 || p.t23 < 0 || p.t01+p.t12+p.t23 > maxProfileUs {
		return Trajectory{}, errTooLong
	}
	t01, t12, t23 := int32(p.t01), int32(p.t12), int32(p.t23)
	tr := Trajectory{
		T0:  c.Time,
		Th0: c.Start,
		W0:  int32(p.w0 * dir),
		W1:  int32(p.w1 * dir),
		W3:  int32(p.w3 * dir),
		A0:  int32(p.a0 * dir),
		A2:  int32(p.a2 * dir),
	}
	if p.t23 == 0 {
		tr.A2 = 0
	}
	tr.T1 = tr.T0 + t01
	tr.T2 = tr.T1 + t12
	tr.T3 = tr.T2 + t23
	tr.Th1 = tr.Th0.Add(rampDistance(tr.W0, tr.A0, t01))
	tr.Th2 = tr.Th1.Add(DistanceOverTime(tr.W1, t12))
	tr.Th3 = tr.Th2.Add(rampDistance(tr.W1, tr.A2, t23))
	return tr, nil
}
