// Package trajectory computes trapezoidal motion profiles in integer
// arithmetic and samples them at arbitrary times.
//
// A profile has four boundary times T0 <= T1 <= T2 <= T3. Between T0 and T1
// the rate changes from W0 to W1 with acceleration A0, between T1 and T2 the
// rate is held at W1 and between T2 and T3 it changes to W3 with acceleration
// A2. After T3 the rate stays at W3, which is zero unless the move continues
// running.
package trajectory

// Trajectory is a solved profile. It is a plain value: replacing the profile
// of a running actuator means assigning a new Trajectory as a whole.
type Trajectory struct {
	T0, T1, T2, T3     int32 // boundary times (µs)
	Th0, Th1, Th2, Th3 Position

	W0, W1, W3 int32 // start, cruise and final rate (counts/s)
	A0, A2     int32 // in-phase and out-phase acceleration (counts/s^2)
}

// MakeConstant returns a profile that holds the command's start position
// from the command's start time on.
func MakeConstant(c Command) Trajectory {
	return Trajectory{
		T0: c.Time, T1: c.Time, T2: c.Time, T3: c.Time,
		Th0: c.Start, Th1: c.Start, Th2: c.Start, Th3: c.Start,
	}
}

// endAt makes the profile finish at th3. The gap between th3 and the
// position the phases reach from their rates alone is shared out over the
// phases in proportion to their length, from T0 on or, with fromT1, from T1
// on so that everything before T1 is left as it is.
func (tr *Trajectory) endAt(th3 Position, fromT1 bool) {
	t01, t12, t23 := tr.Phases()
	d01 := rampDistance(tr.W0, tr.A0, t01)
	d12 := DistanceOverTime(tr.W1, t12)
	d23 := rampDistance(tr.W1, tr.A2, t23)
	tr.Th3 = th3
	if fromT1 {
		gap := th3.Sub(tr.Th1) - d12 - d23
		tr.Th2 = tr.Th1.Add(d12 + share(gap, int64(t12), int64(t12)+int64(t23)))
		return
	}
	span := int64(t01) + int64(t12) + int64(t23)
	gap := th3.Sub(tr.Th0) - d01 - d12 - d23
	tr.Th1 = tr.Th0.Add(d01 + share(gap, int64(t01), span))
	tr.Th2 = tr.Th0.Add(d01 + d12 + share(gap, int64(t01)+int64(t12), span))
}

// Duration returns T3-T0 in microseconds.
func (tr *Trajectory) Duration() int32 {
	return tr.T3 - tr.T0
}

// IsConstant reports whether the profile holds a single position.
func (tr *Trajectory) IsConstant() bool {
	return tr.T0 == tr.T3 && tr.W0 == 0 && tr.W1 == 0 && tr.W3 == 0
}

// Continuing reports whether the profile keeps moving after T3.
func (tr *Trajectory) Continuing() bool {
	return tr.W3 != 0
}

// Finished reports whether a profile that comes to rest has reached its end
// at time now. Continuing profiles never finish.
func (tr *Trajectory) Finished(now int32) bool {
	return tr.W3 == 0 && !before(now, tr.T3)
}

// Phases returns the durations of the three phases in microseconds.
func (tr *Trajectory) Phases() (in, cruise, out int32) {
	return tr.T1 - tr.T0, tr.T2 - tr.T1, tr.T3 - tr.T2
}

// Rebase returns a profile that cruises at W3 from the reference at now.
// Long-running continuing profiles are rebased so that the wrapping clock
// never moves far from T3.
func (tr *Trajectory) Rebase(now int32) Trajectory {
	ref := tr.Reference(now)
	return Trajectory{
		T0: now, T1: now, T2: now, T3: now,
		Th0: ref.Position, Th1: ref.Position, Th2: ref.Position, Th3: ref.Position,
		W0: tr.W3, W1: tr.W3, W3: tr.W3,
	}
}
