package trajectory

// Reference is a sample of a profile.
type Reference struct {
	Position     Position
	Rate         int32 // counts/s
	Acceleration int32 // counts/s^2
}

// Reference evaluates the profile at time now. Before T0 the start state is
// returned with zero acceleration. After T3 the position advances at W3.
// Within a phase the position follows the phase's rate and acceleration plus
// a linear share of any gap to the next boundary position, so the position
// is continuous at every boundary.
func (tr *Trajectory) Reference(now int32) Reference {
	switch {
	case before(now, tr.T0):
		return Reference{Position: tr.Th0, Rate: tr.W0}
	case before(now, tr.T1):
		dt := now - tr.T0
		return Reference{
			Position:     tr.Th0.Add(phaseDistance(tr.Th0, tr.Th1, tr.W0, tr.A0, dt, tr.T1-tr.T0)),
			Rate:         tr.W0 + RateGain(tr.A0, dt),
			Acceleration: tr.A0,
		}
	case before(now, tr.T2):
		dt := now - tr.T1
		return Reference{
			Position: tr.Th1.Add(phaseDistance(tr.Th1, tr.Th2, tr.W1, 0, dt, tr.T2-tr.T1)),
			Rate:     tr.W1,
		}
	case before(now, tr.T3):
		dt := now - tr.T2
		return Reference{
			Position:     tr.Th2.Add(phaseDistance(tr.Th2, tr.Th3, tr.W1, tr.A2, dt, tr.T3-tr.T2)),
			Rate:         tr.W1 + RateGain(tr.A2, dt),
			Acceleration: tr.A2,
		}
	}
	dt := now - tr.T3
	return Reference{
		Position: tr.Th3.Add(DistanceOverTime(tr.W3, dt)),
		Rate:     tr.W3,
	}
}

// rampDistance is the distance in millicounts covered in dt microseconds
// from rate w at acceleration a.
func rampDistance(w, a, dt int32) int64 {
	return DistanceOverTime(w, dt) + HalfAccelTimeSquared(a, dt)
}

// phaseDistance is the distance covered dt into a phase of length span that
// runs from start to end, starting at rate w with acceleration a.
func phaseDistance(start, end Position, w, a, dt, span int32) int64 {
	gap := end.Sub(start) - rampDistance(w, a, span)
	return rampDistance(w, a, dt) + share(gap, int64(dt), int64(span))
}

// share returns part/whole of gap, truncated toward zero.
func share(gap, part, whole int64) int64 {
	if gap == 0 || whole <= 0 || part <= 0 {
		return 0
	}
	return mulDiv(gap, part, whole)
}
