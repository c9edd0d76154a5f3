package trajectory

// Stretch returns tr retimed so that its boundaries fall at T0 plus the given
// durations (µs) while it still starts at Th0 with W0 and ends exactly at
// Th3. The cruise rate and both accelerations are recomputed. No phase may
// become shorter than it was; on error tr is returned unchanged.
//
// The new accelerations are only bounded by AccelMax, not by the limits the
// profile was solved with. With a nonzero W0 the in-phase may gain an
// acceleration it did not have before; callers holding axis limits check A0
// and A2 against them.
func Stretch(tr Trajectory, t1mt0, t2mt0, t3mt0 int32) (Trajectory, error) {
	if tr.IsConstant() {
		return tr, nil
	}
	in, cruise, out := tr.Phases()
	if t1mt0 < in || t2mt0-t1mt0 < cruise || t3mt0-t2mt0 < out ||
		t2mt0 < t1mt0 || t3mt0 < t2mt0 || int64(t3mt0) > maxProfileUs {
		return tr, errCompress
	}

	t1, t2, t3 := int64(t1mt0), int64(t2mt0), int64(t3mt0)
	w0 := int64(tr.W0)
	d := 2 * UsPerMs * tr.Th3.Sub(tr.Th0)

	var w1, w3 int64
	if tr.Continuing() {
		den := 2*t3 - t1
		if den == 0 {
			return tr, nil
		}
		w1 = (d - w0*t1) / den
		w3 = w1
	} else {
		den := t3 + t2 - t1
		if den == 0 {
			return tr, nil
		}
		w1 = (d - w0*t1) / den
	}
	if abs64(w1) > RateMax {
		return tr, errStretchRange
	}

	var a0, a2 int64
	if t1 > 0 {
		a0 = (w1 - w0) * UsPerSecond / t1
	}
	if t3 > t2 {
		a2 = (w3 - w1) * UsPerSecond / (t3 - t2)
	}
	if abs64(a0) > AccelMax || abs64(a2) > AccelMax {
		return tr, errStretchRange
	}

	res := tr
	res.T1 = tr.T0 + t1mt0
	res.T2 = tr.T0 + t2mt0
	res.T3 = tr.T0 + t3mt0
	res.W1, res.W3 = int32(w1), int32(w3)
	res.A0, res.A2 = int32(a0), int32(a2)
	res.endAt(tr.Th3, false)
	return res, nil
}
