package trajectory

import "math/bits"

// Time and range constants. Times are microseconds on a free-running 32-bit
// clock, rates are counts/s and accelerations counts/s^2.
const (
	MsPerSecond = 1000
	UsPerMs     = 1000
	UsPerSecond = 1000000

	// DurationMaxMs bounds both timed commands and the length of any solved profile.
	DurationMaxMs = 10 * 60 * MsPerSecond

	// RateMax and AccelMax bound the magnitudes a command may carry.
	RateMax  = 1 << 24
	AccelMax = 1 << 24

	millicountsPerCount = 1000
)

// DistanceOverTime returns the distance in millicounts covered at a constant
// rate (counts/s) during dt microseconds. The product cannot overflow for any
// int32 inputs; the result is truncated toward zero, so the error is below one
// millicount.
func DistanceOverTime(rate, dt int32) int64 {
	return int64(rate) * int64(dt) / UsPerMs
}

// HalfAccelTimeSquared returns 1/2*accel*dt^2 in millicounts for accel in
// counts/s^2 and dt in microseconds. The square is formed in 128 bits, so it
// is exact (truncated toward zero, error below one millicount) for every int32
// input.
func HalfAccelTimeSquared(accel, dt int32) int64 {
	t := abs64(int64(dt))
	return mulDiv(int64(accel), int64(t*t), 2*UsPerSecond*UsPerMs)
}

// RateGain returns the rate change in counts/s after accelerating for dt
// microseconds.
func RateGain(accel, dt int32) int32 {
	return int32(int64(accel) * int64(dt) / UsPerSecond)
}

// TimeToCloseGap returns the time in microseconds needed to change the rate by
// dw at the given acceleration magnitude. The acceleration must be nonzero.
// The result is truncated toward zero (error below one microsecond).
func TimeToCloseGap(dw, accel int32) int64 {
	return int64(dw) * UsPerSecond / int64(accel)
}

// mulDiv returns a*b/c truncated toward zero using a 128-bit intermediate.
// c must be positive and the quotient must fit in 63 bits.
func mulDiv(a, b, c int64) int64 {
	hi, lo := bits.Mul64(abs64(a), abs64(b))
	q, _ := bits.Div64(hi, lo, uint64(c))
	if (a < 0) != (b < 0) {
		return -int64(q)
	}
	return int64(q)
}

// isqrt returns floor(sqrt(n)) for n >= 0.
func isqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	// Newton's method from an initial guess above the root
	x := int64(1) << ((bits.Len64(uint64(n)) + 1) / 2)
	for {
		y := (x + n/x) / 2
		if y >= x {
			return x
		}
		x = y
	}
}

// stopDistance is the distance in millicounts needed to bring rate w to zero
// at acceleration magnitude a.
func stopDistance(w, a int64) int64 {
	return w * w * (millicountsPerCount / 2) / a
}

// cruiseTime is the time in microseconds to cover d millicounts at rate w.
func cruiseTime(d, w int64) int64 {
	if w == 0 {
		return 0
	}
	return d * UsPerMs / w
}

func abs64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

func sign(v int64) int64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// before reports whether a happens before b on the wrapping clock.
func before(a, b int32) bool {
	return a-b < 0
}
