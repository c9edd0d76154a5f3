package trajectory

import "testing"

func TestDistanceOverTime(t *testing.T) {
	tests := []struct {
		rate, dt int32
		want     int64
	}{
		{1000, 1000000, 1000000},
		{1000, 1, 1},
		{-3, 500, -1},
		{0, 600000000, 0},
		{RateMax, DurationMaxMs * UsPerMs, 10066329600000},
		{-RateMax, DurationMaxMs * UsPerMs, -10066329600000},
	}
	for _, tt := range tests {
		if got := DistanceOverTime(tt.rate, tt.dt); got != tt.want {
			t.Errorf("DistanceOverTime(%d, %d) = %d, want %d", tt.rate, tt.dt, got, tt.want)
		}
	}
}

func TestHalfAccelTimeSquared(t *testing.T) {
	tests := []struct {
		accel, dt int32
		want      int64
	}{
		{2000, 500000, 250000},
		{2000, 158000, 24964},
		{-2000, 250000, -62500},
		{AccelMax, DurationMaxMs * UsPerMs, 3019898880000000},
		{-AccelMax, DurationMaxMs * UsPerMs, -3019898880000000},
	}
	for _, tt := range tests {
		if got := HalfAccelTimeSquared(tt.accel, tt.dt); got != tt.want {
			t.Errorf("HalfAccelTimeSquared(%d, %d) = %d, want %d", tt.accel, tt.dt, got, tt.want)
		}
	}
}

func TestRateGainAndGap(t *testing.T) {
	if got := RateGain(2000, 250000); got != 500 {
		t.Errorf("RateGain = %d, want 500", got)
	}
	if got := RateGain(-2000, 250000); got != -500 {
		t.Errorf("RateGain = %d, want -500", got)
	}
	if got := TimeToCloseGap(1000, 2000); got != 500000 {
		t.Errorf("TimeToCloseGap = %d, want 500000", got)
	}
	if got := TimeToCloseGap(2*RateMax, 1); got != 2*RateMax*UsPerSecond {
		t.Errorf("TimeToCloseGap overflowed: %d", got)
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		a, b, c, want int64
	}{
		{6, 7, 2, 21},
		{-7, 3, 2, -10},
		{7, -3, 2, -10},
		{-7, -3, 2, 10},
		{1 << 40, 1 << 40, 1 << 30, 1 << 50},
	}
	for _, tt := range tests {
		if got := mulDiv(tt.a, tt.b, tt.c); got != tt.want {
			t.Errorf("mulDiv(%d, %d, %d) = %d, want %d", tt.a, tt.b, tt.c, got, tt.want)
		}
	}
}

func TestIsqrt(t *testing.T) {
	tests := []struct {
		n, want int64
	}{
		{0, 0},
		{1, 1},
		{3, 1},
		{4, 2},
		{100000, 316},
		{1 << 62, 1 << 31},
		{1<<62 - 1, 1<<31 - 1},
	}
	for _, tt := range tests {
		if got := isqrt(tt.n); got != tt.want {
			t.Errorf("isqrt(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestBeforeWraps(t *testing.T) {
	var late int32 = 1<<31 - 10
	early := late + 20 // wraps negative
	if !before(late, early) {
		t.Errorf("before(%d, %d) = false across wrap", late, early)
	}
	if before(early, late) {
		t.Errorf("before(%d, %d) = true across wrap", early, late)
	}
}

func TestPosition(t *testing.T) {
	tests := []struct {
		mcount int64
		want   Position
	}{
		{0, Position{0, 0}},
		{2500, Position{2, 500}},
		{-1, Position{-1, 999}},
		{-1500, Position{-2, 500}},
		{-2000, Position{-2, 0}},
	}
	for _, tt := range tests {
		got := PositionFromMilli(tt.mcount)
		if got != tt.want {
			t.Errorf("PositionFromMilli(%d) = %+v, want %+v", tt.mcount, got, tt.want)
		}
		if got.Milli() != tt.mcount {
			t.Errorf("Milli() = %d, want %d", got.Milli(), tt.mcount)
		}
	}

	p := Position{1, 900}.Add(200)
	if p != (Position{2, 100}) {
		t.Errorf("Add = %+v, want {2 100}", p)
	}
	if d := p.Sub(Position{-1, 500}); d != 2600 {
		t.Errorf("Sub = %d, want 2600", d)
	}
}
