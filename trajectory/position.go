package trajectory

// Position is an encoder position with sub-count resolution. Ext holds the
// millicount remainder and is kept in [0, 1000) so Count is always the floor of
// the exact position.
type Position struct {
	Count int32
	Ext   int32
}

// Counts returns the position of a whole encoder count.
func Counts(count int32) Position {
	return Position{Count: count}
}

// PositionFromMilli converts millicounts to a normalized Position.
func PositionFromMilli(mcount int64) Position {
	count := mcount / millicountsPerCount
	ext := mcount % millicountsPerCount
	if ext < 0 {
		ext += millicountsPerCount
		count--
	}
	return Position{Count: int32(count), Ext: int32(ext)}
}

// Milli returns the position in millicounts.
func (p Position) Milli() int64 {
	return int64(p.Count)*millicountsPerCount + int64(p.Ext)
}

// Add returns p moved by mcount millicounts, renormalized.
func (p Position) Add(mcount int64) Position {
	return PositionFromMilli(p.Milli() + mcount)
}

// Sub returns p-q in millicounts.
func (p Position) Sub(q Position) int64 {
	return p.Milli() - q.Milli()
}
