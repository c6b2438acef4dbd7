// Package sample defines the core (timestamp, value) pair shared by every
// layer of the storage engine, plus the handful of pure helpers — staleness,
// rounding, duplicate resolution — that operate on single samples without
// needing a chunk or series around them.
package sample

import "math"

// StaleNaN is the Prometheus "stale marker" bit pattern. It is preserved
// verbatim through every encoding and every compression codec; ordinary
// NaN values carry no such guarantee.
const StaleNaN = uint64(0x7ff0000000000002)

// Sample is an immutable (timestamp, value) pair. Timestamps are
// milliseconds since the Unix epoch. Ordering is by Ts; two samples with
// equal Ts are resolved by duplicate policy, not by value comparison.
type Sample struct {
	Ts  int64
	Val float64
}

// IsStale reports whether Val carries the stale-marker bit pattern. This is
// an exact bit comparison: math.IsNaN would also match ordinary NaN values,
// which are not stale markers.
func (s Sample) IsStale() bool {
	return math.Float64bits(s.Val) == StaleNaN
}

// Stale returns a sample at ts carrying the stale-marker value.
func Stale(ts int64) Sample {
	return Sample{Ts: ts, Val: math.Float64frombits(StaleNaN)}
}

// Less reports whether a sorts strictly before b by timestamp.
func Less(a, b Sample) bool { return a.Ts < b.Ts }

// Bits returns the IEEE-754 bit pattern of v, used by codecs that store
// or XOR-compress values as raw uint64 (Uncompressed, Gorilla).
func Bits(v float64) uint64 { return math.Float64bits(v) }

// FromBits is the inverse of Bits.
func FromBits(b uint64) float64 { return math.Float64frombits(b) }

// RoundSignificant rounds v to k significant digits, rounding the
// mantissa up (toward +Inf in magnitude) rather than to nearest-even.
// NaN, +/-Inf and 0 pass through unchanged. k must be in [1,16]; k==0
// means "no rounding" and returns v unchanged.
//
// The source engine documents this as rounding "up" for significant
// digits; callers expecting nearest-even rounding will observe drift
// versus a standard library implementation. This is intentional — see
// DESIGN.md open-question (iii).
func RoundSignificant(v float64, k uint8) float64 {
	if k == 0 || v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}

	sign := 1.0
	if v < 0 {
		sign = -1.0
		v = -v
	}

	// Number of digits left of the decimal point in v, e.g. 3 for 234.5.
	magnitude := math.Floor(math.Log10(v)) + 1
	scale := math.Pow(10, float64(k)-magnitude)

	rounded := math.Ceil(v*scale) / scale

	return sign * rounded
}
