// Package aggregate implements the fixed, closed set of twelve
// aggregators spec component C7 names: first, last, min, max, avg, sum,
// count, range, std.s, std.p, var.s, var.p.
package aggregate

import (
	"fmt"
	"math"
	"strings"

	"github.com/valkeymetrics/tsdb/errs"
)

// Kind identifies one of the twelve fixed aggregators.
type Kind uint8

const (
	First Kind = iota + 1
	Last
	Min
	Max
	Avg
	Sum
	Count
	Range
	StdSample
	StdPop
	VarSample
	VarPop
)

func (k Kind) String() string {
	switch k {
	case First:
		return "first"
	case Last:
		return "last"
	case Min:
		return "min"
	case Max:
		return "max"
	case Avg:
		return "avg"
	case Sum:
		return "sum"
	case Count:
		return "count"
	case Range:
		return "range"
	case StdSample:
		return "std.s"
	case StdPop:
		return "std.p"
	case VarSample:
		return "var.s"
	case VarPop:
		return "var.p"
	default:
		return "unknown"
	}
}

// ParseKind accepts the stable textual names listed above.
func ParseKind(name string) (Kind, bool) {
	switch strings.ToLower(name) {
	case "first":
		return First, true
	case "last":
		return Last, true
	case "min":
		return Min, true
	case "max":
		return Max, true
	case "avg", "average":
		return Avg, true
	case "sum":
		return Sum, true
	case "count":
		return Count, true
	case "range":
		return Range, true
	case "std.s", "stddev", "std_s":
		return StdSample, true
	case "std.p", "std_p":
		return StdPop, true
	case "var.s", "var_s":
		return VarSample, true
	case "var.p", "var_p":
		return VarPop, true
	default:
		return 0, false
	}
}

// State is an aggregator's serializable internal state, sufficient to
// resume accumulation (save/load, spec §4.7).
type State struct {
	Count   int64
	Sum     float64
	SumSq   float64
	Min     float64
	Max     float64
	First   float64
	Last    float64
	hasData bool
}

// Aggregator accumulates samples for one of the twelve fixed kinds.
type Aggregator struct {
	kind  Kind
	state State
}

// New creates a reset aggregator of the given kind.
func New(kind Kind) (*Aggregator, error) {
	switch kind {
	case First, Last, Min, Max, Avg, Sum, Count, Range, StdSample, StdPop, VarSample, VarPop:
		a := &Aggregator{kind: kind}
		a.Reset()
		return a, nil
	default:
		return nil, fmt.Errorf("%w: unknown aggregator kind %d", errs.ErrInvalidSelector, kind)
	}
}

func (a *Aggregator) Name() string { return a.kind.String() }
func (a *Aggregator) Kind() Kind   { return a.kind }

// Reset clears accumulated state.
func (a *Aggregator) Reset() {
	a.state = State{Min: math.Inf(1), Max: math.Inf(-1)}
}

// Update folds v into the running state.
func (a *Aggregator) Update(v float64) {
	if !a.state.hasData {
		a.state.First = v
		a.state.hasData = true
	}
	a.state.Last = v
	a.state.Count++
	a.state.Sum += v
	a.state.SumSq += v * v
	if v < a.state.Min {
		a.state.Min = v
	}
	if v > a.state.Max {
		a.state.Max = v
	}
}

// Finalize returns the aggregated value and whether it is defined.
// Undefined cases (spec §4.7): avg/range/std/var with zero samples,
// var.s additionally returns 0 (defined) for exactly one sample.
func (a *Aggregator) Finalize() (float64, bool) {
	s := a.state
	switch a.kind {
	case First:
		return s.First, s.hasData
	case Last:
		return s.Last, s.hasData
	case Min:
		return s.Min, s.hasData
	case Max:
		return s.Max, s.hasData
	case Sum:
		return s.Sum, true
	case Count:
		return float64(s.Count), true
	case Avg:
		if s.Count == 0 {
			return 0, false
		}
		return s.Sum / float64(s.Count), true
	case Range:
		if !s.hasData {
			return 0, false
		}
		return s.Max - s.Min, true
	case VarPop:
		if s.Count < 1 {
			return 0, false
		}
		return popVariance(s), true
	case VarSample:
		if s.Count < 1 {
			return 0, false
		}
		if s.Count == 1 {
			return 0, true
		}
		return sampleVariance(s), true
	case StdPop:
		if s.Count < 1 {
			return 0, false
		}
		return math.Sqrt(popVariance(s)), true
	case StdSample:
		if s.Count < 1 {
			return 0, false
		}
		if s.Count == 1 {
			return 0, true
		}
		return math.Sqrt(sampleVariance(s)), true
	default:
		return 0, false
	}
}

// popVariance computes var.p = (Sum(x^2) - 2*Sum(x)*mean + mean^2*n) / n,
// the exact form spec §4.7 names rather than the algebraically simpler
// Sum(x^2)/n - mean^2, so a rounding-mode audit against the spec's
// formula reads directly off this code.
func popVariance(s State) float64 {
	n := float64(s.Count)
	mean := s.Sum / n
	return (s.SumSq - 2*s.Sum*mean + mean*mean*n) / n
}

func sampleVariance(s State) float64 {
	n := float64(s.Count)
	mean := s.Sum / n
	return (s.SumSq - 2*s.Sum*mean + mean*mean*n) / (n - 1)
}

// EmptyValue is the value rangequery's bucketAndAggregate fills gaps with when the bucket
// range's empty=true policy applies. Sum and Count are never undefined
// at zero samples (sum of nothing is 0, same as count of nothing); the
// rest are only defined once at least one sample has landed, so an
// empty bucket fills with NaN.
func (a *Aggregator) EmptyValue() float64 {
	switch a.kind {
	case Count, Sum:
		return 0
	default:
		return math.NaN()
	}
}

// Snapshot returns a copy of the aggregator's internal state.
func (a *Aggregator) Snapshot() State { return a.state }

// Restore replaces the aggregator's internal state, e.g. when resuming
// a partially-filled bucket.
func (a *Aggregator) Restore(s State) { a.state = s }
