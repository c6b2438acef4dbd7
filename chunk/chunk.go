// Package chunk implements the bounded sample container (spec component
// C2): a sorted run of samples under one codec, with the mutation
// primitives a Series composes to grow, split and trim its chunk list.
package chunk

import (
	"fmt"
	"iter"
	"sort"

	"github.com/valkeymetrics/tsdb/codec"
	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/sample"
)

// SplitFactor is the fraction of MaxSizeBytes at which Upsert reports
// that the chunk should be split before the caller retries the insert.
const SplitFactor = 0.75

// uncompressedSampleWidth mirrors codec's fixed Uncompressed record size;
// Add's element-count capacity check for that encoding is derived from
// it rather than from a trial encode, per spec §4.2.
const uncompressedSampleWidth = 16

// Chunk holds a sorted, in-memory run of samples under one codec. The
// codec's encoded form is only materialized on demand (Bytes, or the
// size check inside Add/Upsert/MergeSamples) rather than kept
// continuously in sync, since most chunk lifetimes are dominated by
// sequential appends to the tail chunk.
type Chunk struct {
	encoding     format.Encoding
	maxSizeBytes int
	samples      []sample.Sample
	f            codec.Format
}

// New creates an empty chunk using enc, bounded by maxSizeBytes.
func New(enc format.Encoding, maxSizeBytes int) (*Chunk, error) {
	if maxSizeBytes <= 0 {
		return nil, fmt.Errorf("%w: max_size_bytes must be positive", errs.ErrInvalidChunkSize)
	}
	f, err := codec.New(enc)
	if err != nil {
		return nil, err
	}
	return &Chunk{encoding: enc, maxSizeBytes: maxSizeBytes, f: f}, nil
}

func (c *Chunk) Encoding() format.Encoding { return c.encoding }
func (c *Chunk) MaxSizeBytes() int         { return c.maxSizeBytes }
func (c *Chunk) NumSamples() int           { return len(c.samples) }
func (c *Chunk) IsEmpty() bool             { return len(c.samples) == 0 }

// FirstTs and LastTs satisfy invariant I4: defined only for non-empty
// chunks, they always reflect the extremes of the current sample set.
func (c *Chunk) FirstTs() (int64, bool) {
	if len(c.samples) == 0 {
		return 0, false
	}
	return c.samples[0].Ts, true
}

func (c *Chunk) LastTs() (int64, bool) {
	if len(c.samples) == 0 {
		return 0, false
	}
	return c.samples[len(c.samples)-1].Ts, true
}

func (c *Chunk) LastValue() (float64, bool) {
	if len(c.samples) == 0 {
		return 0, false
	}
	return c.samples[len(c.samples)-1].Val, true
}

// encodedSize returns the size in bytes the current sample set would
// occupy once encoded, used to enforce invariant I2.
func (c *Chunk) encodedSize() (int, error) {
	if c.encoding == format.Uncompressed {
		return len(c.samples) * uncompressedSampleWidth, nil
	}
	data, err := c.f.EncodeAll(c.samples)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// wouldExceed reports whether n candidate samples would push the
// encoded size past maxSizeBytes scaled by factor (1.0 for the hard
// capacity bound, SplitFactor for the split threshold).
func (c *Chunk) wouldExceed(candidate []sample.Sample, factor float64) (bool, error) {
	if c.encoding == format.Uncompressed {
		size := len(candidate) * uncompressedSampleWidth
		return float64(size) > float64(c.maxSizeBytes)*factor, nil
	}
	data, err := c.f.EncodeAll(candidate)
	if err != nil {
		return false, err
	}
	return float64(len(data)) > float64(c.maxSizeBytes)*factor, nil
}

// Add appends s, which must sort at or after the current tail (callers
// enforce this; Series never calls Add for an out-of-order timestamp).
// It fails CapacityFull rather than silently growing past the chunk's
// byte budget.
func (c *Chunk) Add(s sample.Sample) error {
	if len(c.samples) > 0 && s.Ts < c.samples[len(c.samples)-1].Ts {
		return fmt.Errorf("%w: sample out of order for Add", errs.ErrInternal)
	}

	candidate := append(append([]sample.Sample(nil), c.samples...), s)
	exceeds, err := c.wouldExceed(candidate, 1.0)
	if err != nil {
		return err
	}
	if exceeds {
		return errs.ErrCapacityFull
	}

	c.samples = candidate
	return nil
}

// Upsert inserts s or resolves a duplicate at an existing timestamp per
// policy, returning the change in sample count (0 or 1) and whether the
// caller should Split the chunk (size now exceeds SplitFactor of
// MaxSizeBytes). The sample is already applied when needsSplit is true.
func (c *Chunk) Upsert(s sample.Sample, policy format.DuplicatePolicy) (delta int, needsSplit bool, err error) {
	idx := sort.Search(len(c.samples), func(i int) bool { return c.samples[i].Ts >= s.Ts })

	var candidate []sample.Sample
	if idx < len(c.samples) && c.samples[idx].Ts == s.Ts {
		resolved, ok, rerr := resolveDuplicate(c.samples[idx], s, policy)
		if rerr != nil {
			return 0, false, rerr
		}
		if !ok {
			return 0, false, errs.ErrDuplicateSample
		}
		candidate = append(append([]sample.Sample(nil), c.samples[:idx]...), resolved)
		candidate = append(candidate, c.samples[idx+1:]...)
		delta = 0
	} else {
		candidate = make([]sample.Sample, 0, len(c.samples)+1)
		candidate = append(candidate, c.samples[:idx]...)
		candidate = append(candidate, s)
		candidate = append(candidate, c.samples[idx:]...)
		delta = 1
	}

	exceedsHard, err := c.wouldExceed(candidate, 1.0)
	if err != nil {
		return 0, false, err
	}
	if exceedsHard {
		return 0, false, errs.ErrCapacityFull
	}

	c.samples = candidate

	exceedsSplit, err := c.wouldExceed(c.samples, SplitFactor)
	if err != nil {
		return delta, false, err
	}
	return delta, exceedsSplit, nil
}

// resolveDuplicate implements spec §4.3's duplicate resolution table.
func resolveDuplicate(old, next sample.Sample, policy format.DuplicatePolicy) (sample.Sample, bool, error) {
	switch policy {
	case format.Block:
		return sample.Sample{}, false, nil
	case format.KeepFirst:
		return old, true, nil
	case format.KeepLast:
		return next, true, nil
	case format.Min:
		return sample.Sample{Ts: old.Ts, Val: pickNonNaN(old.Val, next.Val, min2)}, true, nil
	case format.Max:
		return sample.Sample{Ts: old.Ts, Val: pickNonNaN(old.Val, next.Val, max2)}, true, nil
	case format.Sum:
		return sample.Sample{Ts: old.Ts, Val: pickNonNaN(old.Val, next.Val, sum2)}, true, nil
	default:
		return sample.Sample{}, false, fmt.Errorf("%w: duplicate policy %v", errs.ErrInvalidDuplicatePolicy, policy)
	}
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func sum2(a, b float64) float64 { return a + b }

// pickNonNaN applies combine unless one side is NaN, in which case the
// non-NaN side wins outright (spec §4.3: "NaN is replaced by the
// non-NaN side except under Block").
func pickNonNaN(a, b float64, combine func(a, b float64) float64) float64 {
	aNaN, bNaN := isNaN(a), isNaN(b)
	switch {
	case aNaN && bNaN:
		return a
	case aNaN:
		return b
	case bNaN:
		return a
	default:
		return combine(a, b)
	}
}

func isNaN(v float64) bool { return v != v }

// Split partitions the chunk at floor(n/2): c keeps the lower half and
// the returned chunk holds the upper half (one longer for odd n).
func (c *Chunk) Split() (*Chunk, error) {
	n := len(c.samples)
	if n < 2 {
		return nil, fmt.Errorf("%w: chunk too small to split", errs.ErrInternal)
	}
	mid := n / 2

	upper, err := New(c.encoding, c.maxSizeBytes)
	if err != nil {
		return nil, err
	}
	upper.samples = append([]sample.Sample(nil), c.samples[mid:]...)
	c.samples = append([]sample.Sample(nil), c.samples[:mid]...)

	return upper, nil
}

// MergeSamples inserts a sorted sequence into the chunk, resolving
// duplicates per policy, stopping early (and returning the untouched
// remainder) if capacity is reached.
func (c *Chunk) MergeSamples(samples []sample.Sample, policy format.DuplicatePolicy) (merged int, remaining []sample.Sample, err error) {
	for i, s := range samples {
		delta, needsSplit, uerr := c.Upsert(s, policy)
		if uerr != nil {
			if uerr == errs.ErrCapacityFull {
				return merged, samples[i:], nil
			}
			if uerr == errs.ErrDuplicateSample {
				continue
			}
			return merged, samples[i:], uerr
		}
		merged += delta
		if needsSplit {
			return merged, samples[i+1:], nil
		}
	}
	return merged, nil, nil
}

// RemoveRange deletes samples with Ts in [start, end], reconstructing
// the chunk's sample set, and returns the number removed.
func (c *Chunk) RemoveRange(start, end int64) int {
	kept := c.samples[:0:0]
	removed := 0
	for _, s := range c.samples {
		if s.Ts >= start && s.Ts <= end {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	c.samples = kept
	return removed
}

// RangeIter yields samples with Ts in [start, end] in order.
func (c *Chunk) RangeIter(start, end int64) iter.Seq[sample.Sample] {
	return func(yield func(sample.Sample) bool) {
		lo := sort.Search(len(c.samples), func(i int) bool { return c.samples[i].Ts >= start })
		for i := lo; i < len(c.samples); i++ {
			s := c.samples[i]
			if s.Ts > end {
				return
			}
			if !yield(s) {
				return
			}
		}
	}
}

// SamplesByTimestamps performs a pointwise lookup for each requested
// timestamp; ts must already be sorted ascending.
func (c *Chunk) SamplesByTimestamps(ts []int64) []sample.Sample {
	var out []sample.Sample
	for _, t := range ts {
		idx := sort.Search(len(c.samples), func(i int) bool { return c.samples[i].Ts >= t })
		if idx < len(c.samples) && c.samples[idx].Ts == t {
			out = append(out, c.samples[idx])
		}
	}
	return out
}

// MoveLeadingTo moves samples off c's leading (lowest-timestamp) edge
// onto dst's tail, one at a time in timestamp order, stopping as soon
// as dst reports CapacityFull or c runs out of samples. Used by Series
// when a full tail chunk needs room for a new trailing sample: moving
// old samples back into the chunk that already precedes them preserves
// invariant S1 (chunks[i].last_ts < chunks[i+1].first_ts), unlike
// inserting the new, highest-timestamp sample into an earlier chunk.
func (c *Chunk) MoveLeadingTo(dst *Chunk) (moved int, err error) {
	for len(c.samples) > 0 {
		if aerr := dst.Add(c.samples[0]); aerr != nil {
			if aerr == errs.ErrCapacityFull {
				break
			}
			return moved, aerr
		}
		c.samples = c.samples[1:]
		moved++
	}
	return moved, nil
}

// Clone returns a deep copy, used where a caller needs to try a
// mutation without risking the original chunk's state.
func (c *Chunk) Clone() *Chunk {
	return &Chunk{
		encoding:     c.encoding,
		maxSizeBytes: c.maxSizeBytes,
		samples:      append([]sample.Sample(nil), c.samples...),
		f:            c.f,
	}
}

// Bytes encodes the current sample set using the chunk's codec, for
// persistence (C8).
func (c *Chunk) Bytes() ([]byte, error) {
	return c.f.EncodeAll(c.samples)
}

// Samples returns the chunk's decoded samples. The caller must not
// mutate the returned slice.
func (c *Chunk) Samples() []sample.Sample {
	return c.samples
}

// FromSamples rebuilds a chunk's in-memory state from previously
// decoded samples, used by persistence (C8) after DecodeInto.
func FromSamples(enc format.Encoding, maxSizeBytes int, samples []sample.Sample) (*Chunk, error) {
	c, err := New(enc, maxSizeBytes)
	if err != nil {
		return nil, err
	}
	c.samples = samples
	return c, nil
}
