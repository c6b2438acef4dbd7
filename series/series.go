// Package series implements the ordered chunk list a Series owns (spec
// component C3): retention, dedupe, duplicate resolution, significant
// digit rounding and the chunk-locate policy used by every read and
// write path.
package series

import (
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/valkeymetrics/tsdb/chunk"
	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/label"
	"github.com/valkeymetrics/tsdb/sample"
)

// linearScanThreshold is the chunk-count boundary below which Locate
// scans linearly instead of binary searching; spec §4.3 fixes this
// policy for reproducibility in tests.
const linearScanThreshold = 16

// Config holds the immutable-after-creation and mutable-by-AlterSeries
// settings of a Series.
type Config struct {
	Encoding          format.Encoding
	ChunkSizeBytes    int
	Retention         time.Duration
	DedupeInterval    time.Duration // 0 means disabled
	DuplicatePolicy   format.DuplicatePolicy
	SignificantDigits uint8 // 0 means "no rounding"
}

// Series is an ordered, non-overlapping list of chunks sharing one
// Config, plus the identity and cached extremes spec §3 names.
type Series struct {
	ID     uint64
	Metric string
	Labels label.Labels
	Config Config

	chunks []*chunk.Chunk

	totalSamples int
	firstTs      int64
	lastTs       int64
	lastValue    float64
	hasSamples   bool
}

// New creates an empty series. id must already be resolved (hash.SeriesID)
// and non-zero (invariant S4); the caller (tsdb.Engine.CreateSeries), not
// this package, is responsible for collision retry.
func New(id uint64, metric string, labels label.Labels, cfg Config) (*Series, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: series id must not be zero", errs.ErrInternal)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Series{ID: id, Metric: metric, Labels: labels, Config: cfg}, nil
}

func validateConfig(cfg Config) error {
	if cfg.ChunkSizeBytes <= 0 {
		return fmt.Errorf("%w: chunk_size_bytes must be positive", errs.ErrInvalidChunkSize)
	}
	if cfg.SignificantDigits > 16 {
		return fmt.Errorf("%w: significant_digits out of [0,16]", errs.ErrInvalidSignificantDigits)
	}
	return nil
}

func (s *Series) TotalSamples() int { return s.totalSamples }
func (s *Series) IsEmpty() bool     { return s.totalSamples == 0 }

func (s *Series) FirstSample() (sample.Sample, bool) {
	if !s.hasSamples {
		return sample.Sample{}, false
	}
	return s.chunks[0].Samples()[0], true
}

func (s *Series) LastSample() (sample.Sample, bool) {
	if !s.hasSamples {
		return sample.Sample{}, false
	}
	return sample.Sample{Ts: s.lastTs, Val: s.lastValue}, true
}

// MemoryUsage estimates resident bytes: 16 bytes per in-memory sample
// plus per-chunk overhead, used for diagnostics/CARDINALITY-adjacent
// reporting rather than exact accounting.
func (s *Series) MemoryUsage() int {
	const chunkOverhead = 64
	return s.totalSamples*16 + len(s.chunks)*chunkOverhead
}

func (s *Series) recomputeCache() {
	s.totalSamples = 0
	for _, c := range s.chunks {
		s.totalSamples += c.NumSamples()
	}
	s.hasSamples = s.totalSamples > 0
	if !s.hasSamples {
		s.firstTs, s.lastTs, s.lastValue = 0, 0, 0
		return
	}
	first, _ := s.chunks[0].FirstTs()
	last, _ := s.chunks[len(s.chunks)-1].LastTs()
	lastVal, _ := s.chunks[len(s.chunks)-1].LastValue()
	s.firstTs, s.lastTs, s.lastValue = first, last, lastVal
}

// adjustValue applies the configured significant-digit rounding.
func (s *Series) adjustValue(v float64) float64 {
	return sample.RoundSignificant(v, s.Config.SignificantDigits)
}

// locate returns the index of the chunk whose [first_ts,last_ts]
// contains ts, or the index of the chunk into which ts would be
// inserted (the first chunk whose first_ts > ts, or len(chunks) if
// ts is past every chunk).
func (s *Series) locate(ts int64) (idx int, exact bool) {
	n := len(s.chunks)
	if n <= linearScanThreshold {
		for i, c := range s.chunks {
			first, _ := c.FirstTs()
			last, _ := c.LastTs()
			if ts < first {
				return i, false
			}
			if ts <= last {
				return i, true
			}
		}
		return n, false
	}

	i := sort.Search(n, func(i int) bool {
		last, _ := s.chunks[i].LastTs()
		return last >= ts
	})
	if i < n {
		first, _ := s.chunks[i].FirstTs()
		if ts >= first {
			return i, true
		}
	}
	return i, false
}

func (s *Series) newChunk() (*chunk.Chunk, error) {
	return chunk.New(s.Config.Encoding, s.Config.ChunkSizeBytes)
}

// Add appends (ts, value) to the tail, applying retention, dedupe and
// rounding per spec §4.3. Timestamps at or before the current last_ts
// are delegated to Upsert.
func (s *Series) Add(ts int64, value float64) (int, error) {
	if s.hasSamples {
		if s.Config.Retention > 0 && ts < s.lastTs-s.Config.Retention.Milliseconds() {
			return 0, errs.ErrSampleTooOld
		}
		if s.Config.DedupeInterval > 0 && ts >= s.lastTs && ts-s.lastTs < s.Config.DedupeInterval.Milliseconds() {
			return 0, errs.ErrDuplicateSample
		}
		if ts <= s.lastTs {
			return s.Upsert(ts, value)
		}
	}

	value = s.adjustValue(value)

	if len(s.chunks) == 0 {
		c, err := s.newChunk()
		if err != nil {
			return 0, err
		}
		s.chunks = append(s.chunks, c)
	}

	tail := s.chunks[len(s.chunks)-1]
	if err := tail.Add(sample.Sample{Ts: ts, Val: value}); err != nil {
		if err != errs.ErrCapacityFull {
			return 0, fmt.Errorf("%w: %v", errs.ErrCannotAddSample, err)
		}

		if len(s.chunks) > 1 {
			prev := s.chunks[len(s.chunks)-2]
			moved, merr := tail.MoveLeadingTo(prev)
			if merr != nil {
				return 0, merr
			}
			if moved > 0 {
				if aerr := tail.Add(sample.Sample{Ts: ts, Val: value}); aerr == nil {
					s.recomputeCache()
					return 1, nil
				}
			}
		}

		next, nerr := s.newChunk()
		if nerr != nil {
			return 0, nerr
		}
		if aerr := next.Add(sample.Sample{Ts: ts, Val: value}); aerr != nil {
			return 0, fmt.Errorf("%w: %v", errs.ErrCannotAddSample, aerr)
		}
		s.chunks = append(s.chunks, next)
	}

	s.recomputeCache()
	return 1, nil
}

// Upsert locates the chunk owning ts (or the insertion gap) and
// delegates to the chunk's Upsert, which applies the sample; if the chunk
// reports it has crossed SplitFactor, the chunk is then split in place.
func (s *Series) Upsert(ts int64, value float64) (int, error) {
	value = s.adjustValue(value)

	idx, exact := s.locate(ts)
	if !exact {
		if len(s.chunks) == 0 {
			c, err := s.newChunk()
			if err != nil {
				return 0, err
			}
			s.chunks = append(s.chunks, c)
			idx = 0
		} else if idx >= len(s.chunks) {
			idx = len(s.chunks) - 1
		} else if idx > 0 {
			idx--
		}
	}

	target := s.chunks[idx]
	delta, needsSplit, err := target.Upsert(sample.Sample{Ts: ts, Val: value}, s.Config.DuplicatePolicy)
	if err != nil {
		return 0, err
	}

	if needsSplit {
		upper, serr := target.Split()
		if serr != nil {
			return delta, s.finishUpsert(delta, ts, value)
		}
		s.chunks = append(s.chunks[:idx+1], append([]*chunk.Chunk{upper}, s.chunks[idx+1:]...)...)
	}

	return delta, s.finishUpsert(delta, ts, value)
}

func (s *Series) finishUpsert(delta int, ts int64, value float64) error {
	s.recomputeCache()
	if s.hasSamples && ts == s.lastTs {
		s.lastValue = value
	}
	_ = delta
	return nil
}

// GetRange returns all samples with Ts in [start, end].
func (s *Series) GetRange(start, end int64) []sample.Sample {
	var out []sample.Sample
	for sm := range s.RangeIter(start, end) {
		out = append(out, sm)
	}
	return out
}

// RangeIter walks chunks in order from the first, skipping chunks that
// end before start, until a chunk's first_ts exceeds end.
func (s *Series) RangeIter(start, end int64) iter.Seq[sample.Sample] {
	return func(yield func(sample.Sample) bool) {
		for _, c := range s.chunks {
			first, ok := c.FirstTs()
			if !ok {
				continue
			}
			if first > end {
				return
			}
			last, _ := c.LastTs()
			if last < start {
				continue
			}
			for sm := range c.RangeIter(start, end) {
				if !yield(sm) {
					return
				}
			}
		}
	}
}

// SamplesByTimestamps partitions ts by the chunk whose range contains
// each one, queries each chunk once, then returns the concatenated,
// sorted result.
func (s *Series) SamplesByTimestamps(ts []int64) []sample.Sample {
	perChunk := make(map[int][]int64)
	for _, t := range ts {
		idx, exact := s.locate(t)
		if !exact {
			continue
		}
		perChunk[idx] = append(perChunk[idx], t)
	}

	var out []sample.Sample
	for idx, tsList := range perChunk {
		out = append(out, s.chunks[idx].SamplesByTimestamps(tsList)...)
	}
	sort.Slice(out, func(i, j int) bool { return sample.Less(out[i], out[j]) })
	return out
}

// RemoveRange deletes samples in [start, end], pruning emptied chunks
// and recomputing cached metadata.
func (s *Series) RemoveRange(start, end int64) int {
	removed := 0
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		first, ok := c.FirstTs()
		if !ok {
			continue
		}
		last, _ := c.LastTs()
		if last < start || first > end {
			kept = append(kept, c)
			continue
		}
		if first >= start && last <= end {
			removed += c.NumSamples()
			continue
		}
		removed += c.RemoveRange(start, end)
		if !c.IsEmpty() {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	s.recomputeCache()
	return removed
}

// Trim drops chunks entirely older than last_ts - retention, and
// partially trims the first remaining chunk, restoring invariant S5.
func (s *Series) Trim() {
	if s.Config.Retention <= 0 || !s.hasSamples {
		return
	}
	minTs := s.lastTs - s.Config.Retention.Milliseconds()

	kept := s.chunks[:0]
	for _, c := range s.chunks {
		last, ok := c.LastTs()
		if !ok {
			continue
		}
		if last < minTs {
			continue
		}
		kept = append(kept, c)
	}
	s.chunks = kept

	if len(s.chunks) > 0 {
		first, _ := s.chunks[0].FirstTs()
		if first < minTs {
			s.chunks[0].RemoveRange(0, minTs-1)
		}
	}
	s.recomputeCache()
}

// Chunks exposes the series' chunk list for persistence (C8); callers
// must not mutate it directly.
func (s *Series) Chunks() []*chunk.Chunk { return s.chunks }

// RestoreChunks replaces the chunk list, used when loading a persisted
// series, and recomputes cached metadata.
func (s *Series) RestoreChunks(chunks []*chunk.Chunk) {
	s.chunks = chunks
	s.recomputeCache()
}
