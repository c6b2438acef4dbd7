// Package rangequery implements the lazy range pipeline (spec component
// C6): chunk iteration, timestamp/value filtering, bucketed aggregation
// and a result limit, composed over one Series.
package rangequery

import (
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/valkeymetrics/tsdb/aggregate"
	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/sample"
	"github.com/valkeymetrics/tsdb/series"
)

// Aggregation configures the optional bucketing/aggregation stage.
type Aggregation struct {
	Kind            aggregate.Kind
	BucketDuration  time.Duration
	Alignment       format.Alignment
	AlignTimestamp  int64 // used only when Alignment == format.AlignTimestamp
	BucketTimestamp format.BucketTimestamp
	Empty           bool
}

// Query describes one RANGE invocation.
type Query struct {
	Start, End int64

	HasValueFilter       bool
	ValueMin, ValueMax   float64
	FilterTimestamps     []int64 // must be sorted ascending

	Aggregation *Aggregation
	Count       int // 0 means unlimited

	Deadline time.Time // zero value means no deadline
}

// Row is one output row: a raw sample, or one bucket's aggregated value.
type Row struct {
	Ts  int64
	Val float64
}

// Run executes q against s and returns the resulting rows.
func Run(s *series.Series, q Query) ([]Row, error) {
	samples, err := collectSamples(s, q)
	if err != nil {
		return nil, err
	}

	if q.Aggregation == nil {
		rows := make([]Row, 0, len(samples))
		for _, sm := range samples {
			rows = append(rows, Row{Ts: sm.Ts, Val: sm.Val})
			if q.Count > 0 && len(rows) >= q.Count {
				break
			}
		}
		return rows, nil
	}

	rows, err := bucketAndAggregate(samples, *q.Aggregation, q.Start, q.End)
	if err != nil {
		return nil, err
	}
	if q.Count > 0 && len(rows) > q.Count {
		rows = rows[:q.Count]
	}
	return rows, nil
}

// collectSamples drives the chunk-by-chunk lazy source, checking the
// deadline at each chunk boundary, then applies the timestamp and value
// filters.
func collectSamples(s *series.Series, q Query) ([]sample.Sample, error) {
	var out []sample.Sample
	for sm, err := range chunkSeq(s, q.Start, q.End, q.Deadline) {
		if err != nil {
			return nil, err
		}
		out = append(out, sm)
	}

	if len(q.FilterTimestamps) > 0 {
		out = filterByTimestamps(out, q.FilterTimestamps)
	}
	if q.HasValueFilter {
		out = filterByValue(out, q.ValueMin, q.ValueMax)
	}
	return out, nil
}

// chunkSeq walks s's chunks in order, yielding every sample in
// [start,end]. The deadline (if non-zero) is checked once per chunk,
// not per sample, matching spec §5's "checked between chunks."
func chunkSeq(s *series.Series, start, end int64, deadline time.Time) iter.Seq2[sample.Sample, error] {
	return func(yield func(sample.Sample, error) bool) {
		for _, c := range s.Chunks() {
			if !deadline.IsZero() && time.Now().After(deadline) {
				yield(sample.Sample{}, errs.ErrDeadlineExceeded)
				return
			}

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
				if !yield(sm, nil) {
					return
				}
			}
		}
	}
}

func filterByTimestamps(in []sample.Sample, ts []int64) []sample.Sample {
	var out []sample.Sample
	i, j := 0, 0
	for i < len(in) && j < len(ts) {
		switch {
		case in[i].Ts == ts[j]:
			out = append(out, in[i])
			i++
			j++
		case in[i].Ts < ts[j]:
			i++
		default:
			j++
		}
	}
	return out
}

func filterByValue(in []sample.Sample, min, max float64) []sample.Sample {
	var out []sample.Sample
	for _, sm := range in {
		if sm.Val >= min && sm.Val <= max {
			out = append(out, sm)
		}
	}
	return out
}

// bucketStart implements spec §4.6's bucket-alignment formula:
// ts - ((ts - align) mod Δ + Δ) mod Δ, clamped to >= 0.
func bucketStart(ts, align int64, bucket time.Duration) int64 {
	delta := bucket.Milliseconds()
	if delta <= 0 {
		return ts
	}
	m := ((ts-align)%delta + delta) % delta
	start := ts - m
	if start < 0 {
		return 0
	}
	return start
}

func resolveAlign(a Aggregation, queryStart int64) int64 {
	switch a.Alignment {
	case format.AlignStart:
		return queryStart
	case format.AlignTimestamp:
		return a.AlignTimestamp
	default:
		return 0
	}
}

func bucketTs(start int64, bucket time.Duration, which format.BucketTimestamp) int64 {
	delta := bucket.Milliseconds()
	switch which {
	case format.BucketMid:
		return start + delta/2
	case format.BucketEnd:
		return start + delta
	default:
		return start
	}
}

// bucketAndAggregate groups samples into fixed-duration buckets and
// finalizes each with the configured aggregator. When Empty is set,
// every bucket start covering [queryStart,queryEnd] is emitted,
// including leading and trailing buckets no sample ever landed in;
// otherwise only buckets that received a sample are emitted.
func bucketAndAggregate(samples []sample.Sample, a Aggregation, queryStart, queryEnd int64) ([]Row, error) {
	if a.BucketDuration <= 0 {
		return nil, fmt.Errorf("%w: aggregation bucket duration must be positive", errs.ErrInvalidDuration)
	}

	align := resolveAlign(a, queryStart)
	data := make(map[int64]*aggregate.Aggregator)
	for _, sm := range samples {
		start := bucketStart(sm.Ts, align, a.BucketDuration)
		agg, ok := data[start]
		if !ok {
			var err error
			agg, err = aggregate.New(a.Kind)
			if err != nil {
				return nil, err
			}
			data[start] = agg
		}
		agg.Update(sm.Val)
	}

	if !a.Empty {
		starts := make([]int64, 0, len(data))
		for start := range data {
			starts = append(starts, start)
		}
		sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

		rows := make([]Row, 0, len(starts))
		for _, start := range starts {
			v, _ := data[start].Finalize() // every bucket here received >= 1 update, so it is always defined
			rows = append(rows, Row{Ts: bucketTs(start, a.BucketDuration, a.BucketTimestamp), Val: v})
		}
		return rows, nil
	}

	delta := a.BucketDuration.Milliseconds()
	first := bucketStart(queryStart, align, a.BucketDuration)
	last := bucketStart(queryEnd, align, a.BucketDuration)

	var rows []Row
	for start := first; start <= last; start += delta {
		if agg, ok := data[start]; ok {
			v, _ := agg.Finalize()
			rows = append(rows, Row{Ts: bucketTs(start, a.BucketDuration, a.BucketTimestamp), Val: v})
			continue
		}
		empty, err := aggregate.New(a.Kind)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{Ts: bucketTs(start, a.BucketDuration, a.BucketTimestamp), Val: empty.EmptyValue()})
	}

	return rows, nil
}
