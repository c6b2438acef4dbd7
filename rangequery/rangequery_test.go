package rangequery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/valkeymetrics/tsdb/aggregate"
	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/label"
	"github.com/valkeymetrics/tsdb/series"
)

func newTestSeries(t *testing.T) *series.Series {
	t.Helper()
	s, err := series.New(1, "cpu_usage", label.Labels{{Name: "host", Value: "a"}}, series.Config{
		Encoding:        format.Uncompressed,
		ChunkSizeBytes:  4096,
		DuplicatePolicy: format.KeepLast,
	})
	require.NoError(t, err)
	for i := int64(0); i < 20; i++ {
		_, err := s.Add(i*1000, float64(i))
		require.NoError(t, err)
	}
	return s
}

func TestRun_NoFiltersNoAggregation(t *testing.T) {
	s := newTestSeries(t)
	rows, err := Run(s, Query{Start: 0, End: 19000})
	require.NoError(t, err)
	require.Len(t, rows, 20)
	require.Equal(t, int64(0), rows[0].Ts)
	require.Equal(t, 19.0, rows[19].Val)
}

func TestRun_RangeSubset(t *testing.T) {
	s := newTestSeries(t)
	rows, err := Run(s, Query{Start: 5000, End: 9000})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	require.Equal(t, int64(5000), rows[0].Ts)
	require.Equal(t, int64(9000), rows[4].Ts)
}

func TestRun_ValueFilter(t *testing.T) {
	s := newTestSeries(t)
	rows, err := Run(s, Query{
		Start: 0, End: 19000,
		HasValueFilter: true,
		ValueMin:       10,
		ValueMax:       12,
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, r := range rows {
		require.GreaterOrEqual(t, r.Val, 10.0)
		require.LessOrEqual(t, r.Val, 12.0)
	}
}

func TestRun_TimestampFilter(t *testing.T) {
	s := newTestSeries(t)
	rows, err := Run(s, Query{
		Start: 0, End: 19000,
		FilterTimestamps: []int64{2000, 5000, 11000},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, int64(2000), rows[0].Ts)
	require.Equal(t, int64(5000), rows[1].Ts)
	require.Equal(t, int64(11000), rows[2].Ts)
}

func TestRun_Count(t *testing.T) {
	s := newTestSeries(t)
	rows, err := Run(s, Query{Start: 0, End: 19000, Count: 3})
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestRun_BucketedAggregation(t *testing.T) {
	s := newTestSeries(t)
	rows, err := Run(s, Query{
		Start: 0, End: 19000,
		Aggregation: &Aggregation{
			Kind:            aggregate.Sum,
			BucketDuration:  5 * time.Second,
			BucketTimestamp: format.BucketStart,
		},
	})
	require.NoError(t, err)
	// [0,5) [5,10) [10,15) [15,20) sums of 5 consecutive ints each
	require.Len(t, rows, 4)
	require.Equal(t, int64(0), rows[0].Ts)
	require.Equal(t, 0.0+1+2+3+4, rows[0].Val)
	require.Equal(t, 5.0+6+7+8+9, rows[1].Val)
}

func TestRun_BucketTimestampMidAndEnd(t *testing.T) {
	s := newTestSeries(t)
	rowsMid, err := Run(s, Query{
		Start: 0, End: 9000,
		Aggregation: &Aggregation{
			Kind:            aggregate.Avg,
			BucketDuration:  5 * time.Second,
			BucketTimestamp: format.BucketMid,
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2500), rowsMid[0].Ts)

	rowsEnd, err := Run(s, Query{
		Start: 0, End: 9000,
		Aggregation: &Aggregation{
			Kind:            aggregate.Avg,
			BucketDuration:  5 * time.Second,
			BucketTimestamp: format.BucketEnd,
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(5000), rowsEnd[0].Ts)
}

func TestRun_EmptyBucketFillUsesAggregatorEmptyValue(t *testing.T) {
	s, err := series.New(1, "m", nil, series.Config{Encoding: format.Uncompressed, ChunkSizeBytes: 4096, DuplicatePolicy: format.KeepLast})
	require.NoError(t, err)
	_, err = s.Add(0, 1)
	require.NoError(t, err)
	_, err = s.Add(20000, 2)
	require.NoError(t, err)

	rows, err := Run(s, Query{
		Start: 0, End: 20000,
		Aggregation: &Aggregation{
			Kind:            aggregate.Avg,
			BucketDuration:  5 * time.Second,
			BucketTimestamp: format.BucketStart,
			Empty:           true,
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	require.Equal(t, 1.0, rows[0].Val)
	require.True(t, rows[1].Val != rows[1].Val) // NaN
	require.True(t, rows[2].Val != rows[2].Val)
	require.True(t, rows[3].Val != rows[3].Val)
	require.Equal(t, 2.0, rows[4].Val)
}

func TestRun_EmptyBucketFillCoversLeadingAndTrailingBuckets(t *testing.T) {
	s, err := series.New(1, "m", nil, series.Config{Encoding: format.Uncompressed, ChunkSizeBytes: 4096, DuplicatePolicy: format.KeepLast})
	require.NoError(t, err)
	for _, ts := range []int64{0, 10, 30} {
		_, err = s.Add(ts, 1)
		require.NoError(t, err)
	}

	rows, err := Run(s, Query{
		Start: 0, End: 40,
		Aggregation: &Aggregation{
			Kind:            aggregate.Sum,
			BucketDuration:  10 * time.Millisecond,
			BucketTimestamp: format.BucketStart,
			Empty:           true,
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	want := []Row{
		{Ts: 0, Val: 1},
		{Ts: 10, Val: 1},
		{Ts: 20, Val: 0},
		{Ts: 30, Val: 1},
		{Ts: 40, Val: 0},
	}
	require.Equal(t, want, rows)
}

func TestRun_DeadlineExceededReturnsNoPartialResults(t *testing.T) {
	s := newTestSeries(t)
	rows, err := Run(s, Query{Start: 0, End: 19000, Deadline: time.Now().Add(-time.Hour)})
	require.ErrorIs(t, err, errs.ErrDeadlineExceeded)
	require.Nil(t, rows)
}

func TestRun_CountAppliedAfterAggregation(t *testing.T) {
	s := newTestSeries(t)
	rows, err := Run(s, Query{
		Start: 0, End: 19000,
		Aggregation: &Aggregation{
			Kind:            aggregate.Sum,
			BucketDuration:  5 * time.Second,
			BucketTimestamp: format.BucketStart,
		},
		Count: 2,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
