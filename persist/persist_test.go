package persist

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/valkeymetrics/tsdb/chunk"
	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/label"
	"github.com/valkeymetrics/tsdb/sample"
	"github.com/valkeymetrics/tsdb/series"
)

func sampleAt(ts int64, val float64) sample.Sample {
	return sample.Sample{Ts: ts, Val: val}
}

func TestChunkRoundTrip_Uncompressed(t *testing.T) {
	c, err := chunk.New(format.Uncompressed, 4096)
	require.NoError(t, err)
	for i := int64(0); i < 10; i++ {
		require.NoError(t, c.Add(sampleAt(i*1000, float64(i))))
	}

	var buf bytes.Buffer
	require.NoError(t, SaveChunk(&buf, c))

	loaded, err := LoadChunk(&buf)
	require.NoError(t, err)
	require.Equal(t, c.Samples(), loaded.Samples())
	require.Equal(t, c.Encoding(), loaded.Encoding())
	require.Equal(t, c.MaxSizeBytes(), loaded.MaxSizeBytes())
}

func TestChunkRoundTrip_Gorilla(t *testing.T) {
	c, err := chunk.New(format.GorillaEnc, 4096)
	require.NoError(t, err)
	for i := int64(0); i < 50; i++ {
		require.NoError(t, c.Add(sampleAt(i*1000, float64(i)*1.5)))
	}

	var buf bytes.Buffer
	require.NoError(t, SaveChunk(&buf, c))
	loaded, err := LoadChunk(&buf)
	require.NoError(t, err)
	require.Equal(t, c.Samples(), loaded.Samples())
}

func TestChunkRoundTrip_PCO(t *testing.T) {
	c, err := chunk.New(format.PCO, 65536)
	require.NoError(t, err)
	for i := int64(0); i < 2000; i++ {
		require.NoError(t, c.Add(sampleAt(i*1000, float64(i%7))))
	}

	var buf bytes.Buffer
	require.NoError(t, SaveChunk(&buf, c))
	loaded, err := LoadChunk(&buf)
	require.NoError(t, err)
	require.Equal(t, c.NumSamples(), loaded.NumSamples())
}

func TestLoadChunk_TruncatedHeaderFails(t *testing.T) {
	_, err := LoadChunk(bytes.NewReader([]byte{1, 2, 3}))
	require.Error(t, err)
}

func TestSeriesRoundTrip(t *testing.T) {
	s, err := series.New(42, "http_requests_total", label.Labels{{Name: "env", Value: "prod"}, {Name: "route", Value: "/"}}, series.Config{
		Encoding:          format.GorillaEnc,
		ChunkSizeBytes:    2048,
		Retention:         24 * time.Hour,
		DedupeInterval:    time.Second,
		DuplicatePolicy:   format.KeepLast,
		SignificantDigits: 3,
	})
	require.NoError(t, err)
	for i := int64(0); i < 500; i++ {
		_, err := s.Add(i*1000, float64(i))
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, SaveSeries(&buf, s))

	loaded, err := LoadSeries(&buf)
	require.NoError(t, err)
	require.Equal(t, s.ID, loaded.ID)
	require.Equal(t, s.Metric, loaded.Metric)
	require.Equal(t, s.Labels, loaded.Labels)
	require.Equal(t, s.Config, loaded.Config)
	require.Equal(t, s.TotalSamples(), loaded.TotalSamples())

	first, ok := loaded.FirstSample()
	require.True(t, ok)
	require.Equal(t, int64(0), first.Ts)
	last, ok := loaded.LastSample()
	require.True(t, ok)
	require.Equal(t, int64(499000), last.Ts)
}

func TestLoadSeries_BadMagicFails(t *testing.T) {
	_, err := LoadSeries(bytes.NewReader([]byte{0, 0, 0, 0, 1}))
	require.Error(t, err)
}
