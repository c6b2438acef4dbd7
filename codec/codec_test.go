package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/sample"
)

func genSamples(n int, startTS int64, stepMs int64) []sample.Sample {
	out := make([]sample.Sample, n)
	for i := 0; i < n; i++ {
		out[i] = sample.Sample{Ts: startTS + int64(i)*stepMs, Val: float64(i) * 1.5}
	}
	return out
}

func allFormats(t *testing.T) map[string]Format {
	t.Helper()
	return map[string]Format{
		"uncompressed": uncompressedFormat{},
		"gorilla":      gorillaFormat{},
		"pco":          newPCOFormat(format.CompressionNone),
		"pco-zstd":     newPCOFormat(format.CompressionZstd),
	}
}

func TestRoundTrip_RegularIntervals(t *testing.T) {
	samples := genSamples(500, 1_700_000_000_000, 1000)
	for name, f := range allFormats(t) {
		t.Run(name, func(t *testing.T) {
			data, err := f.EncodeAll(samples)
			require.NoError(t, err)

			var out []sample.Sample
			require.NoError(t, f.DecodeInto(data, len(samples), &out))
			require.Equal(t, samples, out)
		})
	}
}

func TestRoundTrip_IrregularIntervals(t *testing.T) {
	samples := []sample.Sample{
		{Ts: 100, Val: 1.0},
		{Ts: 250, Val: -3.25},
		{Ts: 9000, Val: 0},
		{Ts: 9001, Val: 42.125},
		{Ts: 20000, Val: -0.00001},
	}
	for name, f := range allFormats(t) {
		t.Run(name, func(t *testing.T) {
			data, err := f.EncodeAll(samples)
			require.NoError(t, err)

			var out []sample.Sample
			require.NoError(t, f.DecodeInto(data, len(samples), &out))
			require.Equal(t, samples, out)
		})
	}
}

func TestRoundTrip_StaleMarker(t *testing.T) {
	samples := []sample.Sample{
		{Ts: 1, Val: 1.0},
		sample.Stale(2),
		{Ts: 3, Val: 2.0},
	}
	for name, f := range allFormats(t) {
		t.Run(name, func(t *testing.T) {
			data, err := f.EncodeAll(samples)
			require.NoError(t, err)

			var out []sample.Sample
			require.NoError(t, f.DecodeInto(data, len(samples), &out))
			require.True(t, out[1].IsStale())
			require.Equal(t, samples, out)
		})
	}
}

func TestRoundTrip_SingleSample(t *testing.T) {
	samples := []sample.Sample{{Ts: 5000, Val: 7.5}}
	for name, f := range allFormats(t) {
		t.Run(name, func(t *testing.T) {
			data, err := f.EncodeAll(samples)
			require.NoError(t, err)

			var out []sample.Sample
			require.NoError(t, f.DecodeInto(data, 1, &out))
			require.Equal(t, samples, out)
		})
	}
}

func TestRoundTrip_RepeatedValue(t *testing.T) {
	samples := make([]sample.Sample, 10)
	for i := range samples {
		samples[i] = sample.Sample{Ts: int64(i) * 60000, Val: 3.14}
	}
	for name, f := range allFormats(t) {
		t.Run(name, func(t *testing.T) {
			data, err := f.EncodeAll(samples)
			require.NoError(t, err)

			var out []sample.Sample
			require.NoError(t, f.DecodeInto(data, len(samples), &out))
			require.Equal(t, samples, out)
		})
	}
}

func TestIter_MatchesDecodeInto(t *testing.T) {
	samples := genSamples(50, 0, 500)
	for name, f := range allFormats(t) {
		t.Run(name, func(t *testing.T) {
			data, err := f.EncodeAll(samples)
			require.NoError(t, err)

			var fromIter []sample.Sample
			for s, err := range f.Iter(data, len(samples)) {
				require.NoError(t, err)
				fromIter = append(fromIter, s)
			}
			require.Equal(t, samples, fromIter)
		})
	}
}

func TestIter_EarlyBreak(t *testing.T) {
	samples := genSamples(20, 0, 1000)
	f := gorillaFormat{}
	data, err := f.EncodeAll(samples)
	require.NoError(t, err)

	var seen []sample.Sample
	for s, err := range f.Iter(data, len(samples)) {
		require.NoError(t, err)
		seen = append(seen, s)
		if len(seen) == 3 {
			break
		}
	}
	require.Equal(t, samples[:3], seen)
}

func TestPCO_ParallelStreamsAboveThreshold(t *testing.T) {
	samples := genSamples(parallelThreshold+10, 1_700_000_000_000, 1000)
	f := newPCOFormat(format.CompressionNone)

	data, err := f.EncodeAll(samples)
	require.NoError(t, err)

	var out []sample.Sample
	require.NoError(t, f.DecodeInto(data, len(samples), &out))
	require.Equal(t, samples, out)
}

func TestNew_UnknownEncoding(t *testing.T) {
	_, err := New(format.Encoding(99))
	require.Error(t, err)
}
