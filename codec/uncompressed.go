package codec

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/sample"
)

// sampleWidth is the on-disk size of one Uncompressed sample: an int64
// timestamp followed by a float64 value, little-endian.
const sampleWidth = 16

// uncompressedFormat stores samples as fixed [int64|float64] pairs,
// grounded on encoding.NumericRawEncoder's direct-memory-write idiom:
// no per-sample branching, a single sized allocation up front.
type uncompressedFormat struct{}

func (uncompressedFormat) Encoding() format.Encoding { return format.Uncompressed }

func (uncompressedFormat) EncodeAll(samples []sample.Sample) ([]byte, error) {
	out := make([]byte, len(samples)*sampleWidth)
	for i, s := range samples {
		off := i * sampleWidth
		binary.LittleEndian.PutUint64(out[off:], uint64(s.Ts))
		binary.LittleEndian.PutUint64(out[off+8:], sample.Bits(s.Val))
	}
	return out, nil
}

func (uncompressedFormat) DecodeInto(data []byte, count int, out *[]sample.Sample) error {
	if len(data) < count*sampleWidth {
		return fmt.Errorf("%w: uncompressed payload too short for %d samples", errs.ErrDecodeFailed, count)
	}
	for i := 0; i < count; i++ {
		off := i * sampleWidth
		ts := int64(binary.LittleEndian.Uint64(data[off:]))
		val := sample.FromBits(binary.LittleEndian.Uint64(data[off+8:]))
		*out = append(*out, sample.Sample{Ts: ts, Val: val})
	}
	return nil
}

func (uncompressedFormat) Iter(data []byte, count int) iter.Seq2[sample.Sample, error] {
	return func(yield func(sample.Sample, error) bool) {
		if len(data) < count*sampleWidth {
			yield(sample.Sample{}, fmt.Errorf("%w: uncompressed payload too short for %d samples", errs.ErrDecodeFailed, count))
			return
		}
		for i := 0; i < count; i++ {
			off := i * sampleWidth
			ts := int64(binary.LittleEndian.Uint64(data[off:]))
			val := sample.FromBits(binary.LittleEndian.Uint64(data[off+8:]))
			if !yield(sample.Sample{Ts: ts, Val: val}, nil) {
				return
			}
		}
	}
}
