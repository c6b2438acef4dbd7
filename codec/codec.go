// Package codec implements the three sample encodings a chunk may use:
// Uncompressed, Gorilla and PCO. Each satisfies the Format interface so
// chunk and series code can stay encoding-agnostic.
package codec

import (
	"fmt"
	"iter"

	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/sample"
)

// Format encodes and decodes a chunk's sample payload.
//
// EncodeAll takes samples already sorted by timestamp (chunk C2's
// invariant I1) and produces the chunk's stored byte payload.
// DecodeInto appends the decoded samples to *out, growing it as needed.
// Iter yields samples lazily without materializing the whole slice,
// used by the range pipeline (C6) to avoid decoding chunks it will
// immediately filter away.
type Format interface {
	Encoding() format.Encoding
	EncodeAll(samples []sample.Sample) ([]byte, error)
	DecodeInto(data []byte, count int, out *[]sample.Sample) error
	Iter(data []byte, count int) iter.Seq2[sample.Sample, error]
}

// New returns the Format implementation for enc.
func New(enc format.Encoding) (Format, error) {
	switch enc {
	case format.Uncompressed:
		return uncompressedFormat{}, nil
	case format.GorillaEnc:
		return gorillaFormat{}, nil
	case format.PCO:
		return newPCOFormat(format.CompressionNone), nil
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", errs.ErrInvalidEncoding, enc)
	}
}

// NewPCO returns a PCO Format that compresses each stream with c.
func NewPCO(c format.CompressionType) Format {
	return newPCOFormat(c)
}

// parallelThreshold is the sample count above which PCO encodes and
// decodes its timestamp and value streams on separate goroutines.
const parallelThreshold = 1024

// iterBatch is the batch size PCO's iterator yields in. Both PCO streams
// are decoded whole before the first sample is yielded; decoding itself
// is not batched.
const iterBatch = 256
