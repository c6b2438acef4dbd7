package codec

import (
	"encoding/binary"
	"fmt"
	"iter"
	"sync"

	"github.com/valkeymetrics/tsdb/compress"
	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/sample"
)

// pcoFormat stores timestamps and values as two independent streams,
// each compressed with a pluggable compress.Codec. The timestamp
// stream gets a delta-order-2 pre-transform (second difference) before
// compression, since real time-series timestamps tend toward constant
// intervals and a second difference collapses those runs to zero.
//
// Unlike Gorilla's single interleaved bitstream, the two streams here
// are independent, which is what lets EncodeAll/Iter parallelize them
// across goroutines for large chunks.
type pcoFormat struct {
	compression format.CompressionType
}

func newPCOFormat(c format.CompressionType) pcoFormat {
	return pcoFormat{compression: c}
}

func (p pcoFormat) Encoding() format.Encoding { return format.PCO }

// appendStream writes an 8-byte header before each compressed stream:
// the uncompressed length and the compressed length, both uint32
// little-endian. readStream uses the compressed length to detect a
// truncated body and the uncompressed length to verify the decompressed
// size, independent of the compressor's own framing.
func appendStream(dst []byte, raw []byte, c compress.Codec) ([]byte, error) {
	compressed, err := c.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: pco stream compress: %v", errs.ErrSerialize, err)
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint32(lenBuf[0:4], uint32(len(raw)))
	binary.LittleEndian.PutUint32(lenBuf[4:8], uint32(len(compressed)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, compressed...)
	return dst, nil
}

func readStream(data []byte, c compress.Codec) (raw []byte, rest []byte, err error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("%w: pco stream header truncated", errs.ErrDecodeFailed)
	}
	rawLen := binary.LittleEndian.Uint32(data[0:4])
	compLen := binary.LittleEndian.Uint32(data[4:8])
	data = data[8:]
	if uint32(len(data)) < compLen {
		return nil, nil, fmt.Errorf("%w: pco stream body truncated", errs.ErrDecodeFailed)
	}
	raw, err = c.Decompress(data[:compLen])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pco stream decompress: %v", errs.ErrDecodeFailed, err)
	}
	if uint32(len(raw)) != rawLen {
		return nil, nil, fmt.Errorf("%w: pco stream length mismatch", errs.ErrDecodeFailed)
	}
	return raw, data[compLen:], nil
}

// deltaOrder2Encode writes the second difference of ts (each element
// minus twice the previous plus the one before that) as little-endian
// int64s, after the first two timestamps stored raw.
func deltaOrder2Encode(ts []int64) []byte {
	out := make([]byte, len(ts)*8)
	for i, t := range ts {
		var v int64
		switch i {
		case 0, 1:
			v = t
		default:
			v = t - 2*ts[i-1] + ts[i-2]
		}
		binary.LittleEndian.PutUint64(out[i*8:], uint64(v))
	}
	return out
}

func deltaOrder2Decode(raw []byte, count int) ([]int64, error) {
	if len(raw) < count*8 {
		return nil, fmt.Errorf("%w: pco timestamp stream too short", errs.ErrDecodeFailed)
	}
	ts := make([]int64, count)
	for i := 0; i < count; i++ {
		v := int64(binary.LittleEndian.Uint64(raw[i*8:]))
		switch i {
		case 0, 1:
			ts[i] = v
		default:
			ts[i] = v + 2*ts[i-1] - ts[i-2]
		}
	}
	return ts, nil
}

func valuesEncode(samples []sample.Sample) []byte {
	out := make([]byte, len(samples)*8)
	for i, s := range samples {
		binary.LittleEndian.PutUint64(out[i*8:], sample.Bits(s.Val))
	}
	return out
}

func valuesDecode(raw []byte, count int) ([]float64, error) {
	if len(raw) < count*8 {
		return nil, fmt.Errorf("%w: pco value stream too short", errs.ErrDecodeFailed)
	}
	vals := make([]float64, count)
	for i := 0; i < count; i++ {
		vals[i] = sample.FromBits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return vals, nil
}

func (p pcoFormat) EncodeAll(samples []sample.Sample) ([]byte, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	c, err := compress.GetCodec(p.compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnsupportedCombination, err)
	}

	ts := make([]int64, len(samples))
	for i, s := range samples {
		ts[i] = s.Ts
	}

	var tsStream, valStream []byte
	var tsErr, valErr error

	if len(samples) > parallelThreshold {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			tsStream, tsErr = appendStream(nil, deltaOrder2Encode(ts), c)
		}()
		go func() {
			defer wg.Done()
			valStream, valErr = appendStream(nil, valuesEncode(samples), c)
		}()
		wg.Wait()
	} else {
		tsStream, tsErr = appendStream(nil, deltaOrder2Encode(ts), c)
		valStream, valErr = appendStream(nil, valuesEncode(samples), c)
	}
	if tsErr != nil {
		return nil, tsErr
	}
	if valErr != nil {
		return nil, valErr
	}

	out := make([]byte, 0, len(tsStream)+len(valStream))
	out = append(out, tsStream...)
	out = append(out, valStream...)
	return out, nil
}

func (p pcoFormat) decodeStreams(data []byte, count int) ([]int64, []float64, error) {
	c, err := compress.GetCodec(p.compression)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errs.ErrUnsupportedCombination, err)
	}

	tsRaw, rest, err := readStream(data, c)
	if err != nil {
		return nil, nil, err
	}
	valRaw, _, err := readStream(rest, c)
	if err != nil {
		return nil, nil, err
	}

	var ts []int64
	var vals []float64
	var tsErr, valErr error

	if count > parallelThreshold {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			ts, tsErr = deltaOrder2Decode(tsRaw, count)
		}()
		go func() {
			defer wg.Done()
			vals, valErr = valuesDecode(valRaw, count)
		}()
		wg.Wait()
	} else {
		ts, tsErr = deltaOrder2Decode(tsRaw, count)
		vals, valErr = valuesDecode(valRaw, count)
	}
	if tsErr != nil {
		return nil, nil, tsErr
	}
	if valErr != nil {
		return nil, nil, valErr
	}
	return ts, vals, nil
}

func (p pcoFormat) DecodeInto(data []byte, count int, out *[]sample.Sample) error {
	if count == 0 {
		return nil
	}
	ts, vals, err := p.decodeStreams(data, count)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		*out = append(*out, sample.Sample{Ts: ts[i], Val: vals[i]})
	}
	return nil
}

// Iter decodes both streams up front (PCO's streams aren't
// incrementally decodable the way Gorilla's bitstream is) and then
// yields the decoded samples one by one, walking them in batches of
// iterBatch. The whole decoded chunk is held in memory while iterating.
func (p pcoFormat) Iter(data []byte, count int) iter.Seq2[sample.Sample, error] {
	return func(yield func(sample.Sample, error) bool) {
		if count == 0 {
			return
		}
		ts, vals, err := p.decodeStreams(data, count)
		if err != nil {
			yield(sample.Sample{}, err)
			return
		}
		for start := 0; start < count; start += iterBatch {
			end := min(start+iterBatch, count)
			for i := start; i < end; i++ {
				if !yield(sample.Sample{Ts: ts[i], Val: vals[i]}, nil) {
					return
				}
			}
		}
	}
}
