package codec

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math/bits"

	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/sample"
)

// gorillaFormat implements Facebook-Gorilla-style compression: the first
// timestamp and value are stored raw, every following sample contributes
// a zigzag+varint delta-of-delta timestamp (grounded on
// encoding.TimestampDeltaEncoder) followed by an XOR-compressed value
// sharing one bit-packed stream (grounded on
// internal/encoding.NumericGorillaEncoder's leading/trailing-zero block
// reuse), matching spec.md's "first timestamp, first value, then a
// bit-stream" layout.
type gorillaFormat struct{}

func (gorillaFormat) Encoding() format.Encoding { return format.GorillaEnc }

func (gorillaFormat) EncodeAll(samples []sample.Sample) ([]byte, error) {
	if len(samples) == 0 {
		return nil, nil
	}

	head := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(head, uint64(samples[0].Ts))
	head = head[:n]
	head = binary.LittleEndian.AppendUint64(head, sample.Bits(samples[0].Val))

	if len(samples) == 1 {
		return head, nil
	}

	w := &bitWriter{}
	var prevLeading, prevTrailing, prevBlockSize int
	prevValue := sample.Bits(samples[0].Val)
	prevTS := samples[0].Ts
	var prevDelta int64
	haveBlock := false

	for i := 1; i < len(samples); i++ {
		s := samples[i]
		delta := s.Ts - prevTS
		var dod int64
		if i == 1 {
			dod = delta
		} else {
			dod = delta - prevDelta
		}
		zigzag := uint64((dod << 1) ^ (dod >> 63))
		writeVarbits(w, zigzag)
		prevTS = s.Ts
		prevDelta = delta

		valBits := sample.Bits(s.Val)
		xor := valBits ^ prevValue
		prevValue = valBits
		if xor == 0 {
			w.writeBit(0)
			continue
		}
		w.writeBit(1)

		leading := bits.LeadingZeros64(xor)
		trailing := bits.TrailingZeros64(xor)
		if leading > 31 {
			adjustment := leading - 31
			leading = 31
			trailing -= adjustment
			if trailing < 0 {
				trailing = 0
			}
		}

		if haveBlock && leading >= prevLeading && trailing >= prevTrailing {
			w.writeBit(0)
			w.writeBits(xor>>uint(prevTrailing), prevBlockSize)
		} else {
			blockSize := 64 - leading - trailing
			w.writeBit(1)
			w.writeBits(uint64(leading), 5)
			w.writeBits(uint64(blockSize-1), 6)
			w.writeBits(xor>>uint(trailing), blockSize)
			prevLeading, prevTrailing, prevBlockSize = leading, trailing, blockSize
			haveBlock = true
		}
	}

	return append(head, w.finish()...), nil
}

// writeVarbits packs a varint-shaped value into the shared bitstream
// using a continuation-bit scheme: 7 payload bits per group, matching
// the byte-level varint encoding the delta-of-delta timestamps use
// elsewhere, but expressed bit-wise so it can interleave with the
// value stream's XOR bits in a single stream.
func writeVarbits(w *bitWriter, v uint64) {
	for {
		group := v & 0x7f
		v >>= 7
		if v != 0 {
			w.writeBits(group|0x80, 8)
		} else {
			w.writeBits(group, 8)
			return
		}
	}
}

func readVarbits(r *bitReader) (uint64, bool) {
	var result uint64
	var shift uint
	for {
		b, ok := r.readBits(8)
		if !ok {
			return 0, false
		}
		result |= (b & 0x7f) << shift
		if b&0x80 == 0 {
			return result, true
		}
		shift += 7
	}
}

func (g gorillaFormat) DecodeInto(data []byte, count int, out *[]sample.Sample) error {
	for s, err := range g.Iter(data, count) {
		if err != nil {
			return err
		}
		*out = append(*out, s)
	}
	return nil
}

func (gorillaFormat) Iter(data []byte, count int) iter.Seq2[sample.Sample, error] {
	return func(yield func(sample.Sample, error) bool) {
		if count <= 0 {
			return
		}
		if len(data) < binary.MaxVarintLen64 {
			// allow short head for small varints; validate via Uvarint below
		}

		firstTS, n := binary.Uvarint(data)
		if n <= 0 {
			yield(sample.Sample{}, fmt.Errorf("%w: gorilla header truncated", errs.ErrDecodeFailed))
			return
		}
		offset := n
		if len(data) < offset+8 {
			yield(sample.Sample{}, fmt.Errorf("%w: gorilla header truncated", errs.ErrDecodeFailed))
			return
		}
		firstVal := sample.FromBits(binary.LittleEndian.Uint64(data[offset:]))
		offset += 8

		curTS := int64(firstTS)
		curVal := firstVal
		if !yield(sample.Sample{Ts: curTS, Val: curVal}, nil) {
			return
		}
		if count == 1 {
			return
		}

		r := &bitReader{data: data[offset:]}
		prevValue := sample.Bits(curVal)
		var prevDelta int64
		var prevLeading, prevTrailing, prevBlockSize int
		haveBlock := false

		for i := 1; i < count; i++ {
			zigzag, ok := readVarbits(r)
			if !ok {
				yield(sample.Sample{}, fmt.Errorf("%w: gorilla timestamp stream truncated", errs.ErrDecodeFailed))
				return
			}
			dod := int64(zigzag>>1) ^ -int64(zigzag&1)
			var delta int64
			if i == 1 {
				delta = dod
			} else {
				delta = prevDelta + dod
			}
			curTS += delta
			prevDelta = delta

			bit, ok := r.readBit()
			if !ok {
				yield(sample.Sample{}, fmt.Errorf("%w: gorilla value stream truncated", errs.ErrDecodeFailed))
				return
			}
			if bit == 0 {
				curVal = sample.FromBits(prevValue)
				if !yield(sample.Sample{Ts: curTS, Val: curVal}, nil) {
					return
				}
				continue
			}

			sameBlock, ok := r.readBit()
			if !ok {
				yield(sample.Sample{}, fmt.Errorf("%w: gorilla value stream truncated", errs.ErrDecodeFailed))
				return
			}

			var leading, trailing, blockSize int
			if sameBlock == 0 && haveBlock {
				leading, trailing, blockSize = prevLeading, prevTrailing, prevBlockSize
			} else {
				lz, ok := r.readBits(5)
				if !ok {
					yield(sample.Sample{}, fmt.Errorf("%w: gorilla value stream truncated", errs.ErrDecodeFailed))
					return
				}
				bs, ok := r.readBits(6)
				if !ok {
					yield(sample.Sample{}, fmt.Errorf("%w: gorilla value stream truncated", errs.ErrDecodeFailed))
					return
				}
				leading = int(lz)
				blockSize = int(bs) + 1
				trailing = 64 - leading - blockSize
				prevLeading, prevTrailing, prevBlockSize = leading, trailing, blockSize
				haveBlock = true
			}

			meaningful, ok := r.readBits(blockSize)
			if !ok {
				yield(sample.Sample{}, fmt.Errorf("%w: gorilla value stream truncated", errs.ErrDecodeFailed))
				return
			}
			xor := meaningful << uint(trailing)
			valBits := xor ^ prevValue
			prevValue = valBits
			curVal = sample.FromBits(valBits)

			if !yield(sample.Sample{Ts: curTS, Val: curVal}, nil) {
				return
			}
		}
	}
}
