package persist

import (
	"fmt"
	"io"

	"github.com/valkeymetrics/tsdb/errs"
)

// appendString writes a length-prefixed UTF-8 string.
func appendString(buf []byte, s string) []byte {
	buf = engine.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// byteReader wraps an io.Reader with the fixed-width and
// length-prefixed reads LoadSeries needs, turning a short read into
// ErrDeserialize instead of a bare io.ErrUnexpectedEOF.
type byteReader struct {
	r io.Reader
}

func (b *byteReader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(b.r, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDeserialize, err)
	}
	return buf, nil
}

func (b *byteReader) byte() (byte, error) {
	buf, err := b.readN(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *byteReader) uint32() (uint32, error) {
	buf, err := b.readN(4)
	if err != nil {
		return 0, err
	}
	return engine.Uint32(buf), nil
}

func (b *byteReader) uint64() (uint64, error) {
	buf, err := b.readN(8)
	if err != nil {
		return 0, err
	}
	return engine.Uint64(buf), nil
}

func (b *byteReader) string() (string, error) {
	n, err := b.uint32()
	if err != nil {
		return "", err
	}
	buf, err := b.readN(int(n))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
