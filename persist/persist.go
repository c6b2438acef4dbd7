// Package persist implements save/load for Series and Chunk (spec
// component C8): a fixed discriminator byte identifies the encoding
// on disk, and Load re-derives the exact in-memory shape Save wrote,
// failing closed on any mismatch. The wire layout parses the
// discriminator first, validates it, then decodes the rest against the
// shape it names.
package persist

import (
	"fmt"
	"io"
	"time"

	"github.com/valkeymetrics/tsdb/chunk"
	"github.com/valkeymetrics/tsdb/codec"
	"github.com/valkeymetrics/tsdb/endian"
	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/label"
	"github.com/valkeymetrics/tsdb/sample"
	"github.com/valkeymetrics/tsdb/series"
)

// seriesMagic discriminates a persisted Series record from any other
// byte stream; changing the on-disk layout requires bumping
// seriesFormatVersion.
const seriesMagic = 0x54534442 // "TSDB"

const seriesFormatVersion = 1

var engine = endian.GetLittleEndianEngine()

// SaveChunk writes c as: 1 byte encoding discriminator, the chunk's max
// size and sample count, then a length-prefixed codec-specific payload
// from c.Bytes(). The sample count is recorded because every
// Format.DecodeInto needs it up front to size its output slice.
func SaveChunk(w io.Writer, c *chunk.Chunk) error {
	payload, err := c.Bytes()
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSerialize, err)
	}

	header := make([]byte, 0, 13)
	header = append(header, byte(c.Encoding()))
	header = engine.AppendUint32(header, uint32(c.MaxSizeBytes()))
	header = engine.AppendUint32(header, uint32(c.NumSamples()))
	header = engine.AppendUint32(header, uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSerialize, err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSerialize, err)
	}
	return nil
}

// LoadChunk is the exact inverse of SaveChunk.
func LoadChunk(r io.Reader) (*chunk.Chunk, error) {
	var header [13]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: chunk header truncated: %v", errs.ErrDeserialize, err)
	}
	enc := format.Encoding(header[0])
	maxSizeBytes := int(engine.Uint32(header[1:5]))
	numSamples := int(engine.Uint32(header[5:9]))
	payloadLen := int(engine.Uint32(header[9:13]))

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: chunk payload truncated: %v", errs.ErrDeserialize, err)
	}

	f, err := codec.New(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDeserialize, err)
	}
	var samples []sample.Sample
	if err := f.DecodeInto(payload, numSamples, &samples); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDeserialize, err)
	}

	c, err := chunk.FromSamples(enc, maxSizeBytes, samples)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDeserialize, err)
	}
	return c, nil
}

// SaveSeries writes s: a magic+version header, identity (id, metric,
// labels), config, then its chunk list back to back via SaveChunk.
func SaveSeries(w io.Writer, s *series.Series) error {
	var buf []byte
	buf = engine.AppendUint32(buf, seriesMagic)
	buf = append(buf, seriesFormatVersion)
	buf = engine.AppendUint64(buf, s.ID)
	buf = appendString(buf, s.Metric)

	buf = engine.AppendUint32(buf, uint32(len(s.Labels)))
	for _, l := range s.Labels {
		buf = appendString(buf, l.Name)
		buf = appendString(buf, l.Value)
	}

	cfg := s.Config
	buf = append(buf, byte(cfg.Encoding))
	buf = engine.AppendUint32(buf, uint32(cfg.ChunkSizeBytes))
	buf = engine.AppendUint64(buf, uint64(cfg.Retention))
	buf = engine.AppendUint64(buf, uint64(cfg.DedupeInterval))
	buf = append(buf, byte(cfg.DuplicatePolicy))
	buf = append(buf, cfg.SignificantDigits)

	chunks := s.Chunks()
	buf = engine.AppendUint32(buf, uint32(len(chunks)))

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSerialize, err)
	}
	for _, c := range chunks {
		if err := SaveChunk(w, c); err != nil {
			return err
		}
	}
	return nil
}

// LoadSeries is the exact inverse of SaveSeries.
func LoadSeries(r io.Reader) (*series.Series, error) {
	br := &byteReader{r: r}

	magic, err := br.uint32()
	if err != nil || magic != seriesMagic {
		return nil, fmt.Errorf("%w: bad series magic", errs.ErrDeserialize)
	}
	version, err := br.byte()
	if err != nil || version != seriesFormatVersion {
		return nil, fmt.Errorf("%w: unsupported series format version", errs.ErrDeserialize)
	}

	id, err := br.uint64()
	if err != nil {
		return nil, err
	}
	metric, err := br.string()
	if err != nil {
		return nil, err
	}

	numLabels, err := br.uint32()
	if err != nil {
		return nil, err
	}
	labels := make(label.Labels, 0, numLabels)
	for i := uint32(0); i < numLabels; i++ {
		name, err := br.string()
		if err != nil {
			return nil, err
		}
		value, err := br.string()
		if err != nil {
			return nil, err
		}
		labels = append(labels, label.Label{Name: name, Value: value})
	}

	encByte, err := br.byte()
	if err != nil {
		return nil, err
	}
	chunkSizeBytes, err := br.uint32()
	if err != nil {
		return nil, err
	}
	retention, err := br.uint64()
	if err != nil {
		return nil, err
	}
	dedupe, err := br.uint64()
	if err != nil {
		return nil, err
	}
	policyByte, err := br.byte()
	if err != nil {
		return nil, err
	}
	sigDigits, err := br.byte()
	if err != nil {
		return nil, err
	}

	cfg := series.Config{
		Encoding:          format.Encoding(encByte),
		ChunkSizeBytes:    int(chunkSizeBytes),
		Retention:         time.Duration(retention),
		DedupeInterval:    time.Duration(dedupe),
		DuplicatePolicy:   format.DuplicatePolicy(policyByte),
		SignificantDigits: sigDigits,
	}

	s, err := series.New(id, metric, labels, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDeserialize, err)
	}

	numChunks, err := br.uint32()
	if err != nil {
		return nil, err
	}
	chunks := make([]*chunk.Chunk, 0, numChunks)
	for i := uint32(0); i < numChunks; i++ {
		c, err := LoadChunk(r)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	s.RestoreChunks(chunks)

	return s, nil
}
