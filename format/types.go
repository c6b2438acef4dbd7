// Package format defines the small closed enumerations shared by the codec,
// chunk, series and persistence layers.
package format

import "strings"

// EncodingType and CompressionType describe the column-level encoding used
// inside a chunk codec (e.g. the timestamp stream of a Gorilla or PCO
// chunk) and the block compressor applied to PCO streams, respectively.
type (
	EncodingType    uint8
	CompressionType uint8
)

const (
	TypeRaw     EncodingType = 0x1 // TypeRaw represents raw data with no format.
	TypeDelta   EncodingType = 0x2 // TypeDelta represents delta-of-delta encoding.
	TypeGorilla EncodingType = 0x3 // TypeGorilla represents Gorilla encoding.

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

func (e EncodingType) String() string {
	switch e {
	case TypeRaw:
		return "Raw"
	case TypeDelta:
		return "Delta"
	case TypeGorilla:
		return "Gorilla"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// Encoding selects the sample codec a Series uses (spec §4.1). It is
// immutable once a series is created and is part of the persisted layout.
type Encoding uint8

const (
	Uncompressed Encoding = iota + 1
	GorillaEnc
	PCO
)

func (e Encoding) String() string {
	switch e {
	case Uncompressed:
		return "UNCOMPRESSED"
	case GorillaEnc:
		return "GORILLA"
	case PCO:
		return "PCO"
	default:
		return "UNKNOWN"
	}
}

// ParseEncoding accepts the external names from spec §6, including the
// COMPRESSED alias for GORILLA.
func ParseEncoding(name string) (Encoding, bool) {
	switch strings.ToUpper(name) {
	case "UNCOMPRESSED":
		return Uncompressed, true
	case "GORILLA", "COMPRESSED":
		return GorillaEnc, true
	case "PCO":
		return PCO, true
	default:
		return 0, false
	}
}

// DuplicatePolicy resolves a conflict between an existing sample and an
// incoming one sharing the same timestamp.
type DuplicatePolicy uint8

const (
	Block DuplicatePolicy = iota + 1
	KeepFirst
	KeepLast
	Min
	Max
	Sum
)

func (p DuplicatePolicy) String() string {
	switch p {
	case Block:
		return "BLOCK"
	case KeepFirst:
		return "FIRST"
	case KeepLast:
		return "LAST"
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	case Sum:
		return "SUM"
	default:
		return "UNKNOWN"
	}
}

// ParseDuplicatePolicy accepts the external policy names.
func ParseDuplicatePolicy(name string) (DuplicatePolicy, bool) {
	switch strings.ToUpper(name) {
	case "BLOCK":
		return Block, true
	case "FIRST":
		return KeepFirst, true
	case "LAST":
		return KeepLast, true
	case "MIN":
		return Min, true
	case "MAX":
		return Max, true
	case "SUM":
		return Sum, true
	default:
		return 0, false
	}
}

// Alignment controls how a bucket's start timestamp is computed relative
// to a bucket duration in the range pipeline.
type Alignment uint8

const (
	AlignDefault Alignment = iota
	AlignStart
	AlignEnd
	AlignTimestamp
)

// BucketTimestamp selects which instant within a bucket is reported as the
// bucket's timestamp.
type BucketTimestamp uint8

const (
	BucketStart BucketTimestamp = iota
	BucketMid
	BucketEnd
)
