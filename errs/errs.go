// Package errs collects the sentinel errors returned across the storage
// engine. Every exported error is a package-level value so callers compare
// with errors.Is rather than type assertions, mirroring the flat sentinel
// style the rest of the module's vocabulary uses.
package errs

import "errors"

// Argument / configuration errors.
var (
	ErrInvalidTimestamp      = errors.New("tsdb: invalid timestamp")
	ErrInvalidDuration       = errors.New("tsdb: invalid duration")
	ErrInvalidNumber         = errors.New("tsdb: invalid number")
	ErrInvalidEncoding       = errors.New("tsdb: invalid encoding name")
	ErrInvalidDuplicatePolicy = errors.New("tsdb: invalid duplicate policy")
	ErrInvalidSelector       = errors.New("tsdb: invalid label selector")
	ErrInvalidChunkSize      = errors.New("tsdb: chunk size out of bounds")
	ErrInvalidSignificantDigits = errors.New("tsdb: significant digits out of bounds")
	ErrUnsupportedCombination   = errors.New("tsdb: unsupported configuration combination")
)

// Existence errors.
var (
	ErrKeyExists      = errors.New("tsdb: key already exists")
	ErrSeriesExists   = errors.New("tsdb: metric and labels already map to a series")
	ErrKeyNotFound    = errors.New("tsdb: key not found")
	ErrSeriesNotFound = errors.New("tsdb: series not found")
)

// Write-path errors.
var (
	ErrSampleTooOld   = errors.New("tsdb: sample timestamp below retention horizon")
	ErrDuplicateSample = errors.New("tsdb: duplicate sample blocked by policy or dedupe interval")
	ErrCapacityFull   = errors.New("tsdb: chunk capacity full")
	ErrCannotAddSample = errors.New("tsdb: cannot add sample")
)

// Codec / persistence errors.
var (
	ErrDecodeFailed  = errors.New("tsdb: decode failed")
	ErrSerialize     = errors.New("tsdb: serialize failed")
	ErrDeserialize   = errors.New("tsdb: deserialize failed")
)

// Query errors.
var (
	ErrDeadlineExceeded = errors.New("tsdb: deadline exceeded")
)

// Internal invariant errors. These are logged by the caller and surfaced as
// a generic error; they must never reach a user verbatim.
var (
	ErrInternal            = errors.New("tsdb: internal invariant violation")
	ErrAmbiguousSeriesID   = errors.New("tsdb: metric and labels resolved to more than one series id")
)

// Kind classifies err into one of the error kinds from the error handling
// design (§7), with Decode and Serialize reported as separate kinds, eleven
// in all: InvalidArgument, InvalidConfiguration, AlreadyExists,
// NotFound, SampleTooOld, DuplicateSample, CapacityFull, Decode, Serialize,
// DeadlineExceeded, Internal. It returns "" for an unrecognized or nil
// error, leaving classification of foreign errors to the caller.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidTimestamp), errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrInvalidNumber), errors.Is(err, ErrInvalidEncoding),
		errors.Is(err, ErrInvalidDuplicatePolicy), errors.Is(err, ErrInvalidSelector):
		return "InvalidArgument"
	case errors.Is(err, ErrInvalidChunkSize), errors.Is(err, ErrInvalidSignificantDigits),
		errors.Is(err, ErrUnsupportedCombination):
		return "InvalidConfiguration"
	case errors.Is(err, ErrKeyExists), errors.Is(err, ErrSeriesExists):
		return "AlreadyExists"
	case errors.Is(err, ErrKeyNotFound), errors.Is(err, ErrSeriesNotFound):
		return "NotFound"
	case errors.Is(err, ErrSampleTooOld):
		return "SampleTooOld"
	case errors.Is(err, ErrDuplicateSample):
		return "DuplicateSample"
	case errors.Is(err, ErrCapacityFull):
		return "CapacityFull"
	case errors.Is(err, ErrDecodeFailed):
		return "Decode"
	case errors.Is(err, ErrSerialize), errors.Is(err, ErrDeserialize):
		return "Serialize"
	case errors.Is(err, ErrDeadlineExceeded):
		return "DeadlineExceeded"
	case errors.Is(err, ErrInternal), errors.Is(err, ErrAmbiguousSeriesID):
		return "Internal"
	default:
		return ""
	}
}
