package tsdb

import (
	"fmt"
	"strconv"
	"time"

	"github.com/valkeymetrics/tsdb/errs"
)

// MaxTimestamp is the sentinel "latest" timestamp: spec.md §6's "+"
// range endpoint resolves to this rather than to the series' actual
// last timestamp, since the range pipeline clips against a series'
// real extent separately.
const MaxTimestamp = int64(1<<63 - 1)

// Now is overridable in tests; production code never reassigns it.
var Now = func() time.Time { return time.Now() }

// ParseTimestamp accepts the literals "-", "+", "*", a relative offset
// ("-5m", "+1h30m"), an absolute millisecond integer, or an RFC3339
// timestamp — the same grammar TimestampValue::try_from resolves in
// original_source/src/series/timestamp_range.rs.
func ParseTimestamp(arg string) (int64, error) {
	switch arg {
	case "-":
		return 0, nil
	case "+":
		return MaxTimestamp, nil
	case "*":
		return Now().UnixMilli(), nil
	}

	if len(arg) > 0 && (arg[0] == '-' || arg[0] == '+') {
		rest := arg[1:]
		if d, err := time.ParseDuration(rest); err == nil {
			if arg[0] == '-' {
				return Now().Add(-d).UnixMilli(), nil
			}
			return Now().Add(d).UnixMilli(), nil
		}
	}

	if ms, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("%w: timestamp must be non-negative", errs.ErrInvalidTimestamp)
		}
		return ms, nil
	}

	if t, err := time.Parse(time.RFC3339, arg); err == nil {
		return t.UnixMilli(), nil
	}

	return 0, fmt.Errorf("%w: %q", errs.ErrInvalidTimestamp, arg)
}

// ParseDuration accepts a Go duration string ("5m", "1h30m") or a bare
// integer count of milliseconds, mirroring parse_duration's fallback to
// a raw integer in original_source/src/common/parse.rs.
func ParseDuration(arg string) (time.Duration, error) {
	if d, err := time.ParseDuration(arg); err == nil {
		return d, nil
	}
	if ms, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("%w: duration must be non-negative", errs.ErrInvalidDuration)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	return 0, fmt.Errorf("%w: %q", errs.ErrInvalidDuration, arg)
}

// ParseNumber accepts a bare float64, the only form spec.md §6 needs for
// FILTER_BY_VALUE bounds; original_source's parse_number_with_unit also
// accepts PromQL unit suffixes (Ki, Mi, ...), which spec.md's Non-goals
// exclude since this module does not parse PromQL literals.
func ParseNumber(arg string) (float64, error) {
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errs.ErrInvalidNumber, arg)
	}
	return v, nil
}
