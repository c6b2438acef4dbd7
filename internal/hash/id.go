// Package hash provides the xxHash64-based identifier derivation used to
// assign stable series ids from a metric name and label set.
package hash

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/valkeymetrics/tsdb/label"
)

// ID computes the xxHash64 of the given string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}

// SeriesID derives a deterministic series id from a metric name, its
// labels (assumed already sorted by name) and a salt used to retry past a
// collision. salt 0 is the first attempt.
//
// The digest is built the same way for every salt value so that two
// distinct (metric, labels) pairs landing on the same id at salt 0 will,
// with overwhelming probability, diverge at salt 1 — the caller (series
// lifecycle, spec §3) is expected to probe increasing salts against its
// id space until it finds one that is free.
func SeriesID(metric string, labels label.Labels, salt uint64) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(metric)
	_, _ = d.WriteString("\x00")
	for _, l := range labels {
		_, _ = d.WriteString(l.Name)
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(l.Value)
		_, _ = d.WriteString("\x00")
	}
	if salt != 0 {
		_, _ = d.WriteString("#")
		_, _ = d.WriteString(strconv.FormatUint(salt, 10))
	}

	id := d.Sum64()
	if id == 0 {
		// id==0 is reserved (spec invariant S4: id != 0); perturb deterministically.
		id = 1
	}

	return id
}
