package series

import (
	"fmt"
	"time"

	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/label"
)

// creationState is the target every Option writes into: a Series'
// identity plus its Config. CreateSeries in the tsdb facade builds one
// series entirely from a variadic Option list (spec §6), so identity
// fields (metric, labels) live alongside Config fields here rather than
// forcing two separate option vocabularies.
type creationState struct {
	Metric string
	Labels label.Labels
	Config Config
}

// Option sets one field of a series' identity or Config. Each Option
// records whether it targets a field spec §4.1 allows AlterSeries to
// change after creation; CreateSeries accepts every Option, Alter
// accepts only the mutable ones.
type Option struct {
	mutable bool
	apply   func(*creationState)
}

func WithMetric(name string) Option {
	return Option{apply: func(s *creationState) { s.Metric = name }}
}

// WithLabels replaces the full label set. Spec §4.1 restricts AlterSeries
// to append-only label changes, which is enforced by the index layer
// (labelindex.Index.Reindex), not here — this Option is CreateSeries-only
// and will be rejected by Alter like any other immutable-by-default field
// unless the caller explicitly marks it mutable via WithAppendedLabels.
func WithLabels(ls label.Labels) Option {
	return Option{apply: func(s *creationState) { s.Labels = ls }}
}

// WithAppendedLabels is the Alter-safe counterpart to WithLabels: it adds
// to the existing label set rather than replacing it, matching spec
// §4.1's "labels are append-only" rule for ALTER-SERIES. Callers still
// need to call labelindex.Index.Reindex separately to keep C4 consistent.
func WithAppendedLabels(ls label.Labels) Option {
	return Option{mutable: true, apply: func(s *creationState) {
		s.Labels = append(append(label.Labels(nil), s.Labels...), ls...)
		s.Labels.Sort()
	}}
}

func WithEncoding(e format.Encoding) Option {
	return Option{apply: func(s *creationState) { s.Config.Encoding = e }}
}

func WithChunkSizeBytes(n int) Option {
	return Option{apply: func(s *creationState) { s.Config.ChunkSizeBytes = n }}
}

func WithRetention(d time.Duration) Option {
	return Option{mutable: true, apply: func(s *creationState) { s.Config.Retention = d }}
}

func WithDedupeInterval(d time.Duration) Option {
	return Option{mutable: true, apply: func(s *creationState) { s.Config.DedupeInterval = d }}
}

func WithDuplicatePolicy(p format.DuplicatePolicy) Option {
	return Option{mutable: true, apply: func(s *creationState) { s.Config.DuplicatePolicy = p }}
}

func WithSignificantDigits(d uint8) Option {
	return Option{mutable: true, apply: func(s *creationState) { s.Config.SignificantDigits = d }}
}

// ParseOptions resolves opts into the identity and Config a Series built
// from them would carry, without allocating a Series. CreateSeries uses
// this to learn the (metric, labels) pair before an id has been chosen.
func ParseOptions(opts ...Option) (metric string, labels label.Labels, cfg Config) {
	var st creationState
	for _, o := range opts {
		o.apply(&st)
	}
	return st.Metric, st.Labels, st.Config
}

// NewWithOptions builds a Series entirely from opts, for CreateSeries
// callers that don't already have a Config value assembled.
func NewWithOptions(id uint64, opts ...Option) (*Series, error) {
	metric, labels, cfg := ParseOptions(opts...)
	return New(id, metric, labels, cfg)
}

// Alter applies opts to s's identity/Config in place, rejecting any
// option that targets a field spec §4.1 fixes at creation time
// (Encoding, ChunkSizeBytes, Metric, a full label replacement).
func (s *Series) Alter(opts ...Option) error {
	for _, o := range opts {
		if !o.mutable {
			return fmt.Errorf("%w: option not alterable after series creation", errs.ErrUnsupportedCombination)
		}
	}
	st := creationState{Metric: s.Metric, Labels: s.Labels, Config: s.Config}
	for _, o := range opts {
		o.apply(&st)
	}
	if err := validateConfig(st.Config); err != nil {
		return err
	}
	s.Labels = st.Labels
	s.Config = st.Config
	return nil
}
