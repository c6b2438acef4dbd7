// Package tsdb is the Go-native facade (spec component C16) exposing
// spec.md §6's command table as a typed Engine: one method per command,
// composing the registry, series, label index and range pipeline
// packages the way a host key-value module's command handlers would.
package tsdb

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/internal/hash"
	"github.com/valkeymetrics/tsdb/label"
	"github.com/valkeymetrics/tsdb/labelindex"
	"github.com/valkeymetrics/tsdb/log"
	"github.com/valkeymetrics/tsdb/rangequery"
	"github.com/valkeymetrics/tsdb/registry"
	"github.com/valkeymetrics/tsdb/sample"
	"github.com/valkeymetrics/tsdb/series"
)

// Interface is the typed facade spec.md §6's command table maps onto.
// It is named Interface rather than Engine to avoid a stutter with the
// package name at call sites (tsdb.Interface), while *Engine is the one
// concrete implementation.
type Interface interface {
	CreateSeries(db uint32, key []byte, opts ...series.Option) (seriesID uint64, err error)
	AlterSeries(db uint32, key []byte, opts ...series.Option) error
	Add(db uint32, key []byte, ts int64, val float64) (int64, error)
	MAdd(db uint32, key []byte, samples []sample.Sample) ([]int64, error)
	Get(db uint32, key []byte) (sample.Sample, error)
	Del(db uint32, key []byte, start, end int64) (int, error)
	Range(db uint32, key []byte, q rangequery.Query) ([]rangequery.Row, error)
	Series(db uint32, m labelindex.Matchers) ([][]label.Label, error)
	Cardinality(db uint32, m labelindex.Matchers) (int, error)
	LabelNames(db uint32, m labelindex.Matchers) ([]string, error)
	LabelValues(db uint32, name string, m labelindex.Matchers) ([]string, error)
}

// maxCollisionRetries bounds the salted-id retry loop CreateSeries runs
// against hash.SeriesID before giving up; spec §3's "retried on
// collision" lifecycle rule never specifies a bound, so this is a
// generous one no real id space should ever reach.
const maxCollisionRetries = 64

// keyStore holds one database's host-key -> series mapping. The label
// index itself (id -> key, metric+labels -> id) lives in the shared
// registry; this is the reverse "opaque series handle registry" spec.md
// §1 treats as an external host collaborator, implemented here directly
// so the facade is usable standalone.
type keyStore struct {
	mu    sync.RWMutex
	byKey map[string]*series.Series
	byID  map[uint64]*series.Series
}

func newKeyStore() *keyStore {
	return &keyStore{byKey: make(map[string]*series.Series), byID: make(map[uint64]*series.Series)}
}

var _ Interface = (*Engine)(nil)

// Engine is the concrete Interface implementation.
type Engine struct {
	reg *registry.Registry

	mu     sync.RWMutex
	dbs    map[uint32]*keyStore
	logger log.Logger
}

// New creates an empty Engine. logger may be nil, in which case internal
// invariant violations are logged via log.Default().
func New(logger log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{reg: registry.New(), dbs: make(map[uint32]*keyStore), logger: logger}
}

func (e *Engine) store(db uint32) *keyStore {
	e.mu.RLock()
	ks, ok := e.dbs[db]
	e.mu.RUnlock()
	if ok {
		return ks
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ks, ok := e.dbs[db]; ok {
		return ks
	}
	ks = newKeyStore()
	e.dbs[db] = ks
	return ks
}

func (e *Engine) lookup(db uint32, key []byte) (*series.Series, error) {
	ks := e.store(db)
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	s, ok := ks.byKey[string(key)]
	if !ok {
		return nil, fmt.Errorf("%w: key does not resolve to a series", errs.ErrSeriesNotFound)
	}
	return s, nil
}

// CreateSeries assigns a new id by a deterministic hash of (metric,
// labels, salt) retried on collision (spec §3), then registers the
// series under key in this database.
func (e *Engine) CreateSeries(db uint32, key []byte, opts ...series.Option) (uint64, error) {
	ks := e.store(db)

	ks.mu.Lock()
	if _, exists := ks.byKey[string(key)]; exists {
		ks.mu.Unlock()
		return 0, fmt.Errorf("%w: key already has a series", errs.ErrKeyExists)
	}
	ks.mu.Unlock()

	metric, labels, _ := series.ParseOptions(opts...)

	var newSeries *series.Series
	err := e.reg.Write(db, func(idx *labelindex.Index) error {
		if _, found, lookupErr := idx.IDByNameAndLabels(metric, labels); lookupErr == nil && found {
			return fmt.Errorf("%w: metric and labels already map to a series", errs.ErrSeriesExists)
		}

		var id uint64
		for salt := uint64(0); salt < maxCollisionRetries; salt++ {
			candidate := hash.SeriesID(metric, labels, salt)
			ks.mu.RLock()
			_, taken := ks.byID[candidate]
			ks.mu.RUnlock()
			if !taken {
				id = candidate
				break
			}
		}
		if id == 0 {
			internalErr := fmt.Errorf("%w: exhausted id collision retries", errs.ErrInternal)
			e.logger.InternalError(internalErr, "series id allocation failed", zap.String("metric", metric))
			return internalErr
		}

		s, newErr := series.NewWithOptions(id, opts...)
		if newErr != nil {
			return newErr
		}
		if idxErr := idx.Insert(id, key, metric, labels); idxErr != nil {
			return idxErr
		}
		newSeries = s
		return nil
	})
	if err != nil {
		return 0, err
	}

	ks.mu.Lock()
	ks.byKey[string(key)] = newSeries
	ks.byID[newSeries.ID] = newSeries
	ks.mu.Unlock()

	return newSeries.ID, nil
}

// AlterSeries applies opts in place; label options additionally trigger
// a reindex since labels are append-only (spec §4.1).
func (e *Engine) AlterSeries(db uint32, key []byte, opts ...series.Option) error {
	s, err := e.lookup(db, key)
	if err != nil {
		return err
	}

	before := append(label.Labels(nil), s.Labels...)
	if err := s.Alter(opts...); err != nil {
		return err
	}

	if len(s.Labels) > len(before) {
		had := make(map[label.Label]bool, len(before))
		for _, l := range before {
			had[l] = true
		}
		var added label.Labels
		for _, l := range s.Labels {
			if !had[l] {
				added = append(added, l)
			}
		}
		return e.reg.Write(db, func(idx *labelindex.Index) error {
			idx.Reindex(s.ID, added)
			return nil
		})
	}
	return nil
}

// Add appends one sample, returning its resolved timestamp.
func (e *Engine) Add(db uint32, key []byte, ts int64, val float64) (int64, error) {
	s, err := e.lookup(db, key)
	if err != nil {
		return 0, err
	}
	if _, err := s.Add(ts, val); err != nil {
		return 0, err
	}
	return ts, nil
}

// MAdd appends samples one at a time in order, returning each resolved
// timestamp; a failure partway through still returns the timestamps
// that succeeded alongside the error.
func (e *Engine) MAdd(db uint32, key []byte, samples []sample.Sample) ([]int64, error) {
	s, err := e.lookup(db, key)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(samples))
	for _, sm := range samples {
		if _, err := s.Add(sm.Ts, sm.Val); err != nil {
			return out, err
		}
		out = append(out, sm.Ts)
	}
	return out, nil
}

// Get returns the series' most recent sample.
func (e *Engine) Get(db uint32, key []byte) (sample.Sample, error) {
	s, err := e.lookup(db, key)
	if err != nil {
		return sample.Sample{}, err
	}
	last, ok := s.LastSample()
	if !ok {
		return sample.Sample{}, fmt.Errorf("%w: series has no samples", errs.ErrSeriesNotFound)
	}
	return last, nil
}

// Del removes samples in [start,end], returning the count removed.
func (e *Engine) Del(db uint32, key []byte, start, end int64) (int, error) {
	s, err := e.lookup(db, key)
	if err != nil {
		return 0, err
	}
	return s.RemoveRange(start, end), nil
}

// Range runs the range pipeline (C6) over the series at key.
func (e *Engine) Range(db uint32, key []byte, q rangequery.Query) ([]rangequery.Row, error) {
	s, err := e.lookup(db, key)
	if err != nil {
		return nil, err
	}
	return rangequery.Run(s, q)
}

// Series resolves m to a list of label sets, one per matching series.
func (e *Engine) Series(db uint32, m labelindex.Matchers) ([][]label.Label, error) {
	ks := e.store(db)
	var out [][]label.Label
	err := e.reg.Read(db, func(idx *labelindex.Index) error {
		ids, err := idx.Resolve(m)
		if err != nil {
			return err
		}
		it := ids.Iterator()
		for it.HasNext() {
			id := it.Next()
			ks.mu.RLock()
			s, ok := ks.byID[id]
			ks.mu.RUnlock()
			if !ok {
				continue
			}
			out = append(out, append([]label.Label(nil), s.Labels...))
		}
		return nil
	})
	return out, err
}

// Cardinality returns the number of series matching m.
func (e *Engine) Cardinality(db uint32, m labelindex.Matchers) (int, error) {
	var n int
	err := e.reg.Read(db, func(idx *labelindex.Index) error {
		ids, err := idx.Resolve(m)
		if err != nil {
			return err
		}
		n = int(ids.GetCardinality())
		return nil
	})
	return n, err
}

// LabelNames returns the distinct label names across series matching m.
func (e *Engine) LabelNames(db uint32, m labelindex.Matchers) ([]string, error) {
	var names []string
	err := e.reg.Read(db, func(idx *labelindex.Index) error {
		var err error
		names, err = idx.LabelNames(m)
		return err
	})
	return names, err
}

// LabelValues returns the distinct values of name across series matching m.
func (e *Engine) LabelValues(db uint32, name string, m labelindex.Matchers) ([]string, error) {
	var values []string
	err := e.reg.Read(db, func(idx *labelindex.Index) error {
		var err error
		values, err = idx.LabelValues(name, m)
		return err
	})
	return values, err
}
