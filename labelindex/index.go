// Package labelindex implements the inverted label index (spec
// component C4): a prefix-ordered map from "label=value" to a roaring
// bitmap of series ids, plus the matcher algebra that resolves
// selectors against it.
package labelindex

import (
	"sort"
	"strings"

	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/label"
)

// Index is one database's label index: id_to_key, label_index and
// label_count from spec §3. It carries no locking of its own — the
// registry (C5) owns the RWMutex per database.
type Index struct {
	idToKey    map[uint64][]byte
	nameToID   map[string]uint64 // (metric,labels) identity -> series id, invariant X2
	postings   *trie             // "label=value" -> postings
	labelNames map[string]int    // label name -> count of distinct values currently indexed
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		idToKey:    make(map[uint64][]byte),
		nameToID:   make(map[string]uint64),
		postings:   newTrie(),
		labelNames: make(map[string]int),
	}
}

func postingKey(name, value string) string {
	return name + "=" + value
}

func identityKey(metric string, ls label.Labels) string {
	var b strings.Builder
	b.WriteString(metric)
	for _, l := range ls {
		b.WriteByte('\x00')
		b.WriteString(l.Name)
		b.WriteByte('=')
		b.WriteString(l.Value)
	}
	return b.String()
}

// Insert registers a series under id with key as the host's opaque
// lookup key, metric and labels (already sorted by name, with
// __name__ = metric baked in by the caller). Returns ErrSeriesExists
// if (metric, labels) already maps to a different id (invariant X2).
func (idx *Index) Insert(id uint64, key []byte, metric string, labels label.Labels) error {
	ik := identityKey(metric, labels)
	if existing, ok := idx.nameToID[ik]; ok && existing != id {
		return errs.ErrSeriesExists
	}

	idx.idToKey[id] = key
	idx.nameToID[ik] = id

	full := label.WithMetricName(metric, labels)
	for _, l := range full {
		key := postingKey(l.Name, l.Value)
		p := idx.postings.getOrCreate(key)
		wasEmpty := p.isEmpty()
		p.add(id)
		if wasEmpty {
			idx.labelNames[l.Name]++
		}
	}
	return nil
}

// Delete eagerly removes every index entry for id (lifecycle: series
// destruction).
func (idx *Index) Delete(id uint64, metric string, labels label.Labels) {
	delete(idx.idToKey, id)
	delete(idx.nameToID, identityKey(metric, labels))

	full := label.WithMetricName(metric, labels)
	for _, l := range full {
		key := postingKey(l.Name, l.Value)
		p := idx.postings.get(key)
		if p == nil {
			continue
		}
		p.remove(id)
		if p.isEmpty() {
			idx.postings.delete(key)
			idx.labelNames[l.Name]--
			if idx.labelNames[l.Name] <= 0 {
				delete(idx.labelNames, l.Name)
			}
		}
	}
}

// Reindex adds newly appended labels to an existing series (ALTER-SERIES
// is append-only for labels, per spec §6).
func (idx *Index) Reindex(id uint64, added label.Labels) {
	for _, l := range added {
		key := postingKey(l.Name, l.Value)
		p := idx.postings.getOrCreate(key)
		wasEmpty := p.isEmpty()
		p.add(id)
		if wasEmpty {
			idx.labelNames[l.Name]++
		}
	}
}

// Key returns the host key registered for id.
func (idx *Index) Key(id uint64) ([]byte, bool) {
	k, ok := idx.idToKey[id]
	return k, ok
}

// IDByNameAndLabels implements get_id_by_name_and_labels. nameToID holds
// at most one id per (metric, labels) identity, enforced by Insert
// (invariant X2), so the error result is always nil.
func (idx *Index) IDByNameAndLabels(metric string, labels label.Labels) (uint64, bool, error) {
	id, ok := idx.nameToID[identityKey(metric, labels)]
	if !ok {
		return 0, false, nil
	}
	return id, true, nil
}

// LabelCount returns the number of distinct label names currently
// indexed.
func (idx *Index) LabelCount() int { return len(idx.labelNames) }

// LabelNames returns the sorted set of distinct label names among series
// matched by m. An empty Matchers resolves to no series, so it yields no
// names.
func (idx *Index) LabelNames(m Matchers) ([]string, error) {
	ids, err := idx.Resolve(m)
	if err != nil {
		return nil, err
	}

	// Label names are derived from the postings index directly rather
	// than per-series label sets (the index doesn't retain those), so
	// walk every posting key whose bitmap intersects ids.
	seen := make(map[string]struct{})
	var names []string
	idx.postings.prefixScan("", func(key string, p *postings) bool {
		eq := p.bm.Clone()
		eq.And(ids)
		if !eq.IsEmpty() {
			name := key[:strings.IndexByte(key, '=')]
			if _, dup := seen[name]; !dup {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
		return true
	})
	sort.Strings(names)
	return names, nil
}

// LabelValues returns the ordered set of distinct values of name among
// series matched by m.
func (idx *Index) LabelValues(name string, m Matchers) ([]string, error) {
	ids, err := idx.Resolve(m)
	if err != nil {
		return nil, err
	}
	var values []string
	idx.postings.prefixScan(name+"=", func(key string, p *postings) bool {
		eq := p.bm.Clone()
		eq.And(ids)
		if !eq.IsEmpty() {
			values = append(values, key[len(name)+1:])
		}
		return true
	})
	sort.Strings(values)
	return values, nil
}

// SeriesCountByMetricName implements get_series_count_by_metric_name
// via a prefix scan over the __name__ postings.
func (idx *Index) SeriesCountByMetricName(limit int, startPrefix string) []MetricCount {
	prefix := postingKey(label.MetricName, startPrefix)
	var out []MetricCount
	idx.postings.prefixScan(prefix, func(key string, p *postings) bool {
		name := key[len(label.MetricName)+1:]
		out = append(out, MetricCount{Metric: name, Count: int(p.bm.GetCardinality())})
		return limit <= 0 || len(out) < limit
	})
	return out
}

// MetricCount pairs a metric name with its series count.
type MetricCount struct {
	Metric string
	Count  int
}
