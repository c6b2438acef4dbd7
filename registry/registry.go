// Package registry implements the per-database label index registry
// (spec component C5): a map from database id to *labelindex.Index,
// with per-database RWMutex so distinct databases never contend.
package registry

import (
	"sync"

	"github.com/valkeymetrics/tsdb/labelindex"
)

type entry struct {
	mu  sync.RWMutex
	idx *labelindex.Index
}

// Registry maps database id (uint32) to its label index. Insertion of a
// new database uses sync.Map so distinct databases don't contend on a
// shared lock; once an entry exists, all access to that database's
// index goes through its own RWMutex.
type Registry struct {
	dbs sync.Map // uint32 -> *entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

func (r *Registry) entryFor(db uint32) *entry {
	if v, ok := r.dbs.Load(db); ok {
		return v.(*entry)
	}
	e := &entry{idx: labelindex.New()}
	actual, _ := r.dbs.LoadOrStore(db, e)
	return actual.(*entry)
}

// Write runs fn with an exclusive lock on db's index, creating the
// index on first use.
func (r *Registry) Write(db uint32, fn func(*labelindex.Index) error) error {
	e := r.entryFor(db)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.idx)
}

// Read runs fn with a shared lock on db's index.
func (r *Registry) Read(db uint32, fn func(*labelindex.Index) error) error {
	e := r.entryFor(db)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(e.idx)
}

// Clear drops the index for db entirely; the next Write/Read recreates
// it empty.
func (r *Registry) Clear(db uint32) {
	r.dbs.Delete(db)
}
