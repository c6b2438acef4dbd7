package labelindex

import "sort"

// trie is a prefix-ordered map from string key to *postings, kept as a
// sorted slice rather than a linked node structure. Lookups are O(log n)
// binary searches; inserts and deletes binary-search the position and
// then shift the slice tail; a prefix scan is the
// contiguous sub-slice covering [prefix, prefix+"\xff"), which is the
// property spec §4.4 actually needs (enumerate every key starting with
// "label="), and is what an explicit trie would give for free. No
// library in the retrieved pack offers an ordered map or trie, so this
// is hand-rolled; see DESIGN.md.
type trie struct {
	keys    []string
	entries []*postings
}

func newTrie() *trie {
	return &trie{}
}

func (t *trie) search(key string) (idx int, found bool) {
	idx = sort.SearchStrings(t.keys, key)
	found = idx < len(t.keys) && t.keys[idx] == key
	return idx, found
}

// get returns the postings for key, or nil if absent.
func (t *trie) get(key string) *postings {
	idx, found := t.search(key)
	if !found {
		return nil
	}
	return t.entries[idx]
}

// getOrCreate returns the postings for key, inserting an empty one if
// key is not yet present.
func (t *trie) getOrCreate(key string) *postings {
	idx, found := t.search(key)
	if found {
		return t.entries[idx]
	}
	p := newPostings()
	t.keys = append(t.keys, "")
	copy(t.keys[idx+1:], t.keys[idx:])
	t.keys[idx] = key

	t.entries = append(t.entries, nil)
	copy(t.entries[idx+1:], t.entries[idx:])
	t.entries[idx] = p

	return p
}

// delete removes key entirely (used once its bitmap becomes empty, per
// invariant X3).
func (t *trie) delete(key string) {
	idx, found := t.search(key)
	if !found {
		return
	}
	t.keys = append(t.keys[:idx], t.keys[idx+1:]...)
	t.entries = append(t.entries[:idx], t.entries[idx+1:]...)
}

// prefixScan calls fn for every key with the given prefix, in sorted
// key order, stopping early if fn returns false.
func (t *trie) prefixScan(prefix string, fn func(key string, p *postings) bool) {
	start := sort.SearchStrings(t.keys, prefix)
	for i := start; i < len(t.keys); i++ {
		if len(t.keys[i]) < len(prefix) || t.keys[i][:len(prefix)] != prefix {
			break
		}
		if !fn(t.keys[i], t.entries[i]) {
			return
		}
	}
}

func (t *trie) len() int { return len(t.keys) }
