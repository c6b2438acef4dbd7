package labelindex

import "github.com/RoaringBitmap/roaring/v2/roaring64"

// postings wraps a roaring64 bitmap of series ids, the posting list for
// one label=value pair. Series ids are derived by xxHash64 (internal/hash),
// so the full 64-bit bitmap variant is used rather than the 32-bit one.
type postings struct {
	bm *roaring64.Bitmap
}

func newPostings() *postings {
	return &postings{bm: roaring64.New()}
}

func (p *postings) add(id uint64)      { p.bm.Add(id) }
func (p *postings) remove(id uint64)   { p.bm.Remove(id) }
func (p *postings) isEmpty() bool      { return p.bm.IsEmpty() }
func (p *postings) contains(id uint64) bool {
	return p.bm.Contains(id)
}

func (p *postings) clone() *roaring64.Bitmap { return p.bm.Clone() }

// unionAll returns a new bitmap holding the union of every non-nil
// bitmap in bms.
func unionAll(bms ...*roaring64.Bitmap) *roaring64.Bitmap {
	out := roaring64.New()
	for _, bm := range bms {
		if bm == nil {
			continue
		}
		out.Or(bm)
	}
	return out
}

// intersectAll returns the intersection of bms, or an empty bitmap if
// bms is empty.
func intersectAll(bms ...*roaring64.Bitmap) *roaring64.Bitmap {
	if len(bms) == 0 {
		return roaring64.New()
	}
	out := bms[0].Clone()
	for _, bm := range bms[1:] {
		out.And(bm)
	}
	return out
}
