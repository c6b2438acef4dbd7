package labelindex

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valkeymetrics/tsdb/label"
)

func seedIndex(t *testing.T) *Index {
	t.Helper()
	idx := New()
	series := []struct {
		id     uint64
		metric string
		labels label.Labels
	}{
		{1, "http_requests", label.Labels{{Name: "env", Value: "prod"}, {Name: "region", Value: "us"}}},
		{2, "http_requests", label.Labels{{Name: "env", Value: "prod"}, {Name: "region", Value: "eu"}}},
		{3, "http_requests", label.Labels{{Name: "env", Value: "qa"}, {Name: "region", Value: "us"}}},
		{4, "cpu_usage", label.Labels{{Name: "env", Value: "prod"}, {Name: "host", Value: "a"}}},
	}
	for _, s := range series {
		require.NoError(t, idx.Insert(s.id, []byte(s.metric), s.metric, s.labels))
	}
	return idx
}

func ids(bm interface{ ToArray() []uint64 }) []uint64 {
	out := bm.ToArray()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestResolve_EqSingle(t *testing.T) {
	idx := seedIndex(t)
	bm, err := idx.Resolve(Matchers{And: []LabelFilter{{Label: "__name__", Op: Eq, Value: "cpu_usage"}}})
	require.NoError(t, err)
	require.Equal(t, []uint64{4}, ids(bm))
}

func TestResolve_EqAndConjunction(t *testing.T) {
	idx := seedIndex(t)
	bm, err := idx.Resolve(Matchers{And: []LabelFilter{
		{Label: "__name__", Op: Eq, Value: "http_requests"},
		{Label: "env", Op: Eq, Value: "prod"},
	}})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, ids(bm))
}

func TestResolve_Ne(t *testing.T) {
	idx := seedIndex(t)
	bm, err := idx.Resolve(Matchers{And: []LabelFilter{
		{Label: "__name__", Op: Eq, Value: "http_requests"},
		{Label: "env", Op: Ne, Value: "prod"},
	}})
	require.NoError(t, err)
	require.Equal(t, []uint64{3}, ids(bm))
}

func TestResolve_RegexEq(t *testing.T) {
	idx := seedIndex(t)
	bm, err := idx.Resolve(Matchers{And: []LabelFilter{
		{Label: "region", Op: ReEq, Value: "us|eu"},
	}})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, ids(bm))
}

func TestResolve_OrGroups(t *testing.T) {
	idx := seedIndex(t)
	bm, err := idx.Resolve(Matchers{Or: [][]LabelFilter{
		{{Label: "__name__", Op: Eq, Value: "cpu_usage"}},
		{{Label: "region", Op: Eq, Value: "eu"}},
	}})
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 4}, ids(bm))
}

func TestResolve_EmptyMatchersIsEmptySet(t *testing.T) {
	idx := seedIndex(t)
	bm, err := idx.Resolve(Matchers{})
	require.NoError(t, err)
	require.True(t, bm.IsEmpty())
}

func TestDelete_PrunesEmptyPostingsAndLabelCount(t *testing.T) {
	idx := New()
	labels := label.Labels{{Name: "only", Value: "one"}}
	require.NoError(t, idx.Insert(1, []byte("k"), "m", labels))
	require.Equal(t, 2, idx.LabelCount()) // __name__ and "only"

	idx.Delete(1, "m", labels)
	require.Equal(t, 0, idx.LabelCount())
	require.Equal(t, 0, idx.postings.len())
}

func TestInsert_DuplicateIdentityRejected(t *testing.T) {
	idx := New()
	labels := label.Labels{{Name: "env", Value: "prod"}}
	require.NoError(t, idx.Insert(1, []byte("a"), "m", labels))
	err := idx.Insert(2, []byte("b"), "m", labels)
	require.Error(t, err)
}

func TestLabelNamesAndValues(t *testing.T) {
	idx := seedIndex(t)
	names, err := idx.LabelNames(Matchers{And: []LabelFilter{{Label: "__name__", Op: Eq, Value: "http_requests"}}})
	require.NoError(t, err)
	require.Equal(t, []string{"__name__", "env", "region"}, names)

	values, err := idx.LabelValues("env", Matchers{And: []LabelFilter{{Label: "__name__", Op: Eq, Value: "http_requests"}}})
	require.NoError(t, err)
	require.Equal(t, []string{"prod", "qa"}, values)
}

func TestIDByNameAndLabels(t *testing.T) {
	idx := seedIndex(t)
	id, ok, err := idx.IDByNameAndLabels("cpu_usage", label.Labels{{Name: "env", Value: "prod"}, {Name: "host", Value: "a"}})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 4, id)
}
