package tsdb

import (
	"errors"
	"testing"
	"time"

	"github.com/valkeymetrics/tsdb/errs"
	"github.com/valkeymetrics/tsdb/format"
	"github.com/valkeymetrics/tsdb/label"
	"github.com/valkeymetrics/tsdb/labelindex"
	"github.com/valkeymetrics/tsdb/rangequery"
	"github.com/valkeymetrics/tsdb/sample"
	"github.com/valkeymetrics/tsdb/series"
)

func newTestEngine() *Engine {
	return New(nil)
}

func TestCreateSeries_BasicAndDuplicateKey(t *testing.T) {
	e := newTestEngine()
	key := []byte("metric:cpu")

	id, err := e.CreateSeries(0, key,
		series.WithMetric("cpu"),
		series.WithLabels(label.Labels{{Name: "host", Value: "a"}}),
		series.WithEncoding(format.GorillaEnc),
		series.WithChunkSizeBytes(4096),
	)
	if err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero series id")
	}

	if _, err := e.CreateSeries(0, key, series.WithMetric("cpu"), series.WithEncoding(format.GorillaEnc), series.WithChunkSizeBytes(4096)); err == nil {
		t.Fatal("expected error for duplicate key")
	} else if !errors.Is(err, errs.ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
}

func TestCreateSeries_DuplicateMetricAndLabelsRejected(t *testing.T) {
	e := newTestEngine()
	labels := label.Labels{{Name: "host", Value: "a"}}

	if _, err := e.CreateSeries(0, []byte("k1"), series.WithMetric("cpu"), series.WithLabels(labels),
		series.WithEncoding(format.Uncompressed), series.WithChunkSizeBytes(4096)); err != nil {
		t.Fatalf("first CreateSeries: %v", err)
	}

	_, err := e.CreateSeries(0, []byte("k2"), series.WithMetric("cpu"), series.WithLabels(labels),
		series.WithEncoding(format.Uncompressed), series.WithChunkSizeBytes(4096))
	if err == nil {
		t.Fatal("expected error for duplicate metric+labels")
	}
	if !errors.Is(err, errs.ErrSeriesExists) {
		t.Fatalf("expected ErrSeriesExists, got %v", err)
	}
}

func TestCreateSeries_DistinctDatabasesAllowDuplicateKeys(t *testing.T) {
	e := newTestEngine()
	key := []byte("k")

	if _, err := e.CreateSeries(0, key, series.WithMetric("m"), series.WithEncoding(format.Uncompressed), series.WithChunkSizeBytes(4096)); err != nil {
		t.Fatalf("db0: %v", err)
	}
	if _, err := e.CreateSeries(1, key, series.WithMetric("m"), series.WithEncoding(format.Uncompressed), series.WithChunkSizeBytes(4096)); err != nil {
		t.Fatalf("db1: %v", err)
	}
}

func TestAddAndGet(t *testing.T) {
	e := newTestEngine()
	key := []byte("k")
	if _, err := e.CreateSeries(0, key, series.WithMetric("m"), series.WithEncoding(format.Uncompressed), series.WithChunkSizeBytes(4096)); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}

	if _, err := e.Add(0, key, 1000, 1.5); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := e.Add(0, key, 2000, 2.5); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := e.Get(0, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Ts != 2000 || got.Val != 2.5 {
		t.Fatalf("got %+v", got)
	}
}

func TestAdd_UnknownKeyFails(t *testing.T) {
	e := newTestEngine()
	if _, err := e.Add(0, []byte("nope"), 1000, 1); err == nil {
		t.Fatal("expected error")
	} else if !errors.Is(err, errs.ErrSeriesNotFound) {
		t.Fatalf("expected ErrSeriesNotFound, got %v", err)
	}
}

func TestMAdd(t *testing.T) {
	e := newTestEngine()
	key := []byte("k")
	if _, err := e.CreateSeries(0, key, series.WithMetric("m"), series.WithEncoding(format.Uncompressed), series.WithChunkSizeBytes(4096)); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}

	samples := []sample.Sample{{Ts: 1000, Val: 1}, {Ts: 2000, Val: 2}, {Ts: 3000, Val: 3}}
	tss, err := e.MAdd(0, key, samples)
	if err != nil {
		t.Fatalf("MAdd: %v", err)
	}
	if len(tss) != 3 || tss[2] != 3000 {
		t.Fatalf("got %v", tss)
	}
}

func TestDel(t *testing.T) {
	e := newTestEngine()
	key := []byte("k")
	if _, err := e.CreateSeries(0, key, series.WithMetric("m"), series.WithEncoding(format.Uncompressed), series.WithChunkSizeBytes(4096)); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	for ts := int64(1000); ts <= 5000; ts += 1000 {
		if _, err := e.Add(0, key, ts, float64(ts)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	n, err := e.Del(0, key, 2000, 4000)
	if err != nil {
		t.Fatalf("Del: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 removed, got %d", n)
	}
}

func TestAlterSeries_RejectsImmutableOption(t *testing.T) {
	e := newTestEngine()
	key := []byte("k")
	if _, err := e.CreateSeries(0, key, series.WithMetric("m"), series.WithEncoding(format.Uncompressed), series.WithChunkSizeBytes(4096)); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	if err := e.AlterSeries(0, key, series.WithEncoding(format.GorillaEnc)); err == nil {
		t.Fatal("expected error altering immutable field")
	}
}

func TestAlterSeries_AppendedLabelsTriggerReindex(t *testing.T) {
	e := newTestEngine()
	key := []byte("k")
	if _, err := e.CreateSeries(0, key,
		series.WithMetric("m"),
		series.WithLabels(label.Labels{{Name: "host", Value: "a"}}),
		series.WithEncoding(format.Uncompressed),
		series.WithChunkSizeBytes(4096),
		series.WithRetention(time.Hour),
	); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}

	if err := e.AlterSeries(0, key, series.WithAppendedLabels(label.Labels{{Name: "region", Value: "us"}})); err != nil {
		t.Fatalf("AlterSeries: %v", err)
	}

	sets, err := e.Series(0, labelindex.Matchers{And: []labelindex.LabelFilter{{Label: "region", Op: labelindex.Eq, Value: "us"}}})
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("expected 1 matching series after reindex, got %d", len(sets))
	}
}

func TestRange(t *testing.T) {
	e := newTestEngine()
	key := []byte("k")
	if _, err := e.CreateSeries(0, key, series.WithMetric("m"), series.WithEncoding(format.Uncompressed), series.WithChunkSizeBytes(4096)); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	for ts := int64(1000); ts <= 5000; ts += 1000 {
		if _, err := e.Add(0, key, ts, float64(ts)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	rows, err := e.Range(0, key, rangequery.Query{Start: 0, End: 10000})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
}

func TestCardinalityAndLabelNamesValues(t *testing.T) {
	e := newTestEngine()
	if _, err := e.CreateSeries(0, []byte("k1"), series.WithMetric("cpu"),
		series.WithLabels(label.Labels{{Name: "host", Value: "a"}}),
		series.WithEncoding(format.Uncompressed), series.WithChunkSizeBytes(4096)); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}
	if _, err := e.CreateSeries(0, []byte("k2"), series.WithMetric("cpu"),
		series.WithLabels(label.Labels{{Name: "host", Value: "b"}}),
		series.WithEncoding(format.Uncompressed), series.WithChunkSizeBytes(4096)); err != nil {
		t.Fatalf("CreateSeries: %v", err)
	}

	m := labelindex.Matchers{And: []labelindex.LabelFilter{{Label: label.MetricName, Op: labelindex.Eq, Value: "cpu"}}}

	n, err := e.Cardinality(0, m)
	if err != nil {
		t.Fatalf("Cardinality: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected cardinality 2, got %d", n)
	}

	values, err := e.LabelValues(0, "host", m)
	if err != nil {
		t.Fatalf("LabelValues: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("expected 2 host values, got %v", values)
	}

	names, err := e.LabelNames(0, m)
	if err != nil {
		t.Fatalf("LabelNames: %v", err)
	}
	found := false
	for _, n := range names {
		if n == "host" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected host in label names, got %v", names)
	}
}

func TestCreateSeries_DistinctLabelsAssignDistinctIDs(t *testing.T) {
	e := newTestEngine()
	const n = 50
	seen := make(map[uint64]bool, n)
	for i := 0; i < n; i++ {
		id, err := e.CreateSeries(0, []byte{byte(i)}, series.WithMetric("same"),
			series.WithLabels(label.Labels{{Name: "i", Value: string(rune('a' + i))}}),
			series.WithEncoding(format.Uncompressed), series.WithChunkSizeBytes(4096))
		if err != nil {
			t.Fatalf("CreateSeries #%d: %v", i, err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %d assigned at iteration %d", id, i)
		}
		seen[id] = true
	}
}
