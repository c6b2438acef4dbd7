// Package label defines the Label pair and the reserved metric-name label
// used throughout the index and matcher layers.
package label

import "sort"

// MetricName is the reserved label carrying a series' metric name.
const MetricName = "__name__"

// Label is a (name, value) pair. Comparison is case-sensitive.
type Label struct {
	Name  string
	Value string
}

// Labels is a slice of Label kept sorted by Name, as required by spec §3
// ("labels: [Label] sorted by name").
type Labels []Label

// Sort sorts ls in place by Name.
func (ls Labels) Sort() {
	sort.Slice(ls, func(i, j int) bool { return ls[i].Name < ls[j].Name })
}

// Get returns the value of the first label named name, if present.
func (ls Labels) Get(name string) (string, bool) {
	for _, l := range ls {
		if l.Name == name {
			return l.Value, true
		}
	}

	return "", false
}

// WithMetricName returns a copy of ls with the __name__ label set to
// metric, sorted by name. If ls already carries __name__ it is replaced.
func WithMetricName(metric string, ls Labels) Labels {
	out := make(Labels, 0, len(ls)+1)
	out = append(out, Label{Name: MetricName, Value: metric})
	for _, l := range ls {
		if l.Name == MetricName {
			continue
		}
		out = append(out, l)
	}
	out.Sort()

	return out
}

// Equal reports whether a and b contain the same labels, ignoring order.
func Equal(a, b Labels) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := append(Labels(nil), a...), append(Labels(nil), b...)
	sa.Sort()
	sb.Sort()
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}

	return true
}
