package metrics

import (
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/kloudmate/metrics-core/internal/models"
	"github.com/kloudmate/metrics-core/pkg/histogram"
)

// Snapshot is an immutable point-in-time copy of every aggregated series.
// It shares no state with the aggregator; it is consistent with respect to
// the aggregator's own processing order, not wall-clock simultaneity
// across sinks.
type Snapshot struct {
	// TakenAt is the engine clock reading when the snapshot was built.
	TakenAt int64    `json:"taken_at"`
	Series  []Series `json:"series"`
}

// Series is one aggregated (scope, kind) entry. Exactly one of Sum, Value,
// and Histogram is set, matching Kind.
type Series struct {
	SeriesHash uint64             `json:"series_hash"`
	Scope      string             `json:"scope"`
	Kind       string             `json:"kind"`
	Sum        *int64             `json:"sum,omitempty"`
	Value      *int64             `json:"value,omitempty"`
	Histogram  *histogram.Summary `json:"histogram,omitempty"`
}

// Counter returns the aggregated sum for scope, if one exists.
func (s *Snapshot) Counter(scope string) (int64, bool) {
	for i := range s.Series {
		if s.Series[i].Scope == scope && s.Series[i].Sum != nil {
			return *s.Series[i].Sum, true
		}
	}

	return 0, false
}

// Gauge returns the last-written gauge value for scope, if one exists.
func (s *Snapshot) Gauge(scope string) (int64, bool) {
	for i := range s.Series {
		if s.Series[i].Scope == scope && s.Series[i].Value != nil {
			return *s.Series[i].Value, true
		}
	}

	return 0, false
}

// Histogram returns the histogram summary for scope, if one exists.
func (s *Snapshot) Histogram(scope string) (*histogram.Summary, bool) {
	for i := range s.Series {
		if s.Series[i].Scope == scope && s.Series[i].Histogram != nil {
			return s.Series[i].Histogram, true
		}
	}

	return nil, false
}

// JSON encodes the snapshot for external exporters.
func (s *Snapshot) JSON() ([]byte, error) {
	return json.Marshal(s)
}

func seriesHash(scope, kind string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(scope)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(kind)

	return d.Sum64()
}

// snapshot copies the aggregator's state into a Snapshot, resolving scope
// ids back to names. Runs on the aggregator goroutine only.
func (a *aggregator) snapshot() *Snapshot {
	snap := &Snapshot{
		TakenAt: a.e.clock.Now(),
		Series:  make([]Series, 0, len(a.counters)+len(a.gauges)+len(a.histograms)),
	}

	for key, sum := range a.counters {
		v := sum
		snap.Series = append(snap.Series, a.series(key, Series{Sum: &v}))
	}
	for key, value := range a.gauges {
		v := value
		snap.Series = append(snap.Series, a.series(key, Series{Value: &v}))
	}
	for key, h := range a.histograms {
		summary := h.Summary(a.e.cfg.Percentiles)
		snap.Series = append(snap.Series, a.series(key, Series{Histogram: &summary}))
	}

	sort.Slice(snap.Series, func(i, j int) bool {
		if snap.Series[i].Scope != snap.Series[j].Scope {
			return snap.Series[i].Scope < snap.Series[j].Scope
		}
		return snap.Series[i].Kind < snap.Series[j].Kind
	})

	return snap
}

func (a *aggregator) series(key models.Key, s Series) Series {
	scope, ok := a.e.registry.Resolve(key.Scope)
	if !ok {
		// Samples only carry ids handed out by the registry, so an
		// unresolvable id would mean a corrupted key.
		a.e.logger.Error("unresolvable scope id in aggregated state")
		scope = "unknown"
	}

	s.Scope = scope
	s.Kind = key.Kind.String()
	s.SeriesHash = seriesHash(scope, s.Kind)

	return s
}
