package histogram

import (
	"fmt"
	"strconv"
	"strings"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram is a high-dynamic-range value histogram: it keeps a bounded
// relative error (controlled by sigfigs) across the configured value range
// and supports percentile queries. Values outside the range are clamped to
// the nearer bound and accounted for in Saturated rather than dropped.
//
// Histogram is not safe for concurrent use; the aggregator is its only
// writer.
type Histogram struct {
	hdr       *hdrhistogram.Histogram
	low       int64
	high      int64
	saturated uint64
}

// New creates a histogram tracking values in [low, high] with the given
// number of significant figures (1 to 5).
func New(low, high int64, sigfigs int) (*Histogram, error) {
	if low < 1 {
		return nil, fmt.Errorf("histogram lower bound must be at least 1, got %d", low)
	}
	if high <= low {
		return nil, fmt.Errorf("histogram range is inverted: [%d, %d]", low, high)
	}
	if sigfigs < 1 || sigfigs > 5 {
		return nil, fmt.Errorf("histogram sigfigs must be between 1 and 5, got %d", sigfigs)
	}

	return &Histogram{
		hdr:  hdrhistogram.New(low, high, sigfigs),
		low:  low,
		high: high,
	}, nil
}

// Record adds a value. Out-of-range values are clamped and counted as
// saturation events.
func (h *Histogram) Record(v int64) {
	if v > h.high {
		v = h.high
		h.saturated++
	} else if v < h.low {
		v = h.low
		h.saturated++
	}
	// The value is in range after clamping, so this cannot fail.
	_ = h.hdr.RecordValue(v)
}

// Merge folds other into h. Both histograms must share a range; values the
// receiver cannot represent count as saturation events.
func (h *Histogram) Merge(other *Histogram) {
	dropped := h.hdr.Merge(other.hdr)
	h.saturated += other.saturated + uint64(dropped)
}

// Count reports the number of recorded values, clamped ones included.
func (h *Histogram) Count() uint64 {
	return uint64(h.hdr.TotalCount())
}

// Saturated reports how many recorded values were clamped to a bound.
func (h *Histogram) Saturated() uint64 {
	return h.saturated
}

// Summary extracts a point-in-time percentile summary. The returned value
// shares no state with the histogram.
func (h *Histogram) Summary(percentiles []float64) Summary {
	s := Summary{
		Count:     h.Count(),
		Saturated: h.saturated,
	}
	if s.Count == 0 {
		return s
	}

	s.Min = h.hdr.Min()
	s.Max = h.hdr.Max()
	s.Mean = h.hdr.Mean()
	s.Percentiles = make([]PercentileValue, 0, len(percentiles))
	for _, p := range percentiles {
		q := clampPercentile(p)
		s.Percentiles = append(s.Percentiles, PercentileValue{
			Label:    Label(q),
			Quantile: q,
			Value:    h.hdr.ValueAtQuantile(q),
		})
	}

	return s
}

// Summary is an immutable percentile summary of a histogram.
type Summary struct {
	Count       uint64            `json:"count"`
	Min         int64             `json:"min"`
	Max         int64             `json:"max"`
	Mean        float64           `json:"mean"`
	Saturated   uint64            `json:"saturated,omitempty"`
	Percentiles []PercentileValue `json:"percentiles,omitempty"`
}

// PercentileValue is one labeled percentile, e.g. {p99, 99.0, 1250}.
type PercentileValue struct {
	Label    string  `json:"label"`
	Quantile float64 `json:"quantile"`
	Value    int64   `json:"value"`
}

// DefaultPercentiles covers most use cases: min, p50, p95, p99, p999, max.
func DefaultPercentiles() []float64 {
	return []float64{0, 50, 95, 99, 99.9, 100}
}

// Label renders a percentile as a display label: 0 is "min", 100 is "max",
// anything else is pXXX with the decimal point removed (99.9 -> p999).
func Label(p float64) string {
	p = clampPercentile(p)
	switch p {
	case 0:
		return "min"
	case 100:
		return "max"
	default:
		raw := strconv.FormatFloat(p, 'f', -1, 64)
		return "p" + strings.ReplaceAll(raw, ".", "")
	}
}

func clampPercentile(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}

	return p
}
