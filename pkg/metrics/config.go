package metrics

import (
	"fmt"

	"github.com/kloudmate/metrics-core/internal/models"
	"github.com/kloudmate/metrics-core/pkg/histogram"
)

// Kind re-exports the metric kind enum for engine callers.
type Kind = models.Kind

const (
	KindCounter   = models.KindCounter
	KindGauge     = models.KindGauge
	KindHistogram = models.KindHistogram
)

// Config controls an Engine. The zero value is usable: every field has a
// default applied by New.
type Config struct {
	// PoolBuffers is the number of pre-allocated sample buffers shared by
	// all sinks. This bounds the engine's memory: when every buffer is in
	// flight, producers block instead of allocating. Defaults to 512.
	PoolBuffers int `yaml:"pool_buffers"`

	// BatchSize is the per-sink buffer capacity. A sink hands its buffer to
	// the aggregator once this many samples are appended, or earlier on an
	// explicit Flush. Smaller batches lower visibility latency but raise
	// checkout frequency and with it the chance of blocking on the pool.
	// Defaults to 64.
	BatchSize int `yaml:"batch_size"`

	// HistogramMin and HistogramMax bound the trackable histogram value
	// range; recorded values outside it are clamped and counted as
	// saturation events. Defaults: 1 and 1e9 (one second in nanoseconds).
	HistogramMin int64 `yaml:"histogram_min"`
	HistogramMax int64 `yaml:"histogram_max"`

	// HistogramSigfigs sets histogram precision, 1 to 5 significant
	// figures. Defaults to 3.
	HistogramSigfigs int `yaml:"histogram_sigfigs"`

	// Percentiles are extracted from histograms at snapshot time.
	// Defaults to min/p50/p95/p99/p999/max.
	Percentiles []float64 `yaml:"percentiles"`

	// Facets restricts which metric kinds are recordable per scope.
	// The zero value enables everything.
	Facets FacetConfig `yaml:"facets"`

	// Clock supplies sample timestamps. Defaults to a monotonic clock.
	Clock Clock `yaml:"-"`
}

func (c *Config) setDefaults() {
	if c.PoolBuffers == 0 {
		c.PoolBuffers = 512
	}
	if c.BatchSize == 0 {
		c.BatchSize = 64
	}
	if c.HistogramMin == 0 {
		c.HistogramMin = 1
	}
	if c.HistogramMax == 0 {
		c.HistogramMax = 1_000_000_000
	}
	if c.HistogramSigfigs == 0 {
		c.HistogramSigfigs = 3
	}
	if c.Percentiles == nil {
		c.Percentiles = histogram.DefaultPercentiles()
	}
	if c.Clock == nil {
		c.Clock = NewMonotonicClock()
	}
}

func (c *Config) validate() error {
	if c.PoolBuffers <= 0 {
		return fmt.Errorf("%w: pool_buffers must be positive, got %d", ErrInvalidConfig, c.PoolBuffers)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}

	// A throwaway histogram validates the range and precision up front so
	// the aggregator never has to handle a construction failure.
	if _, err := histogram.New(c.HistogramMin, c.HistogramMax, c.HistogramSigfigs); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}
