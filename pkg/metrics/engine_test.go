package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.Clock == nil {
		cfg.Clock = NewCounterClock()
	}

	e, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })

	return e
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "negative pool", cfg: Config{PoolBuffers: -1}},
		{name: "negative batch", cfg: Config{BatchSize: -4}},
		{name: "bad sigfigs", cfg: Config{HistogramSigfigs: 9}},
		{name: "inverted histogram range", cfg: Config{HistogramMin: 100, HistogramMax: 10}},
		{name: "unknown facet kind", cfg: Config{Facets: FacetConfig{
			Rules: []FacetRule{{Scope: "x", Kinds: []string{"summary"}}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg, nil)
			if err == nil {
				_ = e.Close()
				t.Fatal("New succeeded, want error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

// The aggregated sum must equal the arithmetic sum of all increments
// regardless of batch boundaries or sink interleaving.
func TestCounterAdditivityAcrossSinks(t *testing.T) {
	const (
		sinks      = 8
		increments = 1000
	)

	e := newTestEngine(t, Config{PoolBuffers: 4, BatchSize: 7})

	var wg sync.WaitGroup
	for i := 0; i < sinks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink := e.Sink()
			for j := 0; j < increments; j++ {
				if err := sink.Record("shared.total", KindCounter, 1); err != nil {
					t.Errorf("Record failed: %v", err)
					return
				}
			}
			if err := sink.Flush(); err != nil {
				t.Errorf("Flush failed: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, err := e.Controller().Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	got, ok := snap.Counter("shared.total")
	if !ok {
		t.Fatal("counter series missing from snapshot")
	}
	if want := int64(sinks * increments); got != want {
		t.Fatalf("aggregated sum = %d, want %d", got, want)
	}
}

// Submit, flush, snapshot: the snapshot must reflect exactly the samples
// submitted before the flush.
func TestFlushThenSnapshotConsistency(t *testing.T) {
	e := newTestEngine(t, Config{PoolBuffers: 8, BatchSize: 64})
	sink := e.Sink()
	controller := e.Controller()

	for i := 0; i < 5; i++ {
		sink.Counter("requests", 1)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	snap, err := controller.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if got, _ := snap.Counter("requests"); got != 5 {
		t.Fatalf("counter = %d after first flush, want 5", got)
	}

	sink.Counter("requests", 1)
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	snap2, err := controller.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if got, _ := snap2.Counter("requests"); got != 6 {
		t.Fatalf("counter = %d after second flush, want 6", got)
	}

	// The first snapshot is immutable: later aggregation must not leak
	// into it.
	if got, _ := snap.Counter("requests"); got != 5 {
		t.Fatalf("earlier snapshot mutated, counter = %d", got)
	}
}

func TestDisabledFacetRejection(t *testing.T) {
	e := newTestEngine(t, Config{
		PoolBuffers: 4,
		BatchSize:   4,
		Facets: FacetConfig{
			Rules: []FacetRule{{Scope: "limited", Kinds: []string{"counter"}}},
		},
	})
	sink := e.Sink()

	if err := sink.Record("limited", KindHistogram, 42); !errors.Is(err, ErrDisabledFacet) {
		t.Fatalf("histogram record on counter-only scope: err = %v, want ErrDisabledFacet", err)
	}
	if err := sink.Record("limited", KindCounter, 1); err != nil {
		t.Fatalf("counter record on counter-only scope failed: %v", err)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	snap, err := e.Controller().Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if _, ok := snap.Histogram("limited"); ok {
		t.Fatal("rejected histogram sample created an aggregated entry")
	}
	if got, ok := snap.Counter("limited"); !ok || got != 1 {
		t.Fatalf("counter = %d, %v, want 1, true", got, ok)
	}
}

func TestControllerAfterClose(t *testing.T) {
	e := newTestEngine(t, Config{PoolBuffers: 2, BatchSize: 2})
	controller := e.Controller()

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := controller.Snapshot(context.Background()); !errors.Is(err, ErrAggregatorGone) {
		t.Fatalf("Snapshot after Close: err = %v, want ErrAggregatorGone", err)
	}
}

func TestSinkAfterClose(t *testing.T) {
	e := newTestEngine(t, Config{PoolBuffers: 2, BatchSize: 1})
	sink := e.Sink()

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Batch size 1 forces a send attempt, which must fail cleanly instead
	// of blocking or panicking.
	if err := sink.Record("after", KindCounter, 1); !errors.Is(err, ErrAggregatorGone) {
		t.Fatalf("Record after Close: err = %v, want ErrAggregatorGone", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	e := newTestEngine(t, Config{PoolBuffers: 2, BatchSize: 2})
	for i := 0; i < 3; i++ {
		if err := e.Close(); err != nil {
			t.Fatalf("Close #%d failed: %v", i+1, err)
		}
	}
}

func TestStats(t *testing.T) {
	e := newTestEngine(t, Config{PoolBuffers: 4, BatchSize: 10})
	sink := e.Sink()

	for i := 0; i < 25; i++ {
		sink.Counter("stats.total", 1)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if _, err := e.Controller().Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	stats := e.Stats()
	if stats.SamplesProcessed != 25 {
		t.Fatalf("SamplesProcessed = %d, want 25", stats.SamplesProcessed)
	}
	if stats.BuffersDrained != 3 { // two full batches plus the flushed remainder
		t.Fatalf("BuffersDrained = %d, want 3", stats.BuffersDrained)
	}
	if stats.SnapshotsServed != 1 {
		t.Fatalf("SnapshotsServed = %d, want 1", stats.SnapshotsServed)
	}
}

func TestGaugeLastWriteWins(t *testing.T) {
	e := newTestEngine(t, Config{PoolBuffers: 4, BatchSize: 3})
	sink := e.Sink()

	// Values cross several batch boundaries; only the last may survive.
	for v := int64(1); v <= 10; v++ {
		sink.Gauge("queue.depth", v)
	}
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	snap, err := e.Controller().Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if got, _ := snap.Gauge("queue.depth"); got != 10 {
		t.Fatalf("gauge = %d, want 10", got)
	}
}

func TestHistogramAggregation(t *testing.T) {
	e := newTestEngine(t, Config{
		PoolBuffers:  4,
		BatchSize:    5,
		HistogramMin: 1,
		HistogramMax: 1000,
	})
	sink := e.Sink()

	for v := int64(1); v <= 100; v++ {
		sink.Observe("latency", v*10)
	}
	sink.Observe("latency", 50_000) // clamps to the configured max
	if err := sink.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	snap, err := e.Controller().Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	h, ok := snap.Histogram("latency")
	if !ok {
		t.Fatal("histogram series missing from snapshot")
	}
	if h.Count != 101 {
		t.Fatalf("count = %d, want 101", h.Count)
	}
	if h.Saturated != 1 {
		t.Fatalf("saturated = %d, want 1", h.Saturated)
	}
	if h.Max != 1000 {
		t.Fatalf("max = %d, want the configured bound 1000", h.Max)
	}
}
