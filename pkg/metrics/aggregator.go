package metrics

import (
	"math"

	"go.uber.org/zap"

	"github.com/kloudmate/metrics-core/internal/models"
	"github.com/kloudmate/metrics-core/pkg/histogram"
)

// aggregator is the single consumer of the transfer channel. It owns all
// aggregated state, so no lock guards these maps: buffers arrive by
// ownership transfer and reads leave only as snapshot copies.
type aggregator struct {
	e *Engine

	counters   map[models.Key]int64
	gauges     map[models.Key]int64
	histograms map[models.Key]*histogram.Histogram
}

func newAggregator(e *Engine) *aggregator {
	return &aggregator{
		e:          e,
		counters:   make(map[models.Key]int64),
		gauges:     make(map[models.Key]int64),
		histograms: make(map[models.Key]*histogram.Histogram),
	}
}

// run is the aggregator loop. The select suspends until a buffer, a
// snapshot request, or shutdown is ready; the runtime's randomized case
// selection keeps persistently-ready sources from starving each other.
func (a *aggregator) run() {
	defer close(a.e.done)

	for {
		select {
		case buf := <-a.e.data:
			a.drain(buf)
		case req := <-a.e.control:
			a.serve(req)
		case <-a.e.ctx.Done():
			a.shutdown()
			return
		}
	}
}

// drain applies a buffer's samples in stored order, then recycles it.
func (a *aggregator) drain(buf *models.Buffer) {
	for _, s := range buf.Samples() {
		a.apply(s)
	}

	a.e.stats.buffersDrained.Add(1)
	a.e.stats.samplesProcessed.Add(uint64(buf.Len()))
	a.e.pool.Return(buf)
}

func (a *aggregator) apply(s models.Sample) {
	switch s.Key.Kind {
	case models.KindCounter:
		a.counters[s.Key] = saturatingAdd(a.counters[s.Key], s.Value)
	case models.KindGauge:
		a.gauges[s.Key] = s.Value
	case models.KindHistogram:
		h, ok := a.histograms[s.Key]
		if !ok {
			// The config was validated at construction, so this cannot fail.
			h, _ = histogram.New(a.e.cfg.HistogramMin, a.e.cfg.HistogramMax, a.e.cfg.HistogramSigfigs)
			a.histograms[s.Key] = h
		}
		h.Record(s.Value)
	default:
		a.e.logger.Warn("dropping sample of unknown kind", zap.Int8("kind", int8(s.Key.Kind)))
	}
}

// serve answers one snapshot request. Buffers already queued on the
// transfer channel are drained first, so a caller that flushed before
// requesting always sees its own samples; buffers sent after the request
// may or may not be reflected.
func (a *aggregator) serve(req snapshotRequest) {
	a.drainPending()

	snap := a.snapshot()
	a.e.stats.snapshotsServed.Add(1)

	// Best effort: the response channel is buffered, so an abandoned
	// requester never blocks the loop.
	select {
	case req.resp <- snap:
	default:
	}
}

func (a *aggregator) drainPending() {
	for {
		select {
		case buf := <-a.e.data:
			a.drain(buf)
		default:
			return
		}
	}
}

// shutdown performs a final drain and answers requests that were queued
// before Close won the race. Anything arriving later observes the closed
// done channel instead.
func (a *aggregator) shutdown() {
	a.drainPending()

	for {
		select {
		case req := <-a.e.control:
			a.serve(req)
		default:
			return
		}
	}
}

// saturatingAdd adds delta to v, pinning at the int64 bounds instead of
// wrapping.
func saturatingAdd(v, delta int64) int64 {
	if delta > 0 && v > math.MaxInt64-delta {
		return math.MaxInt64
	}
	if delta < 0 && v < math.MinInt64-delta {
		return math.MinInt64
	}

	return v + delta
}
