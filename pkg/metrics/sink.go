package metrics

import (
	"github.com/kloudmate/metrics-core/internal/models"
	"github.com/kloudmate/metrics-core/internal/registry"
)

// Sink is a producer-side handle. It fills one checked-out buffer at a
// time and hands full buffers to the aggregator as a unit, so submission
// order within a sink is preserved end to end. Interleaving across
// distinct sinks is unspecified.
//
// A Sink is not safe for concurrent use; give each producing goroutine its
// own via Engine.Sink or Scoped. All sinks share the engine's pool and
// transfer channel and need no further synchronization.
type Sink struct {
	engine *Engine
	scope  string

	buf *models.Buffer

	// scopes caches the interned id and facet decision per scope argument,
	// so the steady-state Record path touches no shared state beyond the
	// buffer machinery.
	scopes map[string]scopeEntry
}

type scopeEntry struct {
	id   models.ScopeID
	mask kindMask
}

// Record appends one observation. The facet check runs first, the
// cheapest possible rejection point: a disabled kind never costs a buffer
// slot. When the append fills the buffer, the buffer is sent whole to the
// aggregator and the sink no longer references it; the next Record checks
// out a replacement, blocking while the pool is exhausted.
func (s *Sink) Record(scope string, kind Kind, value int64) error {
	entry, ok := s.scopes[scope]
	if !ok {
		full := registry.Join(s.scope, scope)
		entry = scopeEntry{
			id:   s.engine.registry.Intern(full),
			mask: s.engine.facets.mask(full),
		}
		s.scopes[scope] = entry
	}

	if !entry.mask.has(kind) {
		return ErrDisabledFacet
	}

	if s.buf == nil {
		buf, err := s.engine.pool.Checkout(s.engine.ctx)
		if err != nil {
			return ErrAggregatorGone
		}
		s.buf = buf
	}

	s.buf.Append(models.Sample{
		Key:       models.Key{Scope: entry.id, Kind: kind},
		Value:     value,
		Timestamp: s.engine.clock.Now(),
	})

	if s.buf.Full() {
		return s.send()
	}

	return nil
}

// Flush sends the current partially-filled buffer even though it is not
// full, trading batching efficiency for visibility latency. A sink with
// nothing buffered flushes as a no-op.
func (s *Sink) Flush() error {
	if s.buf == nil || s.buf.Len() == 0 {
		return nil
	}

	return s.send()
}

// send transfers buffer ownership to the aggregator. The sink's reference
// is cleared before anything can fail, so the buffer is never touched from
// both sides.
func (s *Sink) send() error {
	buf := s.buf
	s.buf = nil

	// The transfer channel can hold every buffer the pool owns, so the
	// send itself never blocks; the done check keeps a closed engine from
	// stranding buffers in the channel.
	select {
	case <-s.engine.done:
		s.engine.pool.Return(buf)
		return ErrAggregatorGone
	default:
	}

	select {
	case s.engine.data <- buf:
		return nil
	case <-s.engine.done:
		// The aggregator is gone; hand the buffer back so the pool
		// invariant still holds.
		s.engine.pool.Return(buf)
		return ErrAggregatorGone
	}
}

// Counter adds delta to the counter at scope. Recording errors are
// dropped; use Record when the caller wants them.
func (s *Sink) Counter(scope string, delta int64) {
	_ = s.Record(scope, KindCounter, delta)
}

// Gauge sets the gauge at scope. Last write wins.
func (s *Sink) Gauge(scope string, value int64) {
	_ = s.Record(scope, KindGauge, value)
}

// Observe records value into the histogram at scope.
func (s *Sink) Observe(scope string, value int64) {
	_ = s.Record(scope, KindHistogram, value)
}

// Timing records end-start nanoseconds into the histogram at scope. The
// endpoints should come from this sink's Clock.
func (s *Sink) Timing(scope string, start, end int64) {
	_ = s.Record(scope, KindHistogram, end-start)
}

// Scoped derives a child sink whose records are nested under name, joined
// with the scope separator. Scopes are inherited but independent: the
// child outlives the parent.
func (s *Sink) Scoped(name string) (*Sink, error) {
	if name == "" {
		return nil, ErrInvalidScope
	}

	return &Sink{
		engine: s.engine,
		scope:  registry.Join(s.scope, name),
		scopes: make(map[string]scopeEntry),
	}, nil
}

// Scope reports the sink's base scope ("" for a root sink).
func (s *Sink) Scope() string {
	return s.scope
}

// Clock exposes the engine clock for timing call sites.
func (s *Sink) Clock() Clock {
	return s.engine.clock
}
