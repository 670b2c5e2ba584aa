package metrics

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kloudmate/metrics-core/internal/models"
	"github.com/kloudmate/metrics-core/internal/pool"
	"github.com/kloudmate/metrics-core/internal/registry"
)

// Engine wires the scope registry, buffer pool, transfer channel, and
// aggregator together. Producers obtain Sinks, readers obtain Controllers;
// the engine owns everything in between.
//
// The aggregator goroutine starts inside New and runs until Close.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	registry *registry.Registry
	pool     *pool.Pool
	facets   *facetPolicy
	clock    Clock

	// data carries filled buffers from sinks to the aggregator; control
	// carries snapshot requests. Buffer ownership moves with the send.
	data    chan *models.Buffer
	control chan snapshotRequest

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	stats engineStats
}

type engineStats struct {
	buffersDrained   atomic.Uint64
	samplesProcessed atomic.Uint64
	snapshotsServed  atomic.Uint64
}

// Stats is a point-in-time copy of the engine's processing counters.
type Stats struct {
	BuffersDrained   uint64
	SamplesProcessed uint64
	SnapshotsServed  uint64
}

// New builds an engine from cfg and starts its aggregator. A nil logger
// disables logging.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	facets, err := compileFacets(cfg.Facets)
	if err != nil {
		return nil, fmt.Errorf("%w: facets: %v", ErrInvalidConfig, err)
	}

	bufPool, err := pool.New(cfg.PoolBuffers, cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		registry: registry.New(),
		pool:     bufPool,
		facets:   facets,
		clock:    cfg.Clock,
		// The transfer channel holds as many buffers as the pool owns, so a
		// send can only block while the pool invariant is violated, i.e.
		// never.
		data:    make(chan *models.Buffer, cfg.PoolBuffers),
		control: make(chan snapshotRequest, 16),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go newAggregator(e).run()

	logger.Info("metrics engine started",
		zap.Int("pool_buffers", cfg.PoolBuffers),
		zap.Int("batch_size", cfg.BatchSize))

	return e, nil
}

// Sink returns a new root-scoped producer handle. Sinks are cheap; create
// one per producing goroutine, or derive narrower ones with Sink.Scoped.
func (e *Engine) Sink() *Sink {
	return &Sink{
		engine: e,
		scope:  "",
		scopes: make(map[string]scopeEntry),
	}
}

// Controller returns a handle for requesting snapshots. Controllers are
// plain values and may be copied freely across goroutines.
func (e *Engine) Controller() Controller {
	return Controller{control: e.control, done: e.done}
}

// Stats returns the engine's processing counters.
func (e *Engine) Stats() Stats {
	return Stats{
		BuffersDrained:   e.stats.buffersDrained.Load(),
		SamplesProcessed: e.stats.samplesProcessed.Load(),
		SnapshotsServed:  e.stats.snapshotsServed.Load(),
	}
}

// Close stops the aggregator after it drains the buffers and snapshot
// requests already queued. Sink and Controller calls made afterwards fail
// with ErrAggregatorGone. Close is idempotent and safe from any goroutine.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.cancel()
		<-e.done
		e.logger.Info("metrics engine stopped",
			zap.Uint64("buffers_drained", e.stats.buffersDrained.Load()),
			zap.Uint64("samples_processed", e.stats.samplesProcessed.Load()))
	})

	return nil
}
