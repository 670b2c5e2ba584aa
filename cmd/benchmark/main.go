package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/kloudmate/metrics-core/pkg/metrics"
)

type Config struct {
	Engine struct {
		PoolBuffers      int   `yaml:"pool_buffers"`
		BatchSize        int   `yaml:"batch_size"`
		HistogramMin     int64 `yaml:"histogram_min"`
		HistogramMax     int64 `yaml:"histogram_max"`
		HistogramSigfigs int   `yaml:"histogram_sigfigs"`
	} `yaml:"engine"`

	Benchmark struct {
		Producers        int           `yaml:"producers"`
		Duration         time.Duration `yaml:"duration"`
		SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	} `yaml:"benchmark"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

func main() {
	configFile := flag.String("config", "", "Path to configuration file (optional)")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	engine, err := metrics.New(metrics.Config{
		PoolBuffers:      cfg.Engine.PoolBuffers,
		BatchSize:        cfg.Engine.BatchSize,
		HistogramMin:     cfg.Engine.HistogramMin,
		HistogramMax:     cfg.Engine.HistogramMax,
		HistogramSigfigs: cfg.Engine.HistogramSigfigs,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create metrics engine", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Benchmark.Duration)
	defer cancel()

	var wg sync.WaitGroup
	var produced atomic.Uint64

	for i := 0; i < cfg.Benchmark.Producers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			runProducer(ctx, engine, worker, &produced)
		}(i)
	}

	controller := engine.Controller()
	go reportLoop(ctx, controller, logger, cfg.Benchmark.SnapshotInterval, &produced)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Benchmark started",
		zap.Int("producers", cfg.Benchmark.Producers),
		zap.Duration("duration", cfg.Benchmark.Duration))

	select {
	case <-sigChan:
		logger.Info("Interrupted, shutting down")
		cancel()
	case <-ctx.Done():
	}

	wg.Wait()

	finalCtx, finalCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer finalCancel()
	if snap, err := controller.Snapshot(finalCtx); err == nil {
		logFinal(logger, snap, produced.Load())
	} else {
		logger.Error("Failed to take final snapshot", zap.Error(err))
	}

	stats := engine.Stats()
	if err := engine.Close(); err != nil {
		logger.Error("Failed to close engine", zap.Error(err))
	}

	logger.Info("Benchmark complete",
		zap.Uint64("samples_submitted", produced.Load()),
		zap.Uint64("buffers_drained", stats.BuffersDrained),
		zap.Uint64("samples_processed", stats.SamplesProcessed))
}

func runProducer(ctx context.Context, engine *metrics.Engine, worker int, produced *atomic.Uint64) {
	sink, err := engine.Sink().Scoped(fmt.Sprintf("benchmark.worker_%d", worker))
	if err != nil {
		return
	}
	clock := sink.Clock()

	var gauge int64
	t0 := clock.Now()
	for ctx.Err() == nil {
		gauge++
		t1 := clock.Now()

		sink.Counter("total", 1)
		sink.Gauge("inflight", gauge)
		sink.Timing("loop", t0, t1)
		produced.Add(3)

		t0 = t1
	}

	_ = sink.Flush()
}

func reportLoop(ctx context.Context, controller metrics.Controller, logger *zap.Logger, interval time.Duration, produced *atomic.Uint64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ticker.C:
			snap, err := controller.Snapshot(ctx)
			if err != nil {
				logger.Warn("Snapshot failed", zap.Error(err))
				continue
			}

			now := produced.Load()
			logger.Info("Progress",
				zap.Uint64("samples_per_interval", now-last),
				zap.Int("series", len(snap.Series)))
			last = now
		case <-ctx.Done():
			return
		}
	}
}

func logFinal(logger *zap.Logger, snap *metrics.Snapshot, produced uint64) {
	logger.Info("Final snapshot", zap.Int("series", len(snap.Series)), zap.Uint64("submitted", produced))

	for _, series := range snap.Series {
		if series.Histogram == nil {
			continue
		}
		fields := []zap.Field{
			zap.String("scope", series.Scope),
			zap.Uint64("count", series.Histogram.Count),
			zap.Float64("mean_ns", series.Histogram.Mean),
		}
		for _, p := range series.Histogram.Percentiles {
			fields = append(fields, zap.Int64(p.Label+"_ns", p.Value))
		}
		logger.Info("Timing", fields...)
	}
}

func loadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	setDefaults(&cfg)

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Engine.PoolBuffers == 0 {
		cfg.Engine.PoolBuffers = 512
	}

	if cfg.Engine.BatchSize == 0 {
		cfg.Engine.BatchSize = 64
	}

	if cfg.Benchmark.Producers == 0 {
		cfg.Benchmark.Producers = 4
	}

	if cfg.Benchmark.Duration == 0 {
		cfg.Benchmark.Duration = 10 * time.Second
	}

	if cfg.Benchmark.SnapshotInterval == 0 {
		cfg.Benchmark.SnapshotInterval = time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	config := zap.NewProductionConfig()
	config.Level = zapLevel
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build()
}
