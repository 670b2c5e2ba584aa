// Package promexport bridges engine snapshots into a Prometheus
// collector. The engine itself stays transport-agnostic; this package is
// one consumer of the snapshot read path.
package promexport

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kloudmate/metrics-core/pkg/metrics"
)

type Config struct {
	// Namespace prefixes every exported metric name.
	Namespace string
	// Timeout bounds the snapshot request per scrape. Defaults to 5s.
	Timeout time.Duration
}

// Collector implements prometheus.Collector by taking a fresh snapshot on
// every scrape: counters become const counters, gauges const gauges, and
// histogram summaries const summaries with the configured percentiles as
// quantiles.
type Collector struct {
	controller metrics.Controller
	logger     *zap.Logger
	namespace  string
	timeout    time.Duration
}

func New(cfg *Config, controller metrics.Controller, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Collector{
		controller: controller,
		logger:     logger,
		namespace:  cfg.Namespace,
		timeout:    timeout,
	}
}

// Describe sends no descriptors, making this an unchecked collector:
// series appear and disappear with the engine's aggregated state.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	snap, err := c.controller.Snapshot(ctx)
	if err != nil {
		c.logger.Error("snapshot request failed during scrape", zap.Error(err))
		return
	}

	for i := range snap.Series {
		s := &snap.Series[i]
		desc := prometheus.NewDesc(
			c.metricName(s.Scope, s.Kind),
			"Aggregated "+s.Kind+" for scope "+s.Scope,
			nil, nil,
		)

		var (
			m    prometheus.Metric
			mErr error
		)
		switch {
		case s.Sum != nil:
			m, mErr = prometheus.NewConstMetric(desc, prometheus.CounterValue, float64(*s.Sum))
		case s.Value != nil:
			m, mErr = prometheus.NewConstMetric(desc, prometheus.GaugeValue, float64(*s.Value))
		case s.Histogram != nil:
			h := s.Histogram
			quantiles := make(map[float64]float64, len(h.Percentiles))
			for _, p := range h.Percentiles {
				quantiles[p.Quantile/100] = float64(p.Value)
			}
			m, mErr = prometheus.NewConstSummary(desc, h.Count, h.Mean*float64(h.Count), quantiles)
		default:
			continue
		}

		if mErr != nil {
			c.logger.Warn("skipping unexportable series",
				zap.String("scope", s.Scope),
				zap.String("kind", s.Kind),
				zap.Error(mErr))
			continue
		}
		ch <- m
	}
}

// metricName flattens a dotted scope into a Prometheus-safe name, with the
// kind appended so multiple kinds under one scope stay distinct.
func (c *Collector) metricName(scope, kind string) string {
	name := scope + "_" + kind
	if c.namespace != "" {
		name = c.namespace + "_" + name
	}

	return sanitize(name)
}

func sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	return b.String()
}
