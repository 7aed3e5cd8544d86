// Package metrics exports pipeline step timings and row counts to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"golang.org/x/xerrors"

	"go.nownabe.dev/dataload"
)

// Collector records pipeline runs. It implements dataload.Observer.
type Collector struct {
	gatherer prometheus.Gatherer

	stepDuration *prometheus.HistogramVec
	stepFailures *prometheus.CounterVec
	rows         *prometheus.CounterVec
}

var _ dataload.Observer = (*Collector)(nil)

// NewCollector registers the collectors against reg. A nil reg uses a new registry.
func NewCollector(reg *prometheus.Registry) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	c := &Collector{
		gatherer: reg,
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dataload_step_duration_seconds",
			Help:    "Wall time per pipeline step.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"dataset", "step"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataload_step_failures_total",
			Help: "Failed pipeline steps.",
		}, []string{"dataset", "step"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dataload_rows_extracted_total",
			Help: "Rows read from sources before cleaning.",
		}, []string{"dataset"}),
	}

	for _, collector := range []prometheus.Collector{c.stepDuration, c.stepFailures, c.rows} {
		if err := reg.Register(collector); err != nil {
			return nil, xerrors.Errorf("failed to register collector: %w", err)
		}
	}

	return c, nil
}

func (c *Collector) ObserveStep(dataset, step string, elapsed time.Duration, err error) {
	c.stepDuration.WithLabelValues(dataset, step).Observe(elapsed.Seconds())
	if err != nil {
		c.stepFailures.WithLabelValues(dataset, step).Inc()
	}
}

func (c *Collector) ObserveRows(dataset string, rows int) {
	c.rows.WithLabelValues(dataset).Add(float64(rows))
}

// Push sends every collected metric to the Pushgateway at url under job.
func (c *Collector) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(c.gatherer).PushContext(ctx); err != nil {
		return xerrors.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
