package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// collectors はPrometheusのコレクタ群
type collectors struct {
	submitted   prometheus.Counter
	completed   prometheus.Counter
	panicked    prometheus.Counter
	errored     prometheus.Counter
	queueDepth  prometheus.Gauge
	busyWorkers prometheus.Gauge
	duration    prometheus.Histogram
	queueWait   prometheus.Histogram
}

func newCollectors(namespace string) *collectors {
	return &collectors{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of jobs submitted to the pool",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that ran to completion",
		}),
		panicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_panicked_total",
			Help:      "Total number of jobs that panicked and were recovered",
		}),
		errored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_errored_total",
			Help:      "Total number of jobs that returned without panicking but reported an error",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of jobs waiting in the queue",
		}),
		busyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "busy_workers",
			Help:      "Number of workers currently executing a job",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Histogram of job execution time",
			Buckets:   prometheus.DefBuckets,
		}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Histogram of time jobs spent queued before a worker took them",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.submitted,
		c.completed,
		c.panicked,
		c.errored,
		c.queueDepth,
		c.busyWorkers,
		c.duration,
		c.queueWait,
	}
}

// Register はPrometheusのレジストリにコレクタを登録する
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.prom.all() {
		if err := reg.Register(c); err != nil {
			return errors.Wrap(err, "failed to register pool collector")
		}
	}
	return nil
}
