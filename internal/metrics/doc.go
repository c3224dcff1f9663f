// Package metrics provides job execution metrics for the worker pool.
//
// Metrics collects statistics about job execution time, success/panic
// counts, queue depth and busy workers. Every counter is mirrored into
// Prometheus collectors that can be registered on any registry.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	// Record a job
//	start := time.Now()
//	// ... run job ...
//	m.RecordSuccess(time.Since(start))
//
//	// Get statistics
//	fmt.Printf("Total: %d, JPS: %.2f, P99: %v\n",
//	    m.TotalJobs(), m.JPS(), m.P99Latency())
//
// # Prometheus
//
//	reg := prometheus.NewRegistry()
//	if err := m.Register(reg); err != nil {
//	    return err
//	}
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Thread Safety
//
// All operations use atomic counters or a RWMutex and are safe for
// concurrent access from every worker.
package metrics
