// Package api exposes the pool over HTTP.
//
// Endpoints:
//
//	GET  /api/status   pool size, worker ids, busy workers, queue length, stopped flag
//	GET  /api/metrics  metrics.Snapshot of the served pool as JSON
//	GET  /api/presets  bench presets
//	GET  /api/bench    state of the background bench and its last result
//	POST /api/bench    start a preset bench on a separate pool ({"preset": "burst"})
//	GET  /health       200 while the pool accepts jobs, 503 once stopped
//	GET  /metrics      Prometheus exposition
//	GET  /ws           WebSocket stream of bus events and a status tick
//
// Every WebSocket message is a JSON object with a "type" field of "event",
// "status" or "bench_complete".
package api
