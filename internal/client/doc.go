// Package client provides a load generator for the connection server.
//
// The Client runs its own worker pool and turns every request into a job
// that dials the server, writes one request line and reads the response.
// Latency and failures are recorded in a metrics.Metrics instance.
//
// # Basic Usage
//
//	c := client.New(client.Config{
//	    Addr:       "127.0.0.1:7878",
//	    NumWorkers: 8,
//	    SleepRatio: 0.1,
//	})
//	snap := c.RunRequests(ctx, 1000)
//	fmt.Printf("JPS: %.2f, P99: %v\n", snap.JPS, snap.P99Latency)
//
// # Request Mix
//
// SleepRatio and NotFoundRatio select the share of "/sleep" and unknown
// paths; the rest request "/". A response counts as a success when its
// status line matches the path that was requested.
//
// # In-flight Limit
//
// The pool queue is unbounded, so the generator caps outstanding requests
// at MaxInFlight and waits for a slot before submitting the next one.
package client
