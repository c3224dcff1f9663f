// Package server accepts TCP connections and answers each one on the worker pool.
//
// Every accepted connection becomes one job. The job reads the request line
// and replies with a static page:
//
//   - "GET / HTTP/1.1"      200 OK with hello.html
//   - "GET /sleep HTTP/1.1" 200 OK with hello.html after Config.Sleep
//   - anything else         404 NOT FOUND with 404.html
//
// Responses are framed as a status line, a Content-Length header and the
// body. Pages are embedded in the binary unless Config.DocRoot points at a
// directory holding hello.html and 404.html.
//
// # Basic Usage
//
//	pool := worker.NewPool(4)
//	srv, err := server.New(server.DefaultConfig(), pool)
//	if err != nil {
//	    return err
//	}
//	err = srv.Serve(ctx) // returns on ctx cancel or after MaxConns
//	pool.Stop()          // drains connections still being answered
package server
