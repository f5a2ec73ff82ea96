// Package devtools exposes a running graph's internals over HTTP.
//
// It serves a liveness probe, a JSON census of the graph, the Prometheus
// exposition endpoint, and a WebSocket stream that pushes per-flush
// statistics as they happen. It is meant for development and staging; if
// you expose it in production, bind it to loopback or put it behind the
// same auth as your other debug endpoints.
//
// Standalone:
//
//	dt := devtools.New(g, devtools.WithAddress("127.0.0.1:6110"))
//	go dt.Run()
//	defer dt.Shutdown(context.Background())
//
// Or mounted into an existing chi router:
//
//	r.Mount("/debug/reflow", devtools.New(g).Handler())
package devtools
