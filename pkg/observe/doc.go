// Package observe provides production-grade flush observers for reflow graphs.
//
// This package includes:
//   - Prometheus metrics observer
//   - OpenTelemetry tracing observer
//
// Both implement reactive.FlushObserver and attach to a graph either at
// construction or later:
//
//	m := observe.NewMetrics(observe.WithNamespace("myapp"))
//	g := reactive.New(reactive.WithObserver(m))
//	g.AddObserver(observe.NewTracer())
//
// Observers run synchronously on the flushing goroutine, so they must stay
// cheap. Both observers here only touch counters and timestamps; exporting
// happens out of band in the Prometheus scrape or the OTel batch processor.
package observe
