// Package health provides the relay's liveness, readiness and version
// endpoints.
//
//   - /health: liveness. Always 200 while the process serves requests; the
//     body includes the number of in-flight tracked requests.
//   - /ready: readiness. Runs every registered check concurrently, each
//     bounded by the checker's timeout; 503 when any check fails.
//   - /version: build information.
//
// Usage:
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("upstream", health.UpstreamCheck(cfg.Upstream.BaseURL))
//	checker.ReportInFlight(fwd.Registry().Len)
//
//	mux.HandleFunc("GET /health", checker.LivenessHandler())
//	mux.HandleFunc("GET /ready", checker.ReadinessHandler())
package health
