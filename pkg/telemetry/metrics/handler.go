package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
//
// It is mounted at MetricsConfig.Path (default "/metrics") and serves the
// collector's registry in the Prometheus or OpenMetrics exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics:   true,
			MaxRequestsInFlight: 4,
			ErrorHandling:       promhttp.ContinueOnError,
		},
	)
}
