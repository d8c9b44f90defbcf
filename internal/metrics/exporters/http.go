// Package exporters publishes the process metrics over HTTP and the event bus.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler serves every promauto-registered metric from the default
// registry. Scrapes are counted in promhttp_metric_handler_requests_total.
func HTTPHandler() http.Handler {
	return HandlerFor(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// HandlerFor serves the metrics of gatherer and instruments the handler on
// registerer. Collection errors are reported in the response, not as 500s,
// so a single failing collector does not hide the rest.
func HandlerFor(registerer prometheus.Registerer, gatherer prometheus.Gatherer) http.Handler {
	return promhttp.InstrumentMetricHandler(registerer, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	}))
}
