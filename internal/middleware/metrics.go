package middleware

import "github.com/brunomcebola/argos/internal/metrics"

// metricsCollector is installed once at process start via SetMetricsCollector;
// a nil collector makes RecordRateLimitReject/RecordRateLimitBackend no-ops, so tests
// that don't wire metrics aren't forced to.
var metricsCollector *metrics.Collector

func SetMetricsCollector(c *metrics.Collector) { metricsCollector = c }

func RecordRateLimitReject(scope string) {
	if metricsCollector != nil {
		metricsCollector.ObserveRateLimitReject(scope)
	}
}

func RecordRateLimitBackend(up bool) {
	if metricsCollector != nil {
		metricsCollector.SetRateLimitBackendUp(up)
	}
}
