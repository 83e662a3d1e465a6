// Package metrics wires a prometheus.Registry shared by the node and
// master processes. Unlike a polling collector, every counter here is
// incremented inline by the component that observed the event — there is
// no external plane to scrape.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the registry and every counter/gauge ARGOS exposes.
type Collector struct {
	registry *prometheus.Registry

	captureDrops       *prometheus.CounterVec
	recorderQueueDepth *prometheus.GaugeVec
	recorderWrites     *prometheus.CounterVec
	recorderDrops      *prometheus.CounterVec
	fanoutEvents       *prometheus.CounterVec
	reconnects         *prometheus.CounterVec
	rateLimitRejects   *prometheus.CounterVec
	rateLimitBackendUp prometheus.Gauge
}

// NewCollector builds and registers every metric. Call once per process.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{registry: reg}

	c.captureDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "argos_capture_drops_total",
		Help: "Frames dropped from a camera's local queue under overload.",
	}, []string{"camera_sn"})
	reg.MustRegister(c.captureDrops)

	c.recorderQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "argos_recorder_queue_depth",
		Help: "Current queue depth for an active recording session.",
	}, []string{"node_id", "camera_sn"})
	reg.MustRegister(c.recorderQueueDepth)

	c.recorderWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "argos_recorder_writes_total",
		Help: "Frame files written to a dataset's raw directory.",
	}, []string{"node_id", "camera_sn"})
	reg.MustRegister(c.recorderWrites)

	c.recorderDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "argos_recorder_drops_total",
		Help: "Payloads dropped from a recording session's queue under overload.",
	}, []string{"node_id", "camera_sn"})
	reg.MustRegister(c.recorderDrops)

	c.fanoutEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "argos_fanout_events_total",
		Help: "Frame events re-emitted by the master, per namespace.",
	}, []string{"namespace"})
	reg.MustRegister(c.fanoutEvents)

	c.reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "argos_node_reconnects_total",
		Help: "Outbound node-session (re)connects observed by the master.",
	}, []string{"node_id"})
	reg.MustRegister(c.reconnects)

	c.rateLimitRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "argos_ratelimit_rejections_total",
		Help: "Requests rejected by the rate limiter.",
	}, []string{"scope"})
	reg.MustRegister(c.rateLimitRejects)

	c.rateLimitBackendUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "argos_ratelimit_backend_up",
		Help: "1 if the rate limiter's Redis backend answered the startup ping, 0 if rate limiting fails open.",
	})
	reg.MustRegister(c.rateLimitBackendUp)

	return c
}

// Handler serves the Prometheus exposition format for GET /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveCaptureDrop(cameraSN string) {
	c.captureDrops.WithLabelValues(cameraSN).Inc()
}

func (c *Collector) SetRecorderQueueDepth(nodeID, cameraSN string, depth int) {
	c.recorderQueueDepth.WithLabelValues(nodeID, cameraSN).Set(float64(depth))
}

func (c *Collector) ObserveRecorderWrite(nodeID, cameraSN string) {
	c.recorderWrites.WithLabelValues(nodeID, cameraSN).Inc()
}

func (c *Collector) ObserveRecorderDrop(nodeID, cameraSN string) {
	c.recorderDrops.WithLabelValues(nodeID, cameraSN).Inc()
}

func (c *Collector) ObserveFanout(namespace string) {
	c.fanoutEvents.WithLabelValues(namespace).Inc()
}

func (c *Collector) ObserveReconnect(nodeID string) {
	c.reconnects.WithLabelValues(nodeID).Inc()
}

func (c *Collector) ObserveRateLimitReject(scope string) {
	c.rateLimitRejects.WithLabelValues(scope).Inc()
}

func (c *Collector) SetRateLimitBackendUp(up bool) {
	if up {
		c.rateLimitBackendUp.Set(1)
		return
	}
	c.rateLimitBackendUp.Set(0)
}
