package master

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the master's Prometheus instrumentation: inbound RPC
// counts, current registry sizes, and outbound notification failures.
type Metrics struct {
	registry         *prometheus.Registry
	inboundRPCTotal  *prometheus.CounterVec
	topicCount       prometheus.Gauge
	serviceCount     prometheus.Gauge
	paramCount       prometheus.Gauge
	outboundFailures *prometheus.CounterVec
}

// NewMetrics builds a fresh, self-contained registry so tests can create
// independent Master instances without colliding on the global default
// registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		inboundRPCTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roscore_inbound_rpc_total",
			Help: "Count of inbound master/parameter API RPCs by method name.",
		}, []string{"method"}),
		topicCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roscore_topics",
			Help: "Number of topics currently published or subscribed.",
		}),
		serviceCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roscore_services",
			Help: "Number of services with a registered provider.",
		}),
		paramCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "roscore_params",
			Help: "Number of leaf parameters in the parameter tree.",
		}),
		outboundFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "roscore_outbound_notification_failures_total",
			Help: "Count of failed outbound publisherUpdate/paramUpdate deliveries by method.",
		}, []string{"method"}),
	}
}

func (m *Metrics) recordInbound(method string) {
	m.inboundRPCTotal.WithLabelValues(method).Inc()
}

// setTopicCount, setServiceCount, and setParamCount publish the current
// registry sizes. The facade calls these after every handler that can
// change them, rather than on a timer, so a scrape always reflects the
// state as of the last mutation.
func (m *Metrics) setTopicCount(n int)   { m.topicCount.Set(float64(n)) }
func (m *Metrics) setServiceCount(n int) { m.serviceCount.Set(float64(n)) }
func (m *Metrics) setParamCount(n int)   { m.paramCount.Set(float64(n)) }

func (m *Metrics) recordOutboundFailure(method string) {
	m.outboundFailures.WithLabelValues(method).Inc()
}

// RecordOutboundFailure is exported so it can be wired as a
// notifier.Notifier failure hook from outside the package.
func (m *Metrics) RecordOutboundFailure(method string) {
	m.recordOutboundFailure(method)
}

// Handler exposes the metrics registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
