package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Intents          *prometheus.CounterVec
	Replies          *prometheus.CounterVec
	LookupRequests   *prometheus.CounterVec
	LookupLatency    *prometheus.HistogramVec
	TurnLatency      prometheus.Histogram
	WSConnections    prometheus.Gauge
	WSMessages       *prometheus.CounterVec
	InventoryReloads *prometheus.CounterVec
}

// NewMetrics registers the instruments with the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the instruments with reg.
func NewMetricsWith(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Intents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Classified utterances by intent.",
		}, []string{"intent"}),
		Replies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Composed replies by template branch.",
		}, []string{"branch"}),
		LookupRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_requests_total",
			Help:      "Article and inventory lookups by service and outcome.",
		}, []string{"service", "outcome"}),
		LookupLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_latency_ms",
			Help:      "Lookup latency in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"service"}),
		TurnLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "Latency of a whole conversational turn in milliseconds.",
			Buckets:   []float64{5, 25, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open chat websocket connections.",
		}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		InventoryReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_reloads_total",
			Help:      "Inventory catalogue reloads by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.Intents.WithLabelValues(intent).Inc()
}

func (m *Metrics) ObserveReply(branch string) {
	if m == nil {
		return
	}
	m.Replies.WithLabelValues(branch).Inc()
}

func (m *Metrics) ObserveLookup(service, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.LookupRequests.WithLabelValues(service, outcome).Inc()
	m.LookupLatency.WithLabelValues(service).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveTurn(d time.Duration) {
	if m == nil {
		return
	}
	m.TurnLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveInventoryReload(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.InventoryReloads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) AddWSConnection(delta float64) {
	if m == nil {
		return
	}
	m.WSConnections.Add(delta)
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves the metrics gathered by g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
