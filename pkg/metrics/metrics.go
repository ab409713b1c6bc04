package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/orbcast/orbcast/internal/common/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry   *prometheus.Registry
	namespace  string
	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec

	dispatchCnt   *prometheus.CounterVec
	dispatchDur   *prometheus.HistogramVec
	deliveryCnt   *prometheus.CounterVec
	deliveryDrops *prometheus.CounterVec
	filterFaults  *prometheus.CounterVec
	consumerFault prometheus.Counter
	sessionsGauge prometheus.Gauge
	subsGauge     prometheus.Gauge
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	// Register basic HTTP metrics
	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	dispatchCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "event_dispatch_total"}, []string{"event_type"})
	dispatchDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "event_dispatch_duration_seconds", Buckets: cfg.Buckets}, []string{"event_type"})
	deliveryCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "event_deliveries_total"}, []string{"event_type"})
	deliveryDrops := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "event_delivery_drops_total"}, []string{"reason"})
	filterFaults := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "subscription_filter_faults_total"}, []string{"event_type"})
	consumerFault := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "internal_consumer_faults_total"})
	sessionsGauge := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "subscribed_sessions"})
	subsGauge := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "active_subscriptions"})
	r.MustRegister(dispatchCnt, dispatchDur, deliveryCnt, deliveryDrops, filterFaults, consumerFault, sessionsGauge, subsGauge)

	return &Metrics{
		registry:      r,
		namespace:     ns,
		httpReqCnt:    httpReqCnt,
		httpDur:       httpDur,
		httpInfl:      httpInfl,
		dispatchCnt:   dispatchCnt,
		dispatchDur:   dispatchDur,
		deliveryCnt:   deliveryCnt,
		deliveryDrops: deliveryDrops,
		filterFaults:  filterFaults,
		consumerFault: consumerFault,
		sessionsGauge: sessionsGauge,
		subsGauge:     subsGauge,
	}
}

func (m *Metrics) DispatchDone(eventType string, since time.Time, deliveries int) {
	m.dispatchCnt.WithLabelValues(eventType).Inc()
	m.dispatchDur.WithLabelValues(eventType).Observe(time.Since(since).Seconds())
	m.deliveryCnt.WithLabelValues(eventType).Add(float64(deliveries))
}

func (m *Metrics) DeliveryDropped(reason string) {
	m.deliveryDrops.WithLabelValues(reason).Inc()
}

func (m *Metrics) FilterFault(eventType string) {
	m.filterFaults.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ConsumerFault() {
	m.consumerFault.Inc()
}

func (m *Metrics) SetRegistrySize(sessions, subscriptions int) {
	m.sessionsGauge.Set(float64(sessions))
	m.subsGauge.Set(float64(subscriptions))
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := httpStatus(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func httpStatus(code int) string { return strconv.Itoa(code) }
