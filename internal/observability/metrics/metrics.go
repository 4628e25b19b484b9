package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for the chat bot.
type BotMetrics struct {
	inboundTotal   *prometheus.CounterVec
	handlerErrors  *prometheus.CounterVec
	registrations  *prometheus.CounterVec
	geocodeTotal   *prometheus.CounterVec
	exportsTotal   *prometheus.CounterVec
	handlerLatency *prometheus.HistogramVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Subsystem: "updates",
			Name:      "inbound_total",
			Help:      "Inbound chat updates by payload kind and matched route",
		}, []string{"kind", "route"}),
		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Subsystem: "handler",
			Name:      "errors_total",
			Help:      "Handler failures answered with a generic reply",
		}, []string{"route"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Subsystem: "registration",
			Name:      "total",
			Help:      "Completed registration attempts by result",
		}, []string{"result"}),
		geocodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Subsystem: "geocode",
			Name:      "total",
			Help:      "Reverse geocoding lookups by result",
		}, []string{"result"}),
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Subsystem: "export",
			Name:      "total",
			Help:      "Spreadsheet exports by table and result",
		}, []string{"table", "result"}),
		handlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicbot",
			Subsystem: "handler",
			Name:      "latency_seconds",
			Help:      "Latency of update handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.handlerErrors, m.registrations, m.geocodeTotal, m.exportsTotal, m.handlerLatency)
	return m
}

func (m *BotMetrics) ObserveInbound(kind, route string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(kind, route).Inc()
}

func (m *BotMetrics) ObserveHandlerError(route string) {
	if m == nil {
		return
	}
	m.handlerErrors.WithLabelValues(route).Inc()
}

func (m *BotMetrics) ObserveRegistration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

func (m *BotMetrics) ObserveGeocode(found bool) {
	if m == nil {
		return
	}
	label := "not_found"
	if found {
		label = "found"
	}
	m.geocodeTotal.WithLabelValues(label).Inc()
}

func (m *BotMetrics) ObserveExport(table, result string) {
	if m == nil {
		return
	}
	m.exportsTotal.WithLabelValues(table, result).Inc()
}

func (m *BotMetrics) ObserveLatency(route string, seconds float64) {
	if m == nil {
		return
	}
	m.handlerLatency.WithLabelValues(route).Observe(seconds)
}
