package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Fanout/internal/domain"
)

// Metrics — Prometheus метрики gateway.
//
// Все методы безопасны для nil-получателя: компоненты,
// созданные без метрик (например, в тестах), просто ничего не пишут.
type Metrics struct {
	httpDuration       *prometheus.HistogramVec
	downstreamCalls    *prometheus.CounterVec
	downstreamDuration *prometheus.HistogramVec
	targetUp           *prometheus.GaugeVec
}

// NewRegistry создаёт registry с Go и process коллекторами.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler отдаёт метрики registry на /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// NewMetrics регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 1.5, 2, 5},
			},
			[]string{"method", "route", "code"},
		),
		downstreamCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_downstream_calls_total",
				Help: "Downstream calls by target, operation and outcome",
			},
			[]string{"target", "op", "outcome"},
		),
		downstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fanout_downstream_call_duration_seconds",
				Help:    "Duration of downstream calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"target", "op"},
		),
		targetUp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fanout_downstream_up",
				Help: "Result of the last health probe (1 = up, 0 = down)",
			},
			[]string{"target"},
		),
	}
}

// ObserveHTTP записывает длительность входящего запроса.
func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}

// ObserveDownstream записывает исход downstream-вызова.
func (m *Metrics) ObserveDownstream(o domain.Outcome) {
	if m == nil {
		return
	}
	target := o.Call.TargetName()
	op := string(o.Call.Op)

	outcome := "success"
	if o.Failure != nil {
		outcome = string(o.Failure.Reason)
	}

	m.downstreamCalls.WithLabelValues(target, op, outcome).Inc()
	m.downstreamDuration.WithLabelValues(target, op).Observe(o.Duration.Seconds())
}

// SetTargetUp выставляет gauge доступности target'а.
func (m *Metrics) SetTargetUp(target string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.targetUp.WithLabelValues(target).Set(v)
}
