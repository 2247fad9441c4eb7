package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: полный цикл обработки события (скоринг + обновление + сохранение)
	ProcessDuration *prometheus.HistogramVec

	// Traffic: события по категории и исходу (ok, rejected, persist_error)
	EventsTotal *prometheus.CounterVec

	// Вердикты банка: anomaly, normal, unavailable
	VerdictsTotal *prometheus.CounterVec

	// Errors: отказы хранилища по операции
	StoreErrors *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker хранилища (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера вердиктов (backpressure)
	VerdictBufferFill prometheus.Gauge

	// Банк моделей: 0 - uninitialized, 1 - fitting, 2 - ready
	ModelState prometheus.Gauge

	// Профили, удерживаемые в памяти сервиса
	ProfilesInMemory prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ProcessDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraudprofile_process_duration_seconds",
			Help:    "Histogram of event processing latencies.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"event_type"}),

		EventsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fraudprofile_events_total",
			Help: "Total number of processed events.",
		}, []string{"event_type", "outcome"}),

		VerdictsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fraudprofile_verdicts_total",
			Help: "Anomaly model verdicts by type.",
		}, []string{"event_type", "verdict"}),

		StoreErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fraudprofile_store_errors_total",
			Help: "Total number of profile store failures by operation.",
		}, []string{"op"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "fraudprofile_circuit_breaker_state",
			Help: "Current state of the store circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),

		VerdictBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "fraudprofile_verdict_buffer_utilization",
			Help: "Current number of verdicts in the audit buffer.",
		}),

		ModelState: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "fraudprofile_model_state",
			Help: "Anomaly model bank state (0=uninitialized, 1=fitting, 2=ready).",
		}),

		ProfilesInMemory: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "fraudprofile_profiles_in_memory",
			Help: "Number of account profiles held in memory after a failed save.",
		}),
	}
}
