package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StepsTotal — выполненные шаги по типу узла и результату (ok|error).
	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgraph_steps_total",
		Help: "Total number of executed simulation steps",
	}, []string{"node_type", "result"})

	// StepDuration — длительность обработчика узла.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flowgraph_step_duration_seconds",
		Help:    "Duration of node handler execution",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2},
	}, []string{"node_type"})

	// SimulationsStarted — начатые симуляции.
	SimulationsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowgraph_simulations_started_total",
		Help: "Total number of started simulations",
	})

	// SimulationsFinished — завершённые симуляции по финальному состоянию.
	SimulationsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgraph_simulations_finished_total",
		Help: "Total number of finished simulations",
	}, []string{"state"})

	// InitFailures — ошибки инициализации по причине.
	InitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgraph_init_failures_total",
		Help: "Total number of simulations that failed to initialize",
	}, []string{"reason"})

	// ActiveSessions — открытые сессии симуляции.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowgraph_active_sessions",
		Help: "Number of open simulation sessions",
	})

	// EventsPublished — опубликованные события по приёмнику и результату.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgraph_events_published_total",
		Help: "Total number of simulation events delivered to publishers",
	}, []string{"publisher", "result"})

	// HTTPRequests — запросы к API.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgraph_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "status"})
)

// ResultLabel возвращает значение метки result.
func ResultLabel(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}
