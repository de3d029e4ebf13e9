// monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wfunc/connect4bot/logger"
)

type Metrics struct {
	RoundsCreated *prometheus.CounterVec
	ActiveRounds  prometheus.Gauge
	Moves         *prometheus.CounterVec
	RoundsEnded   *prometheus.CounterVec
	SurfaceErrors *prometheus.CounterVec
	InputLatency  prometheus.Histogram
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoundsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_created_total",
			Help:      "Rounds created, by variant",
		}, []string{"variant"}),
		ActiveRounds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rounds",
			Help:      "Rounds that have not ended",
		}),
		Moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Moves submitted, by outcome",
		}, []string{"outcome"}),
		RoundsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_ended_total",
			Help:      "Rounds ended, by reason",
		}, []string{"reason"}),
		SurfaceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surface_errors_total",
			Help:      "Failed calls to the messaging surface, by operation",
		}, []string{"op"}),
		InputLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "input_latency_seconds",
			Help:      "Time from a move or command arriving to the board being re-rendered",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}

	reg.MustRegister(
		m.RoundsCreated,
		m.ActiveRounds,
		m.Moves,
		m.RoundsEnded,
		m.SurfaceErrors,
		m.InputLatency,
	)

	return m
}

// Monitor records round metrics and serves them over HTTP.
type Monitor struct {
	metrics   *Metrics
	gatherer  prometheus.Gatherer
	startTime time.Time
}

// NewMonitor registers its metrics on reg. Passing nil uses a private
// registry, which is what tests want.
func NewMonitor(namespace string, reg *prometheus.Registry) *Monitor {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Monitor{
		metrics:   NewMetrics(namespace, reg),
		gatherer:  reg,
		startTime: time.Now(),
	}
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the process started",
	}, func() float64 {
		return time.Since(m.startTime).Seconds()
	}))
	return m
}

func (m *Monitor) Metrics() *Metrics { return m.metrics }

func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Monitor) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: m.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Log.Infof("Metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *Monitor) RoundCreated(variant string) {
	m.metrics.RoundsCreated.WithLabelValues(variant).Inc()
}

func (m *Monitor) MoveApplied(outcome string) {
	m.metrics.Moves.WithLabelValues(outcome).Inc()
}

func (m *Monitor) RoundEnded(reason string) {
	m.metrics.RoundsEnded.WithLabelValues(reason).Inc()
}

func (m *Monitor) SurfaceError(op string) {
	m.metrics.SurfaceErrors.WithLabelValues(op).Inc()
}

func (m *Monitor) SetActiveRounds(count int) {
	m.metrics.ActiveRounds.Set(float64(count))
}

func (m *Monitor) ObserveInputLatency(duration time.Duration) {
	m.metrics.InputLatency.Observe(duration.Seconds())
}
