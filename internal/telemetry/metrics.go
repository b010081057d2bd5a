package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TargetsDiscovered is the size of the scanner's merged target view.
	TargetsDiscovered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bytebuggy",
			Name:      "targets_discovered",
			Help:      "Number of access points in the current scan view",
		},
	)

	// AttacksTotal counts finished attacks by kind and outcome.
	AttacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bytebuggy",
			Name:      "attacks_total",
			Help:      "Attacks run, by attack kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// IVsCollected is the cumulative IV count of the WEP target under attack.
	IVsCollected = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "bytebuggy",
			Name:      "ivs_collected",
			Help:      "Cumulative IVs captured for a WEP target",
		},
		[]string{"bssid"},
	)

	// ProcessRestarts counts watchdog driven restarts of external tools.
	ProcessRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bytebuggy",
			Name:      "process_restarts_total",
			Help:      "External process restarts by reason",
		},
		[]string{"reason"},
	)

	// ResultsSaved counts results appended to the result store.
	ResultsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bytebuggy",
			Name:      "results_saved_total",
			Help:      "Crack results written to the result store",
		},
		[]string{"kind"},
	)

	once sync.Once
)

// Outcome labels for AttacksTotal.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeError       = "error"
	OutcomeInterrupted = "interrupted"
)

// Restart reasons for ProcessRestarts.
const (
	ReasonStaleIVs        = "stale_ivs"
	ReasonRecoveryRuntime = "recovery_runtime"
)

// InitMetrics registers all metrics with the default registry. Safe to call repeatedly.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(TargetsDiscovered)
		prometheus.DefaultRegisterer.Register(AttacksTotal)
		prometheus.DefaultRegisterer.Register(IVsCollected)
		prometheus.DefaultRegisterer.Register(ProcessRestarts)
		prometheus.DefaultRegisterer.Register(ResultsSaved)
	})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	InitMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
