// metrics.go - Prometheus instrumentation for the zklay client.
//
// A Metrics value is registered on a caller-supplied registry. All methods
// are safe on a nil receiver so components can run uninstrumented.

package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "zklay"

// Rejection reasons for received notes.
const (
	ReasonCommitmentMismatch = "commitment_mismatch"
	ReasonZeroValue          = "zero_value"
	ReasonMalformed          = "malformed"
)

// Metrics holds the client's collectors.
type Metrics struct {
	registry prometheus.Gatherer

	notesReceived    prometheus.Counter
	notesRejected    *prometheus.CounterVec
	nullifiersMarked prometheus.Counter
	syncBlocks       prometheus.Counter
	syncDuration     prometheus.Histogram
	proofDuration    *prometheus.HistogramVec
	accumulatorOps   *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		notesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "notes_received_total",
			Help:      "Notes decrypted, validated and stored by the wallet",
		}),
		notesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "notes_rejected_total",
			Help:      "Decrypted notes discarded by the wallet",
		}, []string{"reason"}),
		nullifiersMarked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "nullifiers_marked_total",
			Help:      "Owned notes moved to the spent partition",
		}),
		syncBlocks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "blocks_processed_total",
			Help:      "Ledger blocks scanned by the syncer",
		}),
		syncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full sync cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		proofDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snark",
			Name:      "proof_duration_seconds",
			Help:      "Time spent generating a proof",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"circuit"}),
		accumulatorOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accumulator",
			Name:      "operations_total",
			Help:      "Accumulator operations by kind and outcome",
		}, []string{"op", "result"}),
	}
}

func (m *Metrics) NoteReceived() {
	if m != nil {
		m.notesReceived.Inc()
	}
}

func (m *Metrics) NoteRejected(reason string) {
	if m != nil {
		m.notesRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) NullifierMarked() {
	if m != nil {
		m.nullifiersMarked.Inc()
	}
}

// SyncCycle records one completed cycle over n blocks.
func (m *Metrics) SyncCycle(n uint64, d time.Duration) {
	if m != nil {
		m.syncBlocks.Add(float64(n))
		m.syncDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ProofGenerated(circuit string, d time.Duration) {
	if m != nil {
		m.proofDuration.WithLabelValues(circuit).Observe(d.Seconds())
	}
}

func (m *Metrics) AccumulatorOp(op string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "fail"
	}
	m.accumulatorOps.WithLabelValues(op, result).Inc()
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Route is an extra handler served next to /metrics.
type Route struct {
	Path    string
	Handler http.Handler
}

// Serve exposes /metrics and any extra routes on addr until ctx is
// cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger, routes ...Route) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	for _, r := range routes {
		mux.Handle(r.Path, r.Handler)
	}
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}
	return nil
}
