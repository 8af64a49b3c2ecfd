// Package metrics exposes Prometheus counters for dual writes, read routing,
// flag lookups and reconciliation. A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dualstore"

// Outcome labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

type Recorder struct {
	Operations      *prometheus.CounterVec
	OperationTime   *prometheus.HistogramVec
	ReadFallbacks   *prometheus.CounterVec
	WriteFailures   *prometheus.CounterVec
	FlagErrors      prometheus.Counter
	SyncCopied      *prometheus.CounterVec
	SyncItemErrors  *prometheus.CounterVec
	ConsistencyDiff *prometheus.GaugeVec
}

// New registers the dualstore collectors with reg. Pass
// prometheus.NewRegistry() in tests to keep registrations isolated.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Store adapter calls made by the router",
			},
			[]string{"entity", "side", "kind", "result"},
		),
		OperationTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Store adapter call latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"entity", "side", "kind"},
		),
		ReadFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "read_fallbacks_total",
				Help:      "Secondary reads that failed and were served by the primary",
			},
			[]string{"entity"},
		),
		WriteFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dual_write_failures_total",
				Help:      "Writes that could not be completed on any applicable store",
			},
			[]string{"entity"},
		),
		FlagErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flag_source_errors_total",
				Help:      "Flag lookups that failed and fell back to the default",
			},
		),
		SyncCopied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_copied_total",
				Help:      "Records copied by reconciliation",
			},
			[]string{"entity", "direction"},
		),
		SyncItemErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_item_errors_total",
				Help:      "Records reconciliation failed to copy",
			},
			[]string{"entity", "direction"},
		),
		ConsistencyDiff: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "consistency_count_delta",
				Help:      "Absolute difference between primary and secondary record counts at the last check",
			},
			[]string{"entity"},
		),
	}
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveOperation records one adapter call.
func (r *Recorder) ObserveOperation(entity, side, kind string, started time.Time, err error) {
	if r == nil {
		return
	}
	r.Operations.WithLabelValues(entity, side, kind, result(err)).Inc()
	r.OperationTime.WithLabelValues(entity, side, kind).Observe(time.Since(started).Seconds())
}

func (r *Recorder) ReadFallback(entity string) {
	if r == nil {
		return
	}
	r.ReadFallbacks.WithLabelValues(entity).Inc()
}

func (r *Recorder) WriteFailure(entity string) {
	if r == nil {
		return
	}
	r.WriteFailures.WithLabelValues(entity).Inc()
}

func (r *Recorder) FlagError() {
	if r == nil {
		return
	}
	r.FlagErrors.Inc()
}

func (r *Recorder) Synced(entity, direction string, copied, failed int) {
	if r == nil {
		return
	}
	r.SyncCopied.WithLabelValues(entity, direction).Add(float64(copied))
	r.SyncItemErrors.WithLabelValues(entity, direction).Add(float64(failed))
}

func (r *Recorder) Consistency(entity string, delta int64) {
	if r == nil {
		return
	}
	r.ConsistencyDiff.WithLabelValues(entity).Set(float64(delta))
}
