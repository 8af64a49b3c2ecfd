package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/surrealdb/dualstore/pkg/metrics"
)

func TestRecorder(t *testing.T) {
	rec := metrics.New(prometheus.NewRegistry())

	rec.ObserveOperation("products", "primary", "write", time.Now(), nil)
	rec.ObserveOperation("products", "secondary", "write", time.Now(), errors.New("down"))
	rec.ReadFallback("products")
	rec.FlagError()
	rec.Synced("products", "to_secondary", 3, 1)
	rec.Consistency("products", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Operations.WithLabelValues("products", "primary", "write", metrics.ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Operations.WithLabelValues("products", "secondary", "write", metrics.ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.ReadFallbacks.WithLabelValues("products")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.FlagErrors))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.SyncCopied.WithLabelValues("products", "to_secondary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.SyncItemErrors.WithLabelValues("products", "to_secondary")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.ConsistencyDiff.WithLabelValues("products")))
}

func TestNilRecorder(t *testing.T) {
	var rec *metrics.Recorder
	assert.NotPanics(t, func() {
		rec.ObserveOperation("products", "primary", "read", time.Now(), nil)
		rec.ReadFallback("products")
		rec.WriteFailure("products")
		rec.FlagError()
		rec.Synced("products", "to_primary", 1, 0)
		rec.Consistency("products", 0)
	})
}
