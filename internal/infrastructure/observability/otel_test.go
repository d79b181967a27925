package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics(t *testing.T) {
	metrics, err := InitMetrics()
	require.NoError(t, err)
	require.NotNil(t, metrics.RequestCount)
	require.NotNil(t, metrics.CandidateDropCount)

	assert.NoError(t, ObserveGauge(metrics, "test.gauge", "test", func() int { return 3 }))

	ctx := context.Background()
	RecordRequestMetric(ctx, metrics, "GET", "GET /health", 200, time.Millisecond)
	RecordCacheHit(ctx, metrics, "http")
	RecordCandidateDrops(ctx, metrics, "Food", 2)
}

func TestNilMetricsAreNoOps(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, nil, "GET", "/", 200, time.Millisecond)
		RecordDBMetric(ctx, nil, "get", time.Millisecond)
		RecordCacheHit(ctx, nil, "http")
		RecordCacheMiss(ctx, nil, "http")
		RecordFeedReplenish(ctx, nil, "ok", 1)
		RecordCandidateDrops(ctx, nil, "Food", 1)
	})
	assert.NoError(t, ObserveGauge(nil, "x", "x", func() int { return 0 }))
}
