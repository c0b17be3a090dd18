package metrics

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestReporter(t *testing.T) {
	r, err := NewReporter(ServiceInfo{Job: "reporter-test"})
	require.NoError(t, err)

	r.RecordProcessed("published", 0.001)
	r.RecordProcessed("published", 0.002)
	r.RecordProcessed("dropped_invalid", 0.001)
	r.RecordDeadLettered()
	r.PipelineFailed("write")

	require.Equal(t, 2.0, testutil.ToFloat64(recordsTotal.WithLabelValues("reporter-test", "published")))
	require.Equal(t, 1.0, testutil.ToFloat64(recordsTotal.WithLabelValues("reporter-test", "dropped_invalid")))
	require.Equal(t, 1.0, testutil.ToFloat64(deadLettersTotal.WithLabelValues("reporter-test")))
	require.Equal(t, 1.0, testutil.ToFloat64(pipelineFailures.WithLabelValues("reporter-test", "write")))
}

func TestPrometheusServerExposesMetrics(t *testing.T) {
	p, err := NewPrometheusServer(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, err)

	r, err := NewReporter(ServiceInfo{Job: "server-test"})
	require.NoError(t, err)
	r.RecordProcessed("published", 0.001)

	rec := httptest.NewRecorder()
	p.server.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), `records_total{job="server-test",outcome="published"}`)

	require.NoError(t, p.Stop(context.Background()))
}
