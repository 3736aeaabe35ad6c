package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServer(t *testing.T) {
	m := NewMetrics("key_issuer")
	m.Generations.Inc()
	m.ResponsesWritten.WithLabelValues(ResultSuccess).Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(m.Generations), 0)

	srv, err := New(m, "127.0.0.1:0")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "key_issuer_generations_total 1")
	assert.Contains(t, string(body), `key_issuer_responses_written_total{result="success"} 1`)

	_, err = New(nil, "")
	require.Error(t, err)
}

func TestNewMetrics_Independent(t *testing.T) {
	a := NewMetrics("key_issuer")
	b := NewMetrics("key_issuer")
	a.CacheEntries.Set(3)
	assert.InDelta(t, 0, testutil.ToFloat64(b.CacheEntries), 0)
}
