package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics(nil)
	m.TicksTotal.WithLabelValues("timer", "applied").Inc()
	m.TicksTotal.WithLabelValues("timer", "applied").Inc()
	m.StaleResults.Inc()
	m.Bars.Set(390)
	m.ObserveFetch(200 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("timer", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResults))
	assert.Equal(t, 390.0, testutil.ToFloat64(m.Bars))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "livechart_ticks_total")
	assert.Contains(t, string(body), "livechart_fetch_duration_seconds_count 1")
}
