package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest(TriggerURL, OutcomeSuccess, time.Second)
	m.ObserveRequest(TriggerURL, OutcomeSuccess, time.Second)
	m.ObserveRequest(TriggerPhoto, OutcomeFailed, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(TriggerURL, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(TriggerPhoto, OutcomeFailed)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveNormalize(200*time.Millisecond, 100_000, 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "stickerbot_normalize_duration_seconds_count 1")
	assert.Contains(t, string(body), "stickerbot_quality_attempts_sum 3")
}
