package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)

	// Counters start at zero and increment.
	r.RecordNewsFetched("rss:fed_press", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(r.newsFetched.WithLabelValues("rss:fed_press")))

	r.RecordEnriched("sentiment", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.entriesEnriched.WithLabelValues("sentiment")))

	r.RecordTrade("BUY", "STRONG_BUY")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tradesTotal.WithLabelValues("BUY", "STRONG_BUY")))

	r.RecordRiskRejection()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.riskRejections))

	r.RecordJobRun("fetch_news", "ok")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobRuns.WithLabelValues("fetch_news", "ok")))
}

func TestStatusToString(t *testing.T) {
	assert.Equal(t, "2xx", statusToString(200))
	assert.Equal(t, "3xx", statusToString(301))
	assert.Equal(t, "4xx", statusToString(404))
	assert.Equal(t, "5xx", statusToString(503))
	assert.Equal(t, "1xx", statusToString(100))
}

func TestHTTPMiddleware(t *testing.T) {
	r := NewRegistry()
	handler := HTTPMiddleware(r)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0,
		testutil.ToFloat64(r.httpRequestsTotal.WithLabelValues("GET", "/api/portfolio", "4xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.httpRequestsInFlight))
}
