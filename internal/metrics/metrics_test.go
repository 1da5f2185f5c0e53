package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest(200, time.Second)
	m.Retry("network")
	m.RateLimited()
	m.SetOpen("g", "critical", 1)
	m.SetWindow("g", 30, "high", 2)
	m.ProjectIncomplete("g")
}

func TestRecordsRequestsAndGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest(200, 10*time.Millisecond)
	m.ObserveRequest(200, 20*time.Millisecond)
	m.ObserveRequest(0, time.Millisecond)
	m.Retry("status")
	m.RateLimited()
	m.SetOpen("sme-mobile", "critical", 4)
	m.SetWindow("sme-mobile", 30, "high", 7)

	require.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("status")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
	require.Equal(t, 4.0, testutil.ToFloat64(m.openFindings.WithLabelValues("sme-mobile", "critical")))
	require.Equal(t, 7.0, testutil.ToFloat64(m.windowFindings.WithLabelValues("sme-mobile", "30", "high")))
}

func TestPush(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RateLimited()

	require.NoError(t, Push(t.Context(), srv.URL, "vulnreport", reg))
	require.True(t, strings.HasPrefix(gotPath, "/metrics/job/vulnreport"), gotPath)
}

func TestMeterProviderExportsToRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	mp, err := NewMeterProvider(reg)
	require.NoError(t, err)
	defer mp.Shutdown(t.Context())

	counter, err := mp.Meter("test").Int64Counter("walks")
	require.NoError(t, err)
	counter.Add(t.Context(), 3)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "vulnreport_walks") {
			found = true
		}
	}
	require.True(t, found)
}
