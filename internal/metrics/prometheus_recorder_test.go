package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveStageDuration("fetching", 150*time.Millisecond)
	pr.IncStageResult("fetching", ResultSuccess)
	pr.ObserveBuildDuration(2 * time.Second)
	pr.IncBuildOutcome("success")
	pr.IncBuildOutcome("failed")
	pr.IncBuildOutcome("failed")
	pr.ObserveCloneDuration(time.Second, false)
	pr.IncCloneResult(false)
	pr.AddBuildsInFlight(1)
	pr.AddBuildsInFlight(1)
	pr.AddBuildsInFlight(-1)
	pr.IncHTTPRequest(http.MethodGet, "/api/projects", 200)

	require.InDelta(t, 2, value(t, pr.buildOutcome.WithLabelValues("failed")), 0)
	require.InDelta(t, 1, value(t, pr.cloneResults.WithLabelValues("failed")), 0)
	require.InDelta(t, 1, value(t, pr.buildsInFlight), 0)
	require.InDelta(t, 1, value(t, pr.httpRequests.WithLabelValues("GET", "/api/projects", "200")), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}

func value(t *testing.T, c prom.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	require.NotPanics(t, func() {
		pr.IncBuildOutcome("success")
		pr.ObserveStageDuration("x", time.Second)
		pr.AddBuildsInFlight(1)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncBuildOutcome("success")

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "forgebuild_build_outcomes_total"))
}

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)
