package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/forgebuild/internal/builder"
	"git.home.luguber.info/inful/forgebuild/internal/git"
	"git.home.luguber.info/inful/forgebuild/internal/metrics"
	"git.home.luguber.info/inful/forgebuild/internal/pipeline"
	"git.home.luguber.info/inful/forgebuild/internal/store"
	helpers "git.home.luguber.info/inful/forgebuild/internal/testutil/testutils"
	"git.home.luguber.info/inful/forgebuild/internal/workspace"
)

type envelope struct {
	ErrCode int             `json:"errCode"`
	ErrMsg  string          `json:"errMsg"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, output string) *httptest.Server {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)
	orch := pipeline.New(pipeline.Deps{
		Projects:  db.Projects(),
		Records:   db.Records(),
		Fetcher:   git.NewClient(),
		Runner:    builder.FuncRunner(func(context.Context, string) string { return output }),
		Workspace: workspace.NewManager(filepath.Join(t.TempDir(), "repos")),
		Recorder:  recorder,
		Serialize: true,
	})
	s := New(":0", Deps{
		Projects: db.Projects(),
		History:  db.Records(),
		Builds:   orch,
		DB:       db,
		Registry: reg,
		Recorder: recorder,
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url string, body any) (int, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestAPI_ProjectLifecycle(t *testing.T) {
	src, hash := helpers.NewSourceRepo(t, nil)
	ts := newTestServer(t, "line0\nTypeError: x\nline2")

	status, env := do(t, http.MethodPost, ts.URL+"/api/projects", map[string]string{"name": "site", "sourceRepo": src})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 0, env.ErrCode)
	require.Equal(t, "success", env.ErrMsg)

	var created struct {
		ID         string `json:"_id"`
		BuildCount int    `json:"buildCount"`
		Status     int    `json:"buildStatus"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.ID)
	require.Zero(t, created.BuildCount)

	status, env = do(t, http.MethodPost, ts.URL+"/api/projects/"+created.ID+"/build", nil)
	require.Equal(t, http.StatusOK, status)
	var rec struct {
		Status    int    `json:"status"`
		ErrorLine int    `json:"errorLine"`
		Project   string `json:"project"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	require.Equal(t, 2, rec.Status)
	require.Equal(t, 1, rec.ErrorLine)
	require.Equal(t, created.ID, rec.Project)

	// GET is accepted for compatibility.
	status, _ = do(t, http.MethodGet, ts.URL+"/api/projects/"+created.ID+"/build", nil)
	require.Equal(t, http.StatusOK, status)

	status, env = do(t, http.MethodGet, ts.URL+"/api/projects/"+created.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var got struct {
		BuildCount int `json:"buildCount"`
		Status     int `json:"buildStatus"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Equal(t, 2, got.BuildCount)
	require.Equal(t, 2, got.Status)

	status, env = do(t, http.MethodGet, ts.URL+"/api/projects/"+created.ID+"/builds?limit=1", nil)
	require.Equal(t, http.StatusOK, status)
	var builds struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &builds))
	require.Equal(t, 1, builds.Total)

	status, env = do(t, http.MethodGet, ts.URL+"/api/projects/"+created.ID+"/source-repo-info", nil)
	require.Equal(t, http.StatusOK, status)
	var info struct {
		LastCommit struct {
			Hash string `json:"hash"`
		} `json:"lastCommit"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.Equal(t, hash, info.LastCommit.Hash)

	status, env = do(t, http.MethodGet, ts.URL+"/api/projects", nil)
	require.Equal(t, http.StatusOK, status)
	var list []struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	require.Equal(t, created.ID, list[0].ID)
	require.Equal(t, "site", list[0].Name)
}

func TestAPI_ListIsBareArray(t *testing.T) {
	ts := newTestServer(t, "")

	status, env := do(t, http.MethodGet, ts.URL+"/api/projects", nil)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `[]`, string(env.Data))

	status, _ = do(t, http.MethodPost, ts.URL+"/api/projects", map[string]string{"name": "web", "sourceRepo": "r"})
	require.Equal(t, http.StatusOK, status)
	status, env = do(t, http.MethodGet, ts.URL+"/api/projects?name=web", nil)
	require.Equal(t, http.StatusOK, status)
	require.True(t, strings.HasPrefix(strings.TrimSpace(string(env.Data)), "["), "data = %s", env.Data)
}

func TestAPI_ErrorsAre422(t *testing.T) {
	ts := newTestServer(t, "")

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		errCode int
	}{
		{name: "unknown project", method: http.MethodGet, path: "/api/projects/nope", errCode: 1004},
		{name: "build unknown project", method: http.MethodPost, path: "/api/projects/nope/build", errCode: 1004},
		{name: "invalid name", method: http.MethodPost, path: "/api/projects", body: map[string]string{"name": "../x", "sourceRepo": "r"}, errCode: 1001},
		{name: "missing repo", method: http.MethodPost, path: "/api/projects", body: map[string]string{"name": "x"}, errCode: 1001},
		{name: "bad limit", method: http.MethodGet, path: "/api/projects/nope/builds?limit=abc", errCode: 1001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, tt.method, ts.URL+tt.path, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, status)
			require.Equal(t, tt.errCode, env.ErrCode)
			require.NotEmpty(t, env.ErrMsg)
		})
	}
}

func TestAPI_DuplicateName(t *testing.T) {
	ts := newTestServer(t, "")
	body := map[string]string{"name": "dup", "sourceRepo": "r"}

	status, _ := do(t, http.MethodPost, ts.URL+"/api/projects", body)
	require.Equal(t, http.StatusOK, status)
	status, env := do(t, http.MethodPost, ts.URL+"/api/projects", body)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	require.Equal(t, 1009, env.ErrCode)
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", health["status"])

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "forgebuild_http_requests_total"))
}

func TestServer_StartStop(t *testing.T) {
	s := New("127.0.0.1:0", Deps{})
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
