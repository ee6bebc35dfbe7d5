package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examprep/internal/cache"
	"examprep/internal/connectivity"
	"examprep/internal/core"
	"examprep/internal/offline"
	"examprep/internal/questions"
)

type stubSource struct {
	mu   sync.Mutex
	n    int
	fail map[core.Subject]bool
}

func (s *stubSource) Fetch(_ context.Context, subject core.Subject) ([]core.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[subject] {
		return nil, errors.New("upstream unavailable")
	}
	out := make([]core.Question, s.n)
	for i := range out {
		out[i] = core.Question{
			ID:            fmt.Sprintf("%s-%d", subject.Key(), i),
			Subject:       subject,
			Text:          "2+2?",
			Options:       []core.Option{{Label: "A", Text: "4"}, {Label: "B", Text: "5"}},
			CorrectAnswer: "A",
		}
	}
	return out, nil
}

type testServer struct {
	srv     *Server
	monitor *connectivity.Monitor
	source  *stubSource
}

func newTestServer(t *testing.T, cfg *Config) *testServer {
	t.Helper()
	monitor := connectivity.NewMonitor(true)
	notices := connectivity.NewNotices(monitor)
	t.Cleanup(notices.Close)

	source := &stubSource{n: 60, fail: map[core.Subject]bool{}}
	store := questions.NewStore(cache.NewMemoryKV(), questions.Config{})
	ctrl := offline.NewController(monitor, source, store)

	return &testServer{
		srv:     New(ctrl, monitor, notices, cfg),
		monitor: monitor,
		source:  source,
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCacheSubject_StoresAndReports(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/v1/offline/subjects/mathematics/cache", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[offline.Result](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, core.Mathematics, res.Subject)
	assert.Equal(t, 50, res.Count)

	rec = ts.do(t, http.MethodGet, "/v1/offline/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[StatusResponse](t, rec)
	assert.True(t, status.Online)
	assert.Equal(t, 50, status.Total)
	require.Len(t, status.Subjects, 5)
	assert.Equal(t, SubjectSummary{Subject: core.Mathematics, Count: 50, HasCache: true}, status.Subjects[0])
	assert.Equal(t, SubjectSummary{Subject: core.English, Count: 0, HasCache: false}, status.Subjects[1])

	rec = ts.do(t, http.MethodGet, "/v1/offline/subjects/Mathematics/questions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	qs := decode[QuestionsResponse](t, rec)
	assert.Equal(t, 50, qs.Count)
	assert.Len(t, qs.Questions, 50)
}

func TestCacheSubject_OfflineReturns503(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.monitor.Set(false)

	rec := ts.do(t, http.MethodPost, "/v1/offline/subjects/English/cache", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	res := decode[offline.Result](t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, core.ErrorTypeOffline, res.ErrorType)

	rec = ts.do(t, http.MethodGet, "/v1/offline/subjects/English", "")
	assert.JSONEq(t, `{"subject":"English","count":0,"has_cache":false}`, rec.Body.String())
}

func TestCacheSubject_UnknownSubject(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/v1/offline/subjects/history/cache", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]map[string]any](t, rec)
	assert.Equal(t, string(core.ErrorTypeInvalidRequest), body["error"]["type"])
}

func TestCacheAll_PartialFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.source.fail[core.Chemistry] = true

	rec := ts.do(t, http.MethodPost, "/v1/offline/cache", "")

	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	batch := decode[offline.BatchResult](t, rec)
	assert.False(t, batch.Success)
	assert.Equal(t, 200, batch.Total)
	require.Len(t, batch.Results, 5)
	assert.Equal(t, core.ErrorTypeFetch, batch.Results[3].ErrorType)
}

func TestCacheAll_OfflineUsesErrorStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.monitor.Set(false)

	rec := ts.do(t, http.MethodPost, "/v1/offline/cache", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPurge(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/v1/offline/purge", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":0}`, rec.Body.String())
}

func TestConnectivity_SetAndNotice(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/v1/notices", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodPut, "/v1/connectivity", `{"online":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"online":false,"changed":true}`, rec.Body.String())
	assert.False(t, ts.monitor.Online())

	rec = ts.do(t, http.MethodPut, "/v1/connectivity", `{"online":false}`)
	assert.JSONEq(t, `{"online":false}`, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/v1/notices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	notice := decode[connectivity.Notice](t, rec)
	assert.Equal(t, connectivity.NoticeOffline, notice.Kind)

	rec = ts.do(t, http.MethodGet, "/v1/connectivity", "")
	assert.JSONEq(t, `{"online":false}`, rec.Body.String())
}

func TestConnectivity_RequiresOnlineField(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPut, "/v1/connectivity", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, ts.monitor.Online())
}

func TestServer_MasterKey(t *testing.T) {
	ts := newTestServer(t, &Config{MasterKey: "sekret", MetricsEnabled: true})

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/v1/offline/status", "").Code)
	assert.Equal(t, http.StatusOK,
		ts.do(t, http.MethodGet, "/v1/offline/status", "", "Authorization", "Bearer sekret").Code)
}

func TestServer_MetricsDisabledByDefault(t *testing.T) {
	ts := newTestServer(t, nil)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/metrics", "").Code)
}

func TestServer_BodySizeLimit(t *testing.T) {
	ts := newTestServer(t, &Config{BodySizeLimit: 1024})

	big := `{"online":false,"pad":"` + strings.Repeat("x", 2048) + `"}`
	rec := ts.do(t, http.MethodPut, "/v1/connectivity", big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.True(t, ts.monitor.Online())
}
