package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examprep/config"
	"examprep/internal/core"
)

const seed = `[
  {"id":"m1","subject":"Mathematics","topic":"Algebra","question":"2x=4, x?","options":[{"label":"A","text":"1"},{"label":"B","text":"2"}],"correct_answer":"B"},
  {"id":"m2","subject":"mathematics","topic":"Algebra","question":"3x=9, x?","options":[{"label":"A","text":"3"},{"label":"B","text":"6"}],"correct_answer":"A"},
  {"id":"p1","subject":"Physics","topic":"Units","question":"Unit of force?","options":[{"label":"A","text":"Newton"},{"label":"B","text":"Joule"}],"correct_answer":"A","difficulty":"easy"}
]`

func testConfig(t *testing.T) *config.LoadResult {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	return &config.LoadResult{Config: &config.Config{
		Server: config.ServerConfig{Port: "0"},
		Cache: config.CacheConfig{
			Backend:       "memory",
			MaxPerSubject: 50,
			MaxAge:        24 * time.Hour,
			PurgeInterval: time.Hour,
		},
		Source: config.SourceConfig{Type: "file", File: path},
		Connectivity: config.ConnectivityConfig{
			StartOnline: true,
		},
	}}
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{AppConfig: &config.LoadResult{}})
	assert.Error(t, err)
}

func TestNew_RejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Config.Cache.Backend = "etcd"

	_, err := New(context.Background(), Config{AppConfig: cfg})
	assert.Error(t, err)
}

func TestApp_CachesFromFileSource(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, Config{AppConfig: testConfig(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	batch := a.Offline().CacheAllSubjects(ctx)
	assert.True(t, batch.Success)
	assert.Equal(t, 3, batch.Total)
	assert.Equal(t, 2, a.Offline().CachedCount(ctx, core.Mathematics))
	assert.Equal(t, 1, a.Offline().CachedCount(ctx, core.Physics))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/offline/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Online bool `json:"online"`
		Total  int  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Online)
	assert.Equal(t, 3, status.Total)
}

func TestApp_StartOffline(t *testing.T) {
	cfg := testConfig(t)
	cfg.Config.Connectivity.StartOnline = false

	a, err := New(context.Background(), Config{AppConfig: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	res := a.Offline().CacheSubject(context.Background(), core.English)
	assert.Equal(t, core.ErrorTypeOffline, res.ErrorType)

	a.Monitor().Set(true)
	res = a.Offline().CacheSubject(context.Background(), core.English)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Count)
}

func TestShutdown_Idempotent(t *testing.T) {
	a, err := New(context.Background(), Config{AppConfig: testConfig(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, a.Shutdown(ctx))
	require.NoError(t, a.Shutdown(ctx))
}
