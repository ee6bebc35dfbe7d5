package questions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"examprep/internal/core"
)

const sampleQuestions = `[
	{"id":"m1","topic":"Algebra","question":"2+2?","options":[{"label":"A","text":"3"},{"label":"B","text":"4"}],"correct_answer":"B"},
	{"id":"m2","subject":"Mathematics","topic":"Algebra","question":"3*3?","options":[{"label":"A","text":"9"},{"label":"B","text":"6"}],"correct_answer":"A","difficulty":"easy"}
]`

func TestNewHTTPSource_RequiresURL(t *testing.T) {
	_, err := NewHTTPSource(HTTPSourceConfig{})
	assert.Error(t, err)
}

func TestHTTPSource_FetchArrayBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/questions/mathematics", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleQuestions))
	}))
	defer server.Close()

	src, err := NewHTTPSource(HTTPSourceConfig{
		URL:     server.URL + "/questions/{subject}",
		Headers: map[string]string{"Authorization": "Bearer secret"},
	})
	require.NoError(t, err)

	got, err := src.Fetch(context.Background(), core.Mathematics)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.Mathematics, got[0].Subject, "missing subject is filled in")
	assert.Equal(t, "2+2?", got[0].Text)
	assert.Equal(t, core.DifficultyEasy, got[1].Difficulty)
}

func TestHTTPSource_ForwardsRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req-42", r.Header.Get("X-Request-Id"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	src, err := NewHTTPSource(HTTPSourceConfig{URL: server.URL + "/{subject}"})
	require.NoError(t, err)

	got, err := src.Fetch(core.WithRequestID(context.Background(), "req-42"), core.Biology)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHTTPSource_FetchWithResultsPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","data":{"questions":` + sampleQuestions + `}}`))
	}))
	defer server.Close()

	src, err := NewHTTPSource(HTTPSourceConfig{URL: server.URL, ResultsPath: "data.questions"})
	require.NoError(t, err)

	got, err := src.Fetch(context.Background(), core.Mathematics)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		path   string
	}{
		{"server error", http.StatusInternalServerError, `{}`, ""},
		{"invalid json", http.StatusOK, `not json`, ""},
		{"missing results path", http.StatusOK, `{"data":{}}`, "data.questions"},
		{"results path not array", http.StatusOK, `{"data":{"questions":"nope"}}`, "data.questions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			src, err := NewHTTPSource(HTTPSourceConfig{URL: server.URL, ResultsPath: tt.path})
			require.NoError(t, err)

			_, err = src.Fetch(context.Background(), core.English)
			assert.Error(t, err)
		})
	}
}

func TestHTTPSource_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	src, err := NewHTTPSource(HTTPSourceConfig{URL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = src.Fetch(ctx, core.Physics)
	assert.Error(t, err)
}

func TestFileSource_FiltersBySubject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"1","subject":"mathematics","question":"a"},
		{"id":"2","subject":"English","question":"b"},
		{"id":"3","subject":"Mathematics","question":"c"}
	]`), 0o644))

	src := NewFileSource(path)
	got, err := src.Fetch(context.Background(), core.Mathematics)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.Mathematics, got[0].Subject)
	assert.Equal(t, "3", got[1].ID)
}

func TestFileSource_MissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.json")).Fetch(context.Background(), core.English)
	assert.Error(t, err)
}
