package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"examprep/internal/core"
	"examprep/internal/httpclient"
)

// SubjectPlaceholder is replaced with the lowercase subject name in source URLs.
const SubjectPlaceholder = "{subject}"

const maxSourceBodySize = 10 * 1024 * 1024 // 10 MB

// HTTPSource fetches questions from a remote JSON endpoint.
type HTTPSource struct {
	client      *http.Client
	urlTemplate string
	resultsPath string
	headers     map[string]string
}

// HTTPSourceConfig configures an HTTPSource.
type HTTPSourceConfig struct {
	// URL is the endpoint template, e.g. "https://api.example.com/questions/{subject}?limit=60".
	URL string
	// ResultsPath is a gjson path to the question array inside the response
	// (e.g. "data.questions"). Empty means the body itself is the array.
	ResultsPath string
	// Headers are added to every request (e.g. Authorization).
	Headers map[string]string
	// Client overrides the HTTP client; nil uses httpclient defaults.
	Client *http.Client
}

func NewHTTPSource(cfg HTTPSourceConfig) (*HTTPSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("question source URL is required")
	}
	client := cfg.Client
	if client == nil {
		client = httpclient.NewHTTPClient(nil)
	}
	return &HTTPSource{
		client:      client,
		urlTemplate: cfg.URL,
		resultsPath: cfg.ResultsPath,
		headers:     cfg.Headers,
	}, nil
}

// Fetch downloads the question batch for subject.
func (s *HTTPSource) Fetch(ctx context.Context, subject core.Subject) ([]core.Question, error) {
	url := strings.ReplaceAll(s.urlTemplate, SubjectPlaceholder, subject.Key())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if requestID := core.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from question source", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(raw) > maxSourceBodySize {
		return nil, fmt.Errorf("response body too large (exceeds %d bytes)", maxSourceBodySize)
	}

	return parseQuestions(raw, s.resultsPath, subject)
}

// parseQuestions extracts the question array from raw, optionally at a gjson
// path, and stamps questions that lack a subject.
func parseQuestions(raw []byte, path string, subject core.Subject) ([]core.Question, error) {
	if path != "" {
		result := gjson.GetBytes(raw, path)
		if !result.Exists() {
			return nil, fmt.Errorf("results path %q not found in response", path)
		}
		if !result.IsArray() {
			return nil, fmt.Errorf("results path %q is not an array", path)
		}
		raw = []byte(result.Raw)
	}

	var questions []core.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("parsing questions JSON: %w", err)
	}
	for i := range questions {
		if questions[i].Subject == "" {
			questions[i].Subject = subject
		}
	}
	return questions, nil
}

// FileSource serves questions from a local JSON seed file holding questions
// for every subject. The file is re-read on each fetch so it can be edited
// while the service runs.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Fetch(ctx context.Context, subject core.Subject) ([]core.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading question file: %w", err)
	}
	all, err := parseQuestions(raw, "", "")
	if err != nil {
		return nil, err
	}
	out := make([]core.Question, 0, len(all))
	for _, q := range all {
		if strings.EqualFold(string(q.Subject), string(subject)) {
			q.Subject = subject
			out = append(out, q)
		}
	}
	return out, nil
}
