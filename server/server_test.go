package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagechat/internal/models"
	"pagechat/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProvider struct {
	server *httptest.Server
	calls  int32
}

// newFakeProvider stands in for the chat completion API. answer "" makes it
// return a completion with empty content; status != 0 makes it fail outright.
func newFakeProvider(t *testing.T, answer string, status int) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.calls, 1)
		if status != 0 {
			http.Error(w, `{"error": {"message": "nope"}}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		body := map[string]interface{}{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-3.5-turbo",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": answer},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		}
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) callCount() int {
	return int(atomic.LoadInt32(&p.calls))
}

func newTestServer(t *testing.T, provider *fakeProvider) (*Server, string) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Addr = ":0"
	cfg.Store.Dir = t.TempDir()
	cfg.LLM.Model = "gpt-3.5-turbo"
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.BaseURL = provider.server.URL

	s, err := New(cfg)
	require.NoError(t, err)
	return s, cfg.Store.Dir
}

func doJSON(t *testing.T, s *Server, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func recordCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func newPageServer(t *testing.T, html string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestScrapeMissingURL(t *testing.T) {
	s, dir := newTestServer(t, newFakeProvider(t, "unused", 0))

	w := doJSON(t, s, http.MethodPost, "/scrape", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "URL is required"}`, w.Body.String())
	assert.Equal(t, 0, recordCount(t, dir))
}

func TestScrapeCreatesRecord(t *testing.T) {
	page := newPageServer(t, `<html><body>Hello</body></html>`)
	s, dir := newTestServer(t, newFakeProvider(t, "unused", 0))

	w := doJSON(t, s, http.MethodPost, "/scrape", map[string]string{"url": page.URL})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Message string `json:"message"`
		File    string `json:"file"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Message)
	assert.NotEmpty(t, resp.File)
	assert.Equal(t, 1, recordCount(t, dir))

	rec, err := s.store.Read(resp.File)
	require.NoError(t, err)
	assert.Equal(t, page.URL, rec.SourceURL)
	assert.Equal(t, "Hello", rec.ExtractedText)
	assert.NotEmpty(t, rec.CapturedAt)
}

func TestScrapeFetchFailure(t *testing.T) {
	page := newPageServer(t, "")
	url := page.URL
	page.Close()

	s, dir := newTestServer(t, newFakeProvider(t, "unused", 0))

	w := doJSON(t, s, http.MethodPost, "/scrape", map[string]string{"url": url})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "Failed to scrape the provided URL"}`, w.Body.String())
	assert.Equal(t, 0, recordCount(t, dir))
}

func TestQueryMissingQuery(t *testing.T) {
	provider := newFakeProvider(t, "unused", 0)
	s, _ := newTestServer(t, provider)

	w := doJSON(t, s, http.MethodPost, "/query", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "Query is required"}`, w.Body.String())
	assert.Equal(t, 0, provider.callCount())
}

func TestQueryEmptyStore(t *testing.T) {
	provider := newFakeProvider(t, "unused", 0)
	s, _ := newTestServer(t, provider)

	w := doJSON(t, s, http.MethodPost, "/query", map[string]string{"query": "anything"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "No scraped data available. Scrape a URL first."}`, w.Body.String())
	assert.Equal(t, 0, provider.callCount())
}

func TestQueryUnknownFile(t *testing.T) {
	provider := newFakeProvider(t, "unused", 0)
	s, _ := newTestServer(t, provider)

	_, err := s.store.Save(models.ScrapeRecord{ExtractedText: "content"})
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodPost, "/query", map[string]string{
		"query": "anything",
		"file":  "page_never_existed.json",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "Specified file does not exist"}`, w.Body.String())
	assert.Equal(t, 0, provider.callCount())
}

func TestQueryProviderFailure(t *testing.T) {
	provider := newFakeProvider(t, "", http.StatusTooManyRequests)
	s, _ := newTestServer(t, provider)

	_, err := s.store.Save(models.ScrapeRecord{ExtractedText: "content"})
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodPost, "/query", map[string]string{"query": "anything"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "Failed to process the query with ChatGPT"}`, w.Body.String())
}

func TestQueryEmptyAnswerIsError(t *testing.T) {
	provider := newFakeProvider(t, "", 0)
	s, _ := newTestServer(t, provider)

	_, err := s.store.Save(models.ScrapeRecord{ExtractedText: "content"})
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodPost, "/query", map[string]string{"query": "anything"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "Failed to process the query with ChatGPT"}`, w.Body.String())
	assert.Equal(t, 1, provider.callCount())
}

func TestScrapeThenQueryEndToEnd(t *testing.T) {
	page := newPageServer(t, `<html><body>Hello</body></html>`)
	provider := newFakeProvider(t, "It says Hello.", 0)
	s, _ := newTestServer(t, provider)

	w := doJSON(t, s, http.MethodPost, "/scrape", map[string]string{"url": page.URL})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPost, "/query", map[string]string{"query": "What does the page say?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer": "It says Hello."}`, w.Body.String())
	assert.Equal(t, 1, provider.callCount())
}

func TestQueryNamedFile(t *testing.T) {
	provider := newFakeProvider(t, "older answer", 0)
	s, _ := newTestServer(t, provider)

	first, err := s.store.Save(models.ScrapeRecord{ExtractedText: "older page"})
	require.NoError(t, err)
	_, err = s.store.Save(models.ScrapeRecord{ExtractedText: "newer page"})
	require.NoError(t, err)

	w := doJSON(t, s, http.MethodPost, "/query", map[string]string{
		"query": "anything",
		"file":  first,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer": "older answer"}`, w.Body.String())
}

func TestListRecords(t *testing.T) {
	s, _ := newTestServer(t, newFakeProvider(t, "unused", 0))

	w := doJSON(t, s, http.MethodGet, "/records", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"records": []}`, w.Body.String())

	_, err := s.store.Save(models.ScrapeRecord{ExtractedText: "a"})
	require.NoError(t, err)

	w = doJSON(t, s, http.MethodGet, "/records", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Records []string `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Records, 1)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, newFakeProvider(t, "unused", 0))

	w := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status": "healthy"}`, w.Body.String())
}
