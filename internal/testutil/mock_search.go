// Package testutil provides testing utilities for the search client.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/gh-search/pkg/search"
)

// MockPage defines the response for one page of /search/code.
type MockPage struct {
	StatusCode int
	Body       string
	HasNext    bool
	Headers    map[string]string
}

// MockSearchAPI is a configurable mock of the code search API.
type MockSearchAPI struct {
	server *httptest.Server
	mu     sync.RWMutex
	pages  map[int]MockPage
	blobs  map[string]string

	// Tracking
	RequestCount int
	PageRequests map[int]int

	lastRequestHeader http.Header
	lastQuery         string
	lastPerPage       int
}

// NewMockSearchAPI creates a new mock search API server.
func NewMockSearchAPI() *MockSearchAPI {
	mock := &MockSearchAPI{
		pages:        make(map[int]MockPage),
		blobs:        make(map[string]string),
		PageRequests: make(map[int]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/search/code", mock.handleSearch)
	mux.HandleFunc("/blobs/", mock.handleBlob)

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.lastRequestHeader = r.Header.Clone()
		mock.mu.Unlock()

		mux.ServeHTTP(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockSearchAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSearchAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSearchAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PageRequests = make(map[int]int)
	m.lastRequestHeader = nil
	m.lastQuery = ""
	m.lastPerPage = 0
}

// SetPage configures the response for a page number.
// Unconfigured pages answer with an empty result set and no next link.
func (m *MockSearchAPI) SetPage(page int, resp MockPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = resp
}

// SetBlob serves content, base64 encoded, at BlobURL(name).
func (m *MockSearchAPI) SetBlob(name, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = content
}

// BlobURL returns the URL of a blob registered with SetBlob.
func (m *MockSearchAPI) BlobURL(name string) string {
	return m.server.URL + "/blobs/" + name
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSearchAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPageRequests returns how often a page was requested.
func (m *MockSearchAPI) GetPageRequests(page int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PageRequests[page]
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockSearchAPI) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// GetLastQuery returns the q parameter of the most recent search request.
func (m *MockSearchAPI) GetLastQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// GetLastPerPage returns the per_page parameter of the most recent search request.
func (m *MockSearchAPI) GetLastPerPage() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPerPage
}

func (m *MockSearchAPI) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		http.Error(w, `{"message":"invalid page"}`, http.StatusUnprocessableEntity)
		return
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	m.mu.Lock()
	m.PageRequests[page]++
	m.lastQuery = q.Get("q")
	m.lastPerPage = perPage
	resp, ok := m.pages[page]
	m.mu.Unlock()

	if !ok {
		resp = NewResultsPage(0)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-RateLimit-Limit", "10")
	w.Header().Set("X-RateLimit-Remaining", "9")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
	w.Header().Set("X-RateLimit-Resource", "code_search")
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if resp.HasNext {
		w.Header().Set("Link", fmt.Sprintf(
			`<%s/search/code?q=x&page=%d>; rel="next", <%s/search/code?q=x&page=%d>; rel="last"`,
			m.server.URL, page+1, m.server.URL, page+10))
	} else if page > 1 {
		w.Header().Set("Link", fmt.Sprintf(`<%s/search/code?q=x&page=1>; rel="first"`, m.server.URL))
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write([]byte(resp.Body))
}

func (m *MockSearchAPI) handleBlob(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[len("/blobs/"):]

	m.mu.RLock()
	content, ok := m.blobs[name]
	m.mu.RUnlock()

	// Blob downloads are accounted to the core budget, not to code search.
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", "4999")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
	w.Header().Set("X-RateLimit-Resource", "core")

	if !ok {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]any{
		"sha":      name,
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString([]byte(content)),
	})
}

// NewResultsPage creates a page whose total_count is totalCount and which
// carries the given items.
func NewResultsPage(totalCount int, items ...search.Item) MockPage {
	if items == nil {
		items = []search.Item{}
	}
	body, err := json.Marshal(search.Response{TotalCount: totalCount, Items: items})
	if err != nil {
		panic(err)
	}
	return MockPage{StatusCode: http.StatusOK, Body: string(body)}
}

// NewItem creates a search item for repo and path.
func NewItem(repo, path string) search.Item {
	return search.Item{
		Name:       path,
		Path:       path,
		GitURL:     "https://api.github.com/repos/" + repo + "/git/blobs/" + path,
		Repository: search.Repository{FullName: repo},
	}
}

// NewErrorPage creates a failing page response.
func NewErrorPage(status int, message string) MockPage {
	return MockPage{
		StatusCode: status,
		Body:       fmt.Sprintf(`{"message":%q}`, message),
	}
}

// NewSpentBudgetPage creates a successful page that uses up the last request
// of the code search budget.
func NewSpentBudgetPage(totalCount int, items ...search.Item) MockPage {
	page := NewResultsPage(totalCount, items...)
	page.Headers = map[string]string{
		"X-RateLimit-Remaining": "0",
		"X-RateLimit-Reset":     strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10),
	}
	return page
}

// NewRateLimitedPage creates a 403 response with a spent rate limit.
func NewRateLimitedPage() MockPage {
	return MockPage{
		StatusCode: http.StatusForbidden,
		Body:       `{"message":"API rate limit exceeded"}`,
		Headers: map[string]string{
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10),
		},
	}
}
