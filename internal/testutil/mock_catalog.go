// Package testutil provides testing utilities for the catalog ETL.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mocked page.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatalog is a configurable mock of the paginated collections endpoint.
// Pages are keyed by the offset query parameter; offsets without a
// configured response return an empty collections array.
type MockCatalog struct {
	server *httptest.Server
	mu     sync.RWMutex
	pages  map[int]MockResponse

	// Tracking
	RequestCount      int
	Offsets           []int
	LastRequestHeader http.Header
	LastQuery         map[string]string
}

// NewMockCatalog creates and starts a mock catalog server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		pages: make(map[int]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("offset"))

		mock.mu.Lock()
		mock.RequestCount++
		mock.Offsets = append(mock.Offsets, offset)
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = map[string]string{
			"chain":  q.Get("chain"),
			"limit":  q.Get("limit"),
			"offset": q.Get("offset"),
		}
		resp, exists := mock.pages[offset]
		mock.mu.Unlock()

		if !exists {
			resp = NewCollectionsResponse()
		}
		writeResponse(w, resp)
	}))

	return mock
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Offsets = nil
	m.LastRequestHeader = nil
	m.LastQuery = nil
}

// SetPage configures the response for the page starting at offset.
func (m *MockCatalog) SetPage(offset int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[offset] = resp
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockCatalog) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// GetLastQuery returns chain, limit and offset of the most recent request.
func (m *MockCatalog) GetLastQuery() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// Collection builds a well-formed collection payload.
func Collection(slug, name string) map[string]any {
	return map[string]any{
		"collection":       slug,
		"name":             name,
		"description":      "Description of " + name,
		"image_url":        "https://img.example.com/" + slug + ".png",
		"owner":            "0xowner",
		"twitter_username": "@" + slug,
		"category":         "art",
		"contracts": []any{
			map[string]any{"address": "0x" + slug, "chain": "ethereum"},
		},
	}
}

// NewCollectionsResponse creates a 200 OK response carrying the given collections.
func NewCollectionsResponse(collections ...map[string]any) MockResponse {
	if collections == nil {
		collections = []map[string]any{}
	}
	body, _ := json.Marshal(map[string]any{"collections": collections})
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"collections": [`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"detail": "Request was throttled."}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"Retry-After":  "30",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewUnauthorizedResponse creates a 401 response for a bad API key.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"detail": "Invalid API key"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}
