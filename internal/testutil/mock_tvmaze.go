// Package testutil provides testing utilities for the episode importer.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock upstream endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockTVMaze is a configurable mock TVMaze server for testing.
type MockTVMaze struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	PathCounts   map[string]int
}

// NewMockTVMaze creates a new mock TVMaze server. Paths without a
// configured handler answer 404, like the upstream does for unknown
// resources.
func NewMockTVMaze() *MockTVMaze {
	mock := &MockTVMaze{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		PathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.PathCounts[r.URL.Path]++
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"name":"Not Found","message":"","code":0,"status":404}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockTVMaze) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTVMaze) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockTVMaze) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PathCounts = make(map[string]int)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockTVMaze) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockTVMaze) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if resp.Headers["Content-Type"] == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetEpisodes configures the episodes endpoint of a show with a JSON array
// body.
func (m *MockTVMaze) SetEpisodes(showID int, episodesJSON string) {
	path := fmt.Sprintf("/shows/%d/episodes", showID)
	m.SetResponse(path, MockResponse{StatusCode: http.StatusOK, Body: episodesJSON})
}

// SetUpdates configures the show updates endpoint with a JSON object body.
func (m *MockTVMaze) SetUpdates(updatesJSON string) {
	m.SetResponse("/updates/shows", MockResponse{StatusCode: http.StatusOK, Body: updatesJSON})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockTVMaze) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to one path.
func (m *MockTVMaze) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// EpisodeJSON builds a minimal episode object for test payloads.
func EpisodeJSON(id, season, number int) string {
	return fmt.Sprintf(`{"id":%d,"url":"https://www.tvmaze.com/episodes/%d","name":"Episode %d","season":%d,"number":%d,"type":"regular","airdate":"2024-01-0%d","airtime":"21:00","airstamp":"2024-01-0%dT02:00:00+00:00","runtime":60,"rating":{"average":7.5},"summary":"<p>Episode %d</p>"}`,
		id, id, id, season, number, (number%9)+1, (number%9)+1, id)
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
	}
}
