// Package testutil provides test doubles for the vendor upstream.
package testutil

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a canned response for one path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockProduct is one product served by MockVendor.
type MockProduct struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	URL   string  `json:"url,omitempty"`
}

type mockVendor struct {
	name        string
	description string
	products    []MockProduct
}

// MockVendor is a configurable fake vendor site:
//
//	GET /vendors/{id}                       HTML profile page
//	GET /vendors/{id}/products?page=&size=  JSON {"products": [...]}
type MockVendor struct {
	server   *httptest.Server
	mu       sync.RWMutex
	vendors  map[string]mockVendor
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	requests map[string]int

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockVendor starts a new mock vendor server.
func NewMockVendor() *MockVendor {
	mock := &MockVendor{
		vendors:  make(map[string]mockVendor),
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		requests: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.requests[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockVendor) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockVendor) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockVendor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.requests = make(map[string]int)
	m.LastRequestHeader = nil
}

// AddVendor registers a vendor with n generated products.
func (m *MockVendor) AddVendor(id, name, description string, n int) {
	products := make([]MockProduct, n)
	for i := range products {
		products[i] = MockProduct{
			ID:    fmt.Sprintf("%s-p%d", id, i+1),
			Name:  fmt.Sprintf("Product %d", i+1),
			Price: float64(1000 + i),
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.vendors[id] = mockVendor{name: name, description: description, products: products}
}

// SetHandler sets a custom handler for a specific path.
func (m *MockVendor) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockVendor) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
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
	})
}

// SetSequence serves the responses in order, repeating the last one.
func (m *MockVendor) SetSequence(path string, responses ...MockResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[next]
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockVendor) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// RequestsFor returns the number of requests made to one path.
func (m *MockVendor) RequestsFor(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[path]
}

// defaultHandler serves registered vendors.
func (m *MockVendor) defaultHandler(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, "/vendors/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	id, sub, _ := strings.Cut(rest, "/")

	m.mu.RLock()
	v, exists := m.vendors[id]
	m.mu.RUnlock()
	if !exists {
		http.NotFound(w, r)
		return
	}

	switch sub {
	case "":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(ProfileHTML(v.name, v.description)))
	case "products":
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		if size <= 0 {
			size = 20
		}
		start := page * size
		end := start + size
		if start > len(v.products) {
			start = len(v.products)
		}
		if end > len(v.products) {
			end = len(v.products)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{"products": v.products[start:end]})
	default:
		http.NotFound(w, r)
	}
}

// ProfileHTML renders a vendor profile page.
func ProfileHTML(name, description string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head>
<meta property="og:title" content="%s">
<meta name="description" content="%s">
<title>%s</title>
</head><body><h1>%s</h1></body></html>`,
		html.EscapeString(name), html.EscapeString(description), html.EscapeString(name), html.EscapeString(name))
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			"Retry-After":  "1",
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewHTMLResponse creates a 200 OK HTML response.
func NewHTMLResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
	}
}
