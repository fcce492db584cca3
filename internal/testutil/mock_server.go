// Package testutil provides testing utilities for the media client, the page
// stream and the download pipeline.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// GraphQLPath is the page endpoint served by MockServer.
const GraphQLPath = "/graphql/query/"

// MockResponse defines the behavior of a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockServer is a configurable stand-in for the remote media API and its CDN.
type MockServer struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	pages    map[string]MockResponse

	requests     map[string]int
	total        int
	inFlight     int
	maxInFlight  int
	lastHeaders  http.Header
	pageRequests []PageRequest
}

// PageRequest is a decoded request to the page endpoint.
type PageRequest struct {
	QueryHash string
	ID        string `json:"id"`
	First     int    `json:"first"`
	After     string `json:"after"`
}

// NewMockServer starts a new mock server.
func NewMockServer() *MockServer {
	m := &MockServer{
		handlers: make(map[string]http.HandlerFunc),
		pages:    make(map[string]MockResponse),
		requests: make(map[string]int),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests[r.URL.Path]++
		m.total++
		m.inFlight++
		if m.inFlight > m.maxInFlight {
			m.maxInFlight = m.inFlight
		}
		m.lastHeaders = r.Header.Clone()
		handler, exists := m.handlers[r.URL.Path]
		m.mu.Unlock()

		defer func() {
			m.mu.Lock()
			m.inFlight--
			m.mu.Unlock()
		}()

		if r.URL.Path == GraphQLPath {
			m.servePage(w, r)
			return
		}
		if exists {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	return m
}

// URL returns the base URL of the server.
func (m *MockServer) URL() string {
	return m.server.URL
}

// Close shuts down the server.
func (m *MockServer) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a path.
func (m *MockServer) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockServer) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, responder(resp))
}

// SetProfile serves a profile document for username embedding timeline.
func (m *MockServer) SetProfile(username, userID, timeline string) {
	doc := fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>%s</title></head>
<body>
<script type="text/javascript">window._sharedData = {"entry_data":{"ProfilePage":[{"graphql":{"user":{"id":%q,"username":%q,"biography":"","profile_pic_url_hd":"","edge_owner_to_timeline_media":%s}}}]}};</script>
</body></html>`, username, userID, username, timeline)

	m.SetResponse("/"+username+"/", MockResponse{
		StatusCode: http.StatusOK,
		Body:       doc,
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
	})
}

// SetPage serves timeline for requests whose "after" variable equals cursor.
func (m *MockServer) SetPage(cursor, timeline string) {
	m.SetPageResponse(cursor, MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data":{"user":{"edge_owner_to_timeline_media":` + timeline + `}},"status":"ok"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})
}

// SetPageResponse serves resp for requests whose "after" variable equals cursor.
func (m *MockServer) SetPageResponse(cursor string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[cursor] = resp
}

// SetMedia serves body at /media/<id>.jpg after delay.
func (m *MockServer) SetMedia(id string, body []byte, delay time.Duration) {
	m.SetHandler(m.MediaPath(id), func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	})
}

// MediaPath returns the path of a media item.
func (m *MockServer) MediaPath(id string) string {
	return "/media/" + id + ".jpg"
}

// MediaURL returns the absolute URL of a media item.
func (m *MockServer) MediaURL(id string) string {
	return m.server.URL + m.MediaPath(id)
}

// Timeline builds a timeline JSON document whose items point at this server.
// An empty cursor is encoded as null.
func (m *MockServer) Timeline(hasNext bool, cursor string, ids ...string) string {
	edges := make([]string, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, fmt.Sprintf(
			`{"node":{"shortcode":%q,"display_url":%q,"dimensions":{"width":1080,"height":1080},"edge_media_to_caption":{"edges":[{"node":{"text":"caption %s"}}]}}}`,
			id, m.MediaURL(id), id))
	}

	end := "null"
	if cursor != "" {
		end = fmt.Sprintf("%q", cursor)
	}

	return fmt.Sprintf(`{"count":%d,"page_info":{"has_next_page":%t,"end_cursor":%s},"edges":[%s]}`,
		len(ids), hasNext, end, strings.Join(edges, ","))
}

// RequestCount returns the number of requests made to path.
func (m *MockServer) RequestCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[path]
}

// TotalRequests returns the number of requests made to the server.
func (m *MockServer) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// MaxInFlight returns the highest number of concurrent requests observed.
func (m *MockServer) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockServer) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeaders
}

// PageRequests returns the decoded page requests in arrival order.
func (m *MockServer) PageRequests() []PageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PageRequest(nil), m.pageRequests...)
}

func (m *MockServer) servePage(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	if err := json.Unmarshal([]byte(r.URL.Query().Get("variables")), &req); err != nil {
		http.Error(w, `{"message":"invalid variables"}`, http.StatusBadRequest)
		return
	}
	req.QueryHash = r.URL.Query().Get("query_hash")

	m.mu.Lock()
	m.pageRequests = append(m.pageRequests, req)
	resp, ok := m.pages[req.After]
	m.mu.Unlock()

	if !ok {
		http.Error(w, `{"message":"unknown cursor"}`, http.StatusNotFound)
		return
	}
	responder(resp)(w, r)
}

func responder(resp MockResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
}

// NewNotModifiedResponse creates a 304 Not Modified response.
func NewNotModifiedResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusNotModified}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"message":"Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"Please wait a few minutes before you try again."}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
