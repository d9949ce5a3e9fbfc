package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// UpstreamResponse is a canned reply from a fake upstream.
type UpstreamResponse struct {
	Status int
	Body   string
}

// FakeUpstream is an httptest server that answers by request path and records
// every request it receives. Unknown paths answer 200 with an empty JSON array.
type FakeUpstream struct {
	Server *httptest.Server

	mu        sync.Mutex
	responses map[string]UpstreamResponse
	requests  []*http.Request
	bodies    []string
}

// NewFakeUpstream starts a fake upstream that is closed when the test ends.
func NewFakeUpstream(t *testing.T) *FakeUpstream {
	t.Helper()
	f := &FakeUpstream{responses: make(map[string]UpstreamResponse)}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the server's base URL.
func (f *FakeUpstream) URL() string {
	return f.Server.URL
}

// Respond sets the reply for path.
func (f *FakeUpstream) Respond(path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = UpstreamResponse{Status: status, Body: body}
}

// Requests returns the requests received so far.
func (f *FakeUpstream) Requests() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.requests...)
}

// RequestsTo returns how many requests hit path.
func (f *FakeUpstream) RequestsTo(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.URL.Path == path {
			n++
		}
	}
	return n
}

// LastBody returns the body of the most recent request.
func (f *FakeUpstream) LastBody() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return ""
	}
	return f.bodies[len(f.bodies)-1]
}

func (f *FakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(r.Context()))
	f.bodies = append(f.bodies, string(body))
	resp, ok := f.responses[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		resp = UpstreamResponse{Status: http.StatusOK, Body: "[]"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = io.WriteString(w, resp.Body)
}
